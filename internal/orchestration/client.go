package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/anhofmann/aicore-go/internal/transport"
)

// ChunkResult wraps one decoded streaming chunk or a transport error.
type ChunkResult struct {
	Chunk *CompletionChunk
	Err   error
}

// Client is the deployment-scoped orchestration surface.
type Client interface {
	Completion(ctx context.Context, deploymentID string, req *CompletionRequest) (*CompletionResponse, http.Header, error)
	StreamCompletion(ctx context.Context, deploymentID string, req *CompletionRequest) (<-chan ChunkResult, error)
	Embed(ctx context.Context, deploymentID string, req *EmbeddingsRequest) (*EmbeddingsResponse, http.Header, error)
}

// HTTPClient implements Client against an AI Core inference base URL.
type HTTPClient struct {
	caller *transport.Caller
}

// NewClient creates an HTTPClient.
func NewClient(caller *transport.Caller) *HTTPClient {
	return &HTTPClient{caller: caller}
}

func path(deploymentID, endpoint string) string {
	return fmt.Sprintf("/v2/inference/deployments/%s/%s", url.PathEscape(deploymentID), endpoint)
}

// Completion performs a one-shot orchestration run.
func (c *HTTPClient) Completion(ctx context.Context, deploymentID string, req *CompletionRequest) (*CompletionResponse, http.Header, error) {
	var resp CompletionResponse
	headers, err := c.caller.PostJSON(ctx, path(deploymentID, "completion"), req, &resp)
	if err != nil {
		return nil, headers, err
	}
	return &resp, headers, nil
}

// StreamCompletion starts a streaming orchestration run and decodes the
// SSE payloads into chunks.
func (c *HTTPClient) StreamCompletion(ctx context.Context, deploymentID string, req *CompletionRequest) (<-chan ChunkResult, error) {
	events, err := c.caller.PostSSE(ctx, path(deploymentID, "completion"), req)
	if err != nil {
		return nil, err
	}

	out := make(chan ChunkResult)
	go func() {
		defer close(out)
		for event := range events {
			if event.Err != nil {
				out <- ChunkResult{Err: event.Err}
				return
			}
			var chunk CompletionChunk
			if err := json.Unmarshal(event.Data, &chunk); err != nil {
				out <- ChunkResult{Err: fmt.Errorf("failed to decode stream chunk: %w", err)}
				return
			}
			out <- ChunkResult{Chunk: &chunk}
		}
	}()
	return out, nil
}

// Embed performs an embeddings run.
func (c *HTTPClient) Embed(ctx context.Context, deploymentID string, req *EmbeddingsRequest) (*EmbeddingsResponse, http.Header, error) {
	var resp EmbeddingsResponse
	headers, err := c.caller.PostJSON(ctx, path(deploymentID, "embeddings"), req, &resp)
	if err != nil {
		return nil, headers, err
	}
	return &resp, headers, nil
}
