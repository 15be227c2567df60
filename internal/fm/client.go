package fm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/anhofmann/aicore-go/internal/transport"
)

// defaultAPIVersion pins the azure-openai wire contract the deployment
// endpoints speak.
const defaultAPIVersion = "2024-10-21"

// ChunkResult wraps one decoded streaming chunk or a transport error.
type ChunkResult struct {
	Chunk *ChatCompletionChunk
	Err   error
}

// Client is the deployment-scoped inference surface of this backend.
type Client interface {
	ChatCompletion(ctx context.Context, deploymentID string, req *ChatCompletionRequest) (*ChatCompletionResponse, http.Header, error)
	StreamChatCompletion(ctx context.Context, deploymentID string, req *ChatCompletionRequest) (<-chan ChunkResult, error)
	Embed(ctx context.Context, deploymentID string, req *EmbeddingRequest) (*EmbeddingResponse, http.Header, error)
}

// HTTPClient implements Client against an AI Core inference base URL.
type HTTPClient struct {
	caller     *transport.Caller
	apiVersion string
}

// NewClient creates an HTTPClient. apiVersion may be empty to use the
// pinned default.
func NewClient(caller *transport.Caller, apiVersion string) *HTTPClient {
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &HTTPClient{caller: caller, apiVersion: apiVersion}
}

func (c *HTTPClient) path(deploymentID, endpoint string) string {
	return fmt.Sprintf("/v2/inference/deployments/%s/%s?api-version=%s",
		url.PathEscape(deploymentID), endpoint, url.QueryEscape(c.apiVersion))
}

// ChatCompletion performs a one-shot completion call.
func (c *HTTPClient) ChatCompletion(ctx context.Context, deploymentID string, req *ChatCompletionRequest) (*ChatCompletionResponse, http.Header, error) {
	var resp ChatCompletionResponse
	headers, err := c.caller.PostJSON(ctx, c.path(deploymentID, "chat/completions"), req, &resp)
	if err != nil {
		return nil, headers, err
	}
	return &resp, headers, nil
}

// StreamChatCompletion starts a streaming completion call and decodes the
// SSE payloads into chunks. The returned channel closes when the stream
// ends or after the first error.
func (c *HTTPClient) StreamChatCompletion(ctx context.Context, deploymentID string, req *ChatCompletionRequest) (<-chan ChunkResult, error) {
	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	events, err := c.caller.PostSSE(ctx, c.path(deploymentID, "chat/completions"), req)
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
			var chunk ChatCompletionChunk
			if err := json.Unmarshal(event.Data, &chunk); err != nil {
				out <- ChunkResult{Err: fmt.Errorf("failed to decode stream chunk: %w", err)}
				return
			}
			out <- ChunkResult{Chunk: &chunk}
		}
	}()
	return out, nil
}

// Embed performs an embedding call.
func (c *HTTPClient) Embed(ctx context.Context, deploymentID string, req *EmbeddingRequest) (*EmbeddingResponse, http.Header, error) {
	var resp EmbeddingResponse
	headers, err := c.caller.PostJSON(ctx, c.path(deploymentID, "embeddings"), req, &resp)
	if err != nil {
		return nil, headers, err
	}
	return &resp, headers, nil
}
