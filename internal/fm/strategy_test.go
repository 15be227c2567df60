package fm

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/transport"
)

// fakeClient records the last request and replays canned responses.
type fakeClient struct {
	lastDeployment string
	lastChat       *ChatCompletionRequest
	lastEmbed      *EmbeddingRequest

	chatResp  *ChatCompletionResponse
	chatErr   error
	chunks    []ChunkResult
	embedResp *EmbeddingResponse
	embedErr  error

	// block keeps ChatCompletion pending until the context is cancelled.
	block bool
}

func (f *fakeClient) ChatCompletion(ctx context.Context, deploymentID string, req *ChatCompletionRequest) (*ChatCompletionResponse, http.Header, error) {
	f.lastDeployment = deploymentID
	f.lastChat = req
	if f.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	return f.chatResp, nil, f.chatErr
}

func (f *fakeClient) StreamChatCompletion(ctx context.Context, deploymentID string, req *ChatCompletionRequest) (<-chan ChunkResult, error) {
	f.lastDeployment = deploymentID
	f.lastChat = req
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	out := make(chan ChunkResult)
	go func() {
		defer close(out)
		for _, cr := range f.chunks {
			out <- cr
		}
	}()
	return out, nil
}

func (f *fakeClient) Embed(ctx context.Context, deploymentID string, req *EmbeddingRequest) (*EmbeddingResponse, http.Header, error) {
	f.lastDeployment = deploymentID
	f.lastEmbed = req
	return f.embedResp, nil, f.embedErr
}

func testConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		ModelID:      "gpt-4o",
		DeploymentID: "dep-1",
	}
}

func userPrompt(text string) []domain.Message {
	return []domain.Message{{Role: domain.RoleUser, Parts: []domain.ContentPart{domain.TextPart(text)}}}
}

func TestGenerate_HappyPath(t *testing.T) {
	client := &fakeClient{
		chatResp: &ChatCompletionResponse{
			ID:    "resp-1",
			Model: "gpt-4o",
			Choices: []Choice{{
				Message:      ChatMessage{Role: "assistant", Content: "hello back"},
				FinishReason: "stop",
			}},
			Usage: &Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14},
		},
	}
	strategy := NewStrategy(client, nil)

	maxTokens := 128
	result, err := strategy.Generate(context.Background(), testConfig(), domain.FoundationModelsSettings{
		ModelParams: map[string]any{"max_tokens": 512, "temperature": 0.3},
	}, domain.CallOptions{
		Prompt:          userPrompt("hello"),
		MaxOutputTokens: &maxTokens,
	})
	require.NoError(t, err)

	assert.Equal(t, "dep-1", client.lastDeployment)
	// The call option wins over the settings default.
	assert.Equal(t, 128, client.lastChat.Params["max_tokens"])
	assert.Equal(t, 0.3, client.lastChat.Params["temperature"])

	require.Len(t, result.Content, 1)
	assert.Equal(t, "hello back", result.Content[0].Text)
	assert.Equal(t, domain.FinishStop, result.FinishReason.Kind)
	assert.Equal(t, 10, *result.Usage.Input.Total)
	assert.Equal(t, 4, *result.Usage.Output.Total)
	assert.Equal(t, "resp-1", result.ProviderMetadata["responseId"])
}

func TestGenerate_TopKOmittedWithWarning(t *testing.T) {
	client := &fakeClient{
		chatResp: &ChatCompletionResponse{Choices: []Choice{{Message: ChatMessage{Role: "assistant"}}}},
	}
	strategy := NewStrategy(client, nil)

	topK := 40
	result, err := strategy.Generate(context.Background(), testConfig(), domain.FoundationModelsSettings{},
		domain.CallOptions{Prompt: userPrompt("hi"), TopK: &topK})
	require.NoError(t, err)

	_, present := client.lastChat.Params["top_k"]
	assert.False(t, present)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, domain.WarningUnsupportedParam, result.Warnings[0].Kind)
	assert.Equal(t, "top_k", result.Warnings[0].Param)
}

func TestGenerate_ToolsFromSettingsWhenOptionsEmpty(t *testing.T) {
	client := &fakeClient{
		chatResp: &ChatCompletionResponse{Choices: []Choice{{Message: ChatMessage{Role: "assistant"}}}},
	}
	strategy := NewStrategy(client, nil)

	settings := domain.FoundationModelsSettings{
		Tools: []domain.ToolDefinition{{Kind: domain.ToolKindFunction, Name: "lookup"}},
	}
	_, err := strategy.Generate(context.Background(), testConfig(), settings,
		domain.CallOptions{Prompt: userPrompt("hi")})
	require.NoError(t, err)

	require.Len(t, client.lastChat.Tools, 1)
	assert.Equal(t, "lookup", client.lastChat.Tools[0].Function.Name)
}

func TestGenerate_ToolChoiceDroppedWithoutTools(t *testing.T) {
	client := &fakeClient{
		chatResp: &ChatCompletionResponse{Choices: []Choice{{Message: ChatMessage{Role: "assistant"}}}},
	}
	strategy := NewStrategy(client, nil)

	_, err := strategy.Generate(context.Background(), testConfig(), domain.FoundationModelsSettings{},
		domain.CallOptions{
			Prompt:     userPrompt("hi"),
			ToolChoice: &domain.ToolChoice{Kind: domain.ToolChoiceRequired},
		})
	require.NoError(t, err)
	assert.Nil(t, client.lastChat.ToolChoice)
}

func TestGenerate_WrongSettingsVariant(t *testing.T) {
	strategy := NewStrategy(&fakeClient{}, nil)

	_, err := strategy.Generate(context.Background(), testConfig(), domain.OrchestrationSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})

	var capErr *domain.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, domain.BackendFoundationModels, capErr.ActiveBackend)
	assert.Equal(t, domain.BackendOrchestration, capErr.RequiredBackend)
}

func TestGenerate_MissingDeployment(t *testing.T) {
	strategy := NewStrategy(&fakeClient{}, nil)

	_, err := strategy.Generate(context.Background(), domain.StrategyConfig{ModelID: "gpt-4o"},
		domain.FoundationModelsSettings{}, domain.CallOptions{Prompt: userPrompt("hi")})

	var valErr *domain.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "deploymentId", valErr.Field)
}

func TestGenerate_HTTPErrorClassified(t *testing.T) {
	client := &fakeClient{
		chatErr: &transport.HTTPError{
			StatusCode: 429,
			Headers:    http.Header{"Retry-After": []string{"5"}},
			Body:       []byte(`{"error":{"message":"rate limited"}}`),
		},
	}
	strategy := NewStrategy(client, nil)

	_, err := strategy.Generate(context.Background(), testConfig(), domain.FoundationModelsSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})

	var apiErr *domain.APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.Equal(t, "5", apiErr.Headers.Get("Retry-After"))
	assert.Equal(t, domain.BackendFoundationModels, apiErr.Backend)
	assert.False(t, apiErr.Summary.Stream)
}

func TestGenerate_Abort(t *testing.T) {
	client := &fakeClient{block: true}
	strategy := NewStrategy(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := strategy.Generate(ctx, testConfig(), domain.FoundationModelsSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})
	assert.True(t, domain.IsAborted(err))
}

func TestStream_EventSequence(t *testing.T) {
	hello := "Hello"
	stop := "stop"
	client := &fakeClient{
		chunks: []ChunkResult{
			{Chunk: &ChatCompletionChunk{
				ID:      "resp-1",
				Choices: []ChunkChoice{{Delta: ChunkDelta{Content: &hello}}},
			}},
			{Chunk: &ChatCompletionChunk{
				Choices: []ChunkChoice{{Delta: ChunkDelta{}, FinishReason: &stop}},
				Usage:   &Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3},
			}},
		},
	}
	strategy := NewStrategy(client, nil)

	result, err := strategy.Stream(context.Background(), testConfig(), domain.FoundationModelsSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})
	require.NoError(t, err)
	assert.True(t, result.Request.Stream)
	assert.True(t, client.lastChat.Stream)

	var events []domain.StreamEvent
	for event := range result.Events {
		events = append(events, event)
	}

	types := make([]domain.StreamEventType, len(events))
	for i, event := range events {
		types[i] = event.Type
	}
	assert.Equal(t, []domain.StreamEventType{
		domain.EventStreamStart,
		domain.EventResponseMetadata,
		domain.EventTextStart,
		domain.EventTextDelta,
		domain.EventTextEnd,
		domain.EventFinish,
	}, types)

	assert.Equal(t, "resp-1", events[1].ID)
	assert.Equal(t, "Hello", events[3].Delta)
	final := events[len(events)-1]
	assert.Equal(t, domain.FinishStop, final.FinishReason.Kind)
	assert.Equal(t, 3, *final.Usage.Input.Total+*final.Usage.Output.Total)
}

func TestStream_SetupErrorClassified(t *testing.T) {
	client := &fakeClient{chatErr: &transport.HTTPError{StatusCode: 500}}
	strategy := NewStrategy(client, nil)

	_, err := strategy.Stream(context.Background(), testConfig(), domain.FoundationModelsSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})

	var apiErr *domain.APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "stream", apiErr.Operation)
}

func TestStream_MidStreamErrorEmitted(t *testing.T) {
	boom := &transport.HTTPError{StatusCode: 502}
	client := &fakeClient{chunks: []ChunkResult{{Err: boom}}}
	strategy := NewStrategy(client, nil)

	result, err := strategy.Stream(context.Background(), testConfig(), domain.FoundationModelsSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})
	require.NoError(t, err)

	var events []domain.StreamEvent
	for event := range result.Events {
		events = append(events, event)
	}

	final := events[len(events)-1]
	require.Equal(t, domain.EventError, final.Type)
	var apiErr *domain.APICallError
	require.ErrorAs(t, final.Err, &apiErr)
	assert.Equal(t, 502, apiErr.StatusCode)
}

func TestStream_AlreadyCancelled(t *testing.T) {
	strategy := NewStrategy(&fakeClient{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := strategy.Stream(ctx, testConfig(), domain.FoundationModelsSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})
	assert.True(t, domain.IsAborted(err))
}
