package orchestration

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/embeddings"
	"github.com/anhofmann/aicore-go/internal/fm"
	"github.com/anhofmann/aicore-go/internal/transport"
)

func embedVector(t *testing.T, raw string) embeddings.Vector {
	t.Helper()
	var v embeddings.Vector
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

type fakeClient struct {
	lastDeployment string
	lastCompletion *CompletionRequest
	lastEmbed      *EmbeddingsRequest

	completionResp *CompletionResponse
	completionErr  error
	chunks         []ChunkResult
	embedResp      *EmbeddingsResponse
	embedErr       error
}

func (f *fakeClient) Completion(ctx context.Context, deploymentID string, req *CompletionRequest) (*CompletionResponse, http.Header, error) {
	f.lastDeployment = deploymentID
	f.lastCompletion = req
	return f.completionResp, nil, f.completionErr
}

func (f *fakeClient) StreamCompletion(ctx context.Context, deploymentID string, req *CompletionRequest) (<-chan ChunkResult, error) {
	f.lastDeployment = deploymentID
	f.lastCompletion = req
	if f.completionErr != nil {
		return nil, f.completionErr
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

func (f *fakeClient) Embed(ctx context.Context, deploymentID string, req *EmbeddingsRequest) (*EmbeddingsResponse, http.Header, error) {
	f.lastDeployment = deploymentID
	f.lastEmbed = req
	return f.embedResp, nil, f.embedErr
}

func testConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		ModelID:      "gpt-4o",
		DeploymentID: "dep-orch",
	}
}

func userPrompt(text string) []domain.Message {
	return []domain.Message{{Role: domain.RoleUser, Parts: []domain.ContentPart{domain.TextPart(text)}}}
}

func okResponse(content string) *CompletionResponse {
	return &CompletionResponse{
		RequestID: "req-1",
		OrchestrationResult: fm.ChatCompletionResponse{
			ID:    "resp-1",
			Model: "gpt-4o",
			Choices: []fm.Choice{{
				Message:      fm.ChatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			}},
			Usage: &fm.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
		},
	}
}

func TestGenerate_AssemblesModuleConfigurations(t *testing.T) {
	client := &fakeClient{completionResp: okResponse("hi there")}
	strategy := NewStrategy(client, nil)

	temp := 0.7
	topK := 40
	result, err := strategy.Generate(context.Background(), testConfig(), domain.OrchestrationSettings{
		ModelParams: map[string]any{"max_tokens": 256},
		Filtering:   map[string]any{"input": map[string]any{"filters": []any{}}},
	}, domain.CallOptions{
		Prompt:      userPrompt("hello"),
		Temperature: &temp,
		TopK:        &topK,
	})
	require.NoError(t, err)

	req := client.lastCompletion
	require.NotNil(t, req.Config)
	assert.Empty(t, req.ConfigRef)

	llm := req.Config.Modules.LLM
	assert.Equal(t, "gpt-4o", llm.ModelName)
	assert.Equal(t, "latest", llm.ModelVersion)
	assert.Equal(t, 0.7, llm.ModelParams["temperature"])
	// top_k is representable on this backend, unlike foundation-models.
	assert.Equal(t, 40, llm.ModelParams["top_k"])
	assert.Equal(t, 256, llm.ModelParams["max_tokens"])

	assert.NotNil(t, req.Config.Modules.Filtering)

	require.Len(t, result.Content, 1)
	assert.Equal(t, "hi there", result.Content[0].Text)
	assert.Equal(t, "req-1", result.ProviderMetadata["requestId"])
	assert.Equal(t, "resp-1", result.ProviderMetadata["responseId"])
	assert.Equal(t, 7, *result.Usage.Input.Total)
}

func TestGenerate_PromptBecomesEscapedTemplate(t *testing.T) {
	client := &fakeClient{completionResp: okResponse("ok")}
	strategy := NewStrategy(client, nil)

	_, err := strategy.Generate(context.Background(), testConfig(), domain.OrchestrationSettings{},
		domain.CallOptions{Prompt: userPrompt("render {{this}} literally")})
	require.NoError(t, err)

	tmpl := client.lastCompletion.Config.Modules.Templating.Template
	require.Len(t, tmpl, 1)
	assert.Equal(t, "render {{ '{{' }}this}} literally", tmpl[0].Content)
	assert.Empty(t, client.lastCompletion.MessagesHistory)
}

func TestGenerate_EscapingDisabled(t *testing.T) {
	client := &fakeClient{completionResp: okResponse("ok")}
	strategy := NewStrategy(client, nil)

	off := false
	_, err := strategy.Generate(context.Background(), testConfig(), domain.OrchestrationSettings{
		EscapeTemplatePlaceholders: &off,
	}, domain.CallOptions{Prompt: userPrompt("use {{?placeholder}} here")})
	require.NoError(t, err)

	tmpl := client.lastCompletion.Config.Modules.Templating.Template
	require.Len(t, tmpl, 1)
	assert.Equal(t, "use {{?placeholder}} here", tmpl[0].Content)
}

func TestGenerate_InlineTemplateWithHistory(t *testing.T) {
	client := &fakeClient{completionResp: okResponse("ok")}
	strategy := NewStrategy(client, nil)

	settings := domain.OrchestrationSettings{
		Template: []domain.Message{
			{Role: domain.RoleSystem, Parts: []domain.ContentPart{domain.TextPart("answer about {{?topic}}")}},
		},
		Placeholders: map[string]string{"topic": "weather"},
	}
	_, err := strategy.Generate(context.Background(), testConfig(), settings,
		domain.CallOptions{Prompt: userPrompt("and today?")})
	require.NoError(t, err)

	req := client.lastCompletion
	tmpl := req.Config.Modules.Templating.Template
	require.Len(t, tmpl, 1)
	// Authored templates keep their placeholder syntax verbatim.
	assert.Equal(t, "answer about {{?topic}}", tmpl[0].Content)
	assert.Equal(t, map[string]string{"topic": "weather"}, req.InputParams)
	require.Len(t, req.MessagesHistory, 1)
	assert.Equal(t, "and today?", req.MessagesHistory[0].Content)
}

func TestGenerate_TemplateRef(t *testing.T) {
	client := &fakeClient{completionResp: okResponse("ok")}
	strategy := NewStrategy(client, nil)

	settings := domain.OrchestrationSettings{
		TemplateRef: &domain.TemplateRef{Scenario: "support", Name: "triage", Version: "1.0.0"},
	}
	_, err := strategy.Generate(context.Background(), testConfig(), settings,
		domain.CallOptions{Prompt: userPrompt("help")})
	require.NoError(t, err)

	ref := client.lastCompletion.Config.Modules.Templating.TemplateRef
	require.NotNil(t, ref)
	assert.Equal(t, "support", ref.Scenario)
	assert.Equal(t, "triage", ref.Name)
	require.Len(t, client.lastCompletion.MessagesHistory, 1)
}

func TestGenerate_ConfigRefReducedMode(t *testing.T) {
	client := &fakeClient{completionResp: okResponse("ok")}
	strategy := NewStrategy(client, nil)

	temp := 0.5
	result, err := strategy.Generate(context.Background(), testConfig(), domain.OrchestrationSettings{
		ConfigRef:    "cfg-123",
		ModelParams:  map[string]any{"max_tokens": 100},
		Filtering:    map[string]any{"x": 1},
		Placeholders: map[string]string{"k": "v"},
	}, domain.CallOptions{
		Prompt:      userPrompt("hi"),
		Temperature: &temp,
	})
	require.NoError(t, err)

	req := client.lastCompletion
	assert.Nil(t, req.Config)
	assert.Equal(t, "cfg-123", req.ConfigRef)
	assert.Equal(t, map[string]string{"k": "v"}, req.InputParams)
	require.Len(t, req.MessagesHistory, 1)

	// Everything that could not be honored is reported exactly once.
	require.Len(t, result.Warnings, 1)
	warning := result.Warnings[0]
	assert.Equal(t, domain.WarningIgnoredSettings, warning.Kind)
	assert.Contains(t, warning.Message, "modelParams")
	assert.Contains(t, warning.Message, "filtering")
	assert.Contains(t, warning.Message, "generation parameters")
}

func TestGenerate_ConfigRefWithoutExtrasHasNoWarning(t *testing.T) {
	client := &fakeClient{completionResp: okResponse("ok")}
	strategy := NewStrategy(client, nil)

	result, err := strategy.Generate(context.Background(), testConfig(), domain.OrchestrationSettings{
		ConfigRef: "cfg-123",
	}, domain.CallOptions{Prompt: userPrompt("hi")})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
}

func TestGenerate_WrongSettingsVariant(t *testing.T) {
	strategy := NewStrategy(&fakeClient{}, nil)

	_, err := strategy.Generate(context.Background(), testConfig(), domain.FoundationModelsSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})

	var capErr *domain.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, domain.BackendOrchestration, capErr.ActiveBackend)
	assert.Equal(t, domain.BackendFoundationModels, capErr.RequiredBackend)
}

func TestGenerate_HTTPErrorClassified(t *testing.T) {
	client := &fakeClient{completionErr: &transport.HTTPError{StatusCode: 403}}
	strategy := NewStrategy(client, nil)

	_, err := strategy.Generate(context.Background(), testConfig(), domain.OrchestrationSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})

	var apiErr *domain.APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.StatusCode)
	assert.Equal(t, domain.BackendOrchestration, apiErr.Backend)
}

func TestStream_EventSequenceWithRequestID(t *testing.T) {
	delta := "partial"
	stop := "stop"
	client := &fakeClient{
		chunks: []ChunkResult{
			{Chunk: &CompletionChunk{
				RequestID: "req-9",
				OrchestrationResult: fm.ChatCompletionChunk{
					Choices: []fm.ChunkChoice{{Delta: fm.ChunkDelta{Content: &delta}}},
				},
			}},
			{Chunk: &CompletionChunk{
				RequestID: "req-9",
				OrchestrationResult: fm.ChatCompletionChunk{
					Choices: []fm.ChunkChoice{{FinishReason: &stop}},
					Usage:   &fm.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
				},
			}},
		},
	}
	strategy := NewStrategy(client, nil)

	result, err := strategy.Stream(context.Background(), testConfig(), domain.OrchestrationSettings{},
		domain.CallOptions{Prompt: userPrompt("hi")})
	require.NoError(t, err)
	require.NotNil(t, client.lastCompletion.Config)
	assert.True(t, client.lastCompletion.Config.Stream)

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

	// The orchestration request id stands in for the missing response id.
	assert.Equal(t, "req-9", events[1].ID)
	assert.Equal(t, "partial", events[3].Delta)
	assert.Equal(t, domain.FinishStop, events[len(events)-1].FinishReason.Kind)
}

func TestEmbed_BuildsModuleRequest(t *testing.T) {
	client := &fakeClient{
		embedResp: &EmbeddingsResponse{
			RequestID: "req-2",
			FinalResult: fm.EmbeddingResponse{
				Model: "text-embedding-3-small",
				Data: []fm.EmbeddingItem{
					{Index: 0, Embedding: embedVector(t, `[1, 2]`)},
				},
				Usage: &fm.EmbeddingUsage{PromptTokens: 2, TotalTokens: 2},
			},
		},
	}
	embedder := NewEmbedder(client, nil)

	result, err := embedder.Embed(context.Background(), testConfig(), domain.OrchestrationSettings{
		ModelParams: map[string]any{"dimensions": 2},
	}, []string{"a"}, domain.EmbedOptions{}, 10)
	require.NoError(t, err)

	model := client.lastEmbed.Config.Modules.Embeddings.Model
	assert.Equal(t, "gpt-4o", model.Name)
	assert.Equal(t, 2, model.Params["dimensions"])
	assert.Equal(t, []string{"a"}, client.lastEmbed.Input.Text)

	require.Len(t, result.Embeddings, 1)
	assert.Equal(t, domain.Embedding{1, 2}, result.Embeddings[0])
	assert.Equal(t, 2, result.Usage.Tokens)
	assert.Equal(t, "req-2", result.ProviderMetadata["requestId"])
}

func TestEmbed_TooManyValues(t *testing.T) {
	embedder := NewEmbedder(&fakeClient{}, nil)

	_, err := embedder.Embed(context.Background(), testConfig(), domain.OrchestrationSettings{},
		[]string{"a", "b"}, domain.EmbedOptions{}, 1)

	var tooMany *domain.TooManyValuesError
	require.ErrorAs(t, err, &tooMany)
}
