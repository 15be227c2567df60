package fm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhofmann/aicore-go/internal/testutil"
	"github.com/anhofmann/aicore-go/internal/transport"
)

func TestHTTPClient_ChatCompletion_Cassette(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "chat_completion")
	defer cleanup()

	caller := transport.NewCaller("https://api.ai.example.com", transport.StaticToken("t"),
		transport.WithHTTPClient(testutil.VCRHTTPClient(r)))
	client := NewClient(caller, "")

	maxTokens := 64
	resp, headers, err := client.ChatCompletion(context.Background(), "dep-1", &ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Say hello."}},
		Params:   map[string]any{"max_tokens": maxTokens},
	})
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-9qVCR1", resp.ID)
	assert.Equal(t, "gpt-4o-2024-08-06", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Hello! How can I help you today?", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.Equal(t, "req-vcr-1", headers.Get("X-Request-Id"))
}
