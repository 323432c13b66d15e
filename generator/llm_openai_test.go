package generator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, reply string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, captured)
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "m",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAILLMSendsTextOnlyAsString(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, "copy text", &body)
	defer srv.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "qwen", APIKey: "not-needed", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	out, err := llm.Complete(context.Background(), TextMessage("write copy"))
	require.NoError(t, err)
	assert.Equal(t, "copy text", out)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	m := msgs[0].(map[string]any)
	assert.Equal(t, "user", m["role"])
	assert.Equal(t, "write copy", m["content"])
	assert.Equal(t, "qwen", body["model"])
}

func TestOpenAILLMSendsImageParts(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, "ok", &body)
	defer srv.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "qwen-vl", APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = llm.Complete(context.Background(), BuildMessage("look", [][]byte{pngBytes}))
	require.NoError(t, err)

	content := body["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].(map[string]any)["type"])
	img := content[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	url := img["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"), url)
}

func TestNewLLMProviders(t *testing.T) {
	ctx := context.Background()

	_, err := NewLLM(ctx, nil)
	assert.Error(t, err)

	_, err = NewLLM(ctx, &LLMSettings{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k"})
	assert.ErrorContains(t, err, "base_url")

	_, err = NewLLM(ctx, &LLMSettings{Provider: "unknown", Model: "m", APIKey: "k"})
	assert.ErrorContains(t, err, "not supported")

	c, err := NewLLM(ctx, &LLMSettings{Provider: "vllm", Model: "m", APIKey: "k", BaseURL: "http://localhost:8000/v1"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAILLM{}, c)

	_, err = NewLLM(ctx, &LLMSettings{Provider: "openai", Model: "", APIKey: "k"})
	assert.Error(t, err)
}

func TestModelsSelect(t *testing.T) {
	text := NewMockLLM("text", "t")
	vision := NewMockLLM("vision", "v")

	m := Models{Text: text, Vision: vision}
	assert.Same(t, text, m.Select(false))
	assert.Same(t, vision, m.Select(true))

	onlyText := Models{Text: text}
	assert.Same(t, text, onlyText.Select(true))
}
