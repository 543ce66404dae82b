package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, jsonObject bool, handler http.HandlerFunc) (*OpenAIChatModel, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return NewOpenAIChatModel(OpenAIConfig{
		APIKey:     "test-key",
		Endpoint:   srv.URL,
		Model:      "gpt-4o",
		JSONObject: jsonObject,
		HTTPClient: srv.Client(),
	}), &calls
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}

func TestGenerateSendsJSONObjectRequest(t *testing.T) {
	var got chatRequest
	var auth string
	m, _ := newTestModel(t, true, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, `  {"fortunes":{}}  `)
	})

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.SystemMessage("prompt")})
	require.NoError(t, err)

	assert.Equal(t, `{"fortunes":{}}`, msg.Content)
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "gpt-4o", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, chatMessage{Role: "system", Content: "prompt"}, got.Messages[0])
}

func TestGenerateTextModeOmitsResponseFormat(t *testing.T) {
	var raw map[string]json.RawMessage
	m, _ := newTestModel(t, false, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeCompletion(w, "hello")
	})

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.NotContains(t, raw, "response_format")
}

func TestGenerateMissingAPIKeySkipsRequest(t *testing.T) {
	m, calls := newTestModel(t, true, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "{}")
	})
	m.cfg.APIKey = ""

	_, err := m.Generate(context.Background(), []*schema.Message{schema.SystemMessage("prompt")})
	require.Error(t, err)
	assert.Equal(t, KindConfig, KindOf(err))
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestGenerateFailureKinds(t *testing.T) {
	cases := []struct {
		name       string
		jsonObject bool
		handler    http.HandlerFunc
		want       Kind
	}{
		{
			name:       "http status",
			jsonObject: true,
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
			},
			want: KindHTTP,
		},
		{
			name:       "body not json",
			jsonObject: true,
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			want: KindParse,
		},
		{
			name:       "error field",
			jsonObject: false,
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
			},
			want: KindUpstream,
		},
		{
			name:       "missing choices",
			jsonObject: true,
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"x"}`))
			},
			want: KindShape,
		},
		{
			name:       "missing message",
			jsonObject: true,
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop"}]}`))
			},
			want: KindShape,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newTestModel(t, tc.jsonObject, tc.handler)
			_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
			require.Error(t, err)
			assert.Equal(t, tc.want, KindOf(err))
		})
	}
}

func TestGenerateHTTPErrorKeepsBodyOutOfMessage(t *testing.T) {
	m, _ := newTestModel(t, true, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "secret upstream detail", http.StatusBadGateway)
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, http.StatusBadGateway, llmErr.Status)
	assert.Contains(t, llmErr.Detail, "secret upstream detail")
	assert.NotContains(t, err.Error(), "secret upstream detail")
}

func TestGenerateTextModeMissingChoicesReturnsEmpty(t *testing.T) {
	m, _ := newTestModel(t, false, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
	require.NoError(t, err)
	assert.Empty(t, msg.Content)
}

func TestStreamYieldsSingleMessage(t *testing.T) {
	m, _ := newTestModel(t, false, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "streamed")
	})

	stream, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("x")})
	require.NoError(t, err)
	defer stream.Close()

	msg, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "streamed", msg.Content)
}

func TestUnconfiguredChatModelFailsWithConfigKind(t *testing.T) {
	_, err := UnconfiguredChatModel{Provider: "ark"}.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfig))
}
