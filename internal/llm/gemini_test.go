package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type geminiRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
	GenerationConfig map[string]any `json:"generationConfig"`
}

type geminiStub struct {
	mu       sync.Mutex
	requests []geminiRequest
	paths    []string
	keys     []string
}

func (s *geminiStub) last() (geminiRequest, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.requests) - 1
	return s.requests[n], s.paths[n], s.keys[n]
}

func newGeminiTestModel(t *testing.T, jsonObject bool, status int, body string) (*GeminiChatModel, *geminiStub) {
	t.Helper()
	stub := &geminiStub{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		stub.mu.Lock()
		stub.requests = append(stub.requests, req)
		stub.paths = append(stub.paths, r.URL.Path)
		stub.keys = append(stub.keys, r.Header.Get("x-goog-api-key"))
		stub.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	m, err := NewGeminiChatModel(context.Background(), GeminiConfig{
		APIKey:     "gemini-key",
		Model:      "gemini-test",
		JSONObject: jsonObject,
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	gm, ok := m.(*GeminiChatModel)
	require.True(t, ok)
	return gm, stub
}

const geminiReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"  星が味方  "}]}}]}`

func TestGeminiMapsRoles(t *testing.T) {
	m, stub := newGeminiTestModel(t, false, http.StatusOK, geminiReply)

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("あなたは占い師です"),
		schema.UserMessage("今日の運勢は？"),
		schema.AssistantMessage("大吉です", nil),
		schema.UserMessage("本当に？"),
	})
	require.NoError(t, err)
	assert.Equal(t, "星が味方", msg.Content)

	req, path, key := stub.last()
	assert.True(t, strings.HasSuffix(path, "gemini-test:generateContent"), path)
	assert.Equal(t, "gemini-key", key)

	require.NotNil(t, req.SystemInstruction)
	require.Len(t, req.SystemInstruction.Parts, 1)
	assert.Equal(t, "あなたは占い師です", req.SystemInstruction.Parts[0].Text)

	require.Len(t, req.Contents, 3)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	assert.Equal(t, "大吉です", req.Contents[1].Parts[0].Text)
	assert.Equal(t, "user", req.Contents[2].Role)
	assert.Nil(t, req.GenerationConfig["responseMimeType"])
}

func TestGeminiSystemOnlyPromptIsSentAsUserContent(t *testing.T) {
	m, stub := newGeminiTestModel(t, true, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"{\"fortunes\":{}}"}]}}]}`)

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.SystemMessage("占いテンプレート")})
	require.NoError(t, err)
	assert.Equal(t, `{"fortunes":{}}`, msg.Content)

	req, _, _ := stub.last()
	assert.Nil(t, req.SystemInstruction)
	require.Len(t, req.Contents, 1)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "占いテンプレート", req.Contents[0].Parts[0].Text)
	assert.Equal(t, "application/json", req.GenerationConfig["responseMimeType"])
}

func TestGeminiEmptyCandidates(t *testing.T) {
	for _, body := range []string{
		`{"candidates":[]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"   "}]}}]}`,
	} {
		jsonModel, _ := newGeminiTestModel(t, true, http.StatusOK, body)
		_, err := jsonModel.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
		assert.Equal(t, KindShape, KindOf(err), body)

		textModel, _ := newGeminiTestModel(t, false, http.StatusOK, body)
		msg, err := textModel.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
		require.NoError(t, err, body)
		assert.Empty(t, msg.Content, body)
	}
}

func TestGeminiHTTPError(t *testing.T) {
	m, _ := newGeminiTestModel(t, true, http.StatusBadRequest,
		`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, KindHTTP, llmErr.Kind)
	assert.Equal(t, http.StatusBadRequest, llmErr.Status)
	assert.NotContains(t, err.Error(), "API key not valid")
}

func TestGeminiWithoutKeyIsUnconfigured(t *testing.T) {
	m, err := NewGeminiChatModel(context.Background(), GeminiConfig{})
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), nil)
	assert.Equal(t, KindConfig, KindOf(err))
}
