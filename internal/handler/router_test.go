package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	chatmodel "github.com/zhouzirui/uranai/backend/internal/model/chat"
	fortunemodel "github.com/zhouzirui/uranai/backend/internal/model/fortune"
	"github.com/zhouzirui/uranai/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/uranai/backend/internal/service/chat"
)

type stubTeller struct{}

func (stubTeller) Tell(context.Context, fortunemodel.Request) (json.RawMessage, error) {
	return json.RawMessage(`{"western":{"type":"西洋占星術","result":"良好","luck":"★★★★☆"}}`), nil
}

type stubRelay struct{}

func (stubRelay) Relay(_ context.Context, _ string, emit chatservice.EmitFunc) error {
	return emit(chatmodel.Reply{Agent: "western", Name: "西洋占星術AI", Message: "ok"})
}

func newTestRouter(t *testing.T, staticDir string, origins []string) http.Handler {
	t.Helper()
	return NewRouter(Dependencies{
		Personas:       persona.NewMemoryStore(persona.Seed()),
		Fortune:        stubTeller{},
		Relay:          stubRelay{},
		Health:         Health{Provider: "openai", Model: "gpt-4o", LLMConfigured: true},
		AllowedOrigins: origins,
		StaticDir:      staticDir,
	})
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, "", []string{"*"}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","provider":"openai","model":"gpt-4o","llmConfigured":true}`, rr.Body.String())
}

func TestAPIRoutesAreMounted(t *testing.T) {
	r := newTestRouter(t, "", []string{"*"})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/fortune", strings.NewReader(`{"birthDate":"1990-01-01"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"fortunes"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/personas", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/chat/stream?message=hi", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "event: done")
}

func TestCORSRestrictsOrigins(t *testing.T) {
	r := newTestRouter(t, "", []string{"https://uranai.example"})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://uranai.example")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, "https://uranai.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticFilesServedWhenDirExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>占い</h1>"), 0o644))

	rr := httptest.NewRecorder()
	newTestRouter(t, dir, []string{"*"}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "占い")

	rr = httptest.NewRecorder()
	newTestRouter(t, filepath.Join(dir, "missing"), []string{"*"}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAccessLogGoesThroughZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewRouter(Dependencies{
		Personas:       persona.NewMemoryStore(persona.Seed()),
		Fortune:        stubTeller{},
		Relay:          stubRelay{},
		AllowedOrigins: []string{"*"},
		Logger:         zap.New(core),
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/personas", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "http", entries[0].LoggerName)
	assert.Equal(t, "/api/personas", fields["path"])
	assert.Equal(t, http.MethodGet, fields["method"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.NotEmpty(t, fields["requestId"])
}

func TestPanicIsRecoveredAndLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewRouter(Dependencies{
		Personas:       persona.NewMemoryStore(persona.Seed()),
		Fortune:        panickingTeller{},
		Relay:          stubRelay{},
		AllowedOrigins: []string{"*"},
		Logger:         zap.New(core),
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/fortune", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 1, logs.FilterMessage("request panicked").Len())
}

type panickingTeller struct{}

func (panickingTeller) Tell(context.Context, fortunemodel.Request) (json.RawMessage, error) {
	panic("teller exploded")
}
