package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/uranai/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/uranai/backend/internal/service/chat"
	"github.com/zhouzirui/uranai/backend/pkg/utils"
)

// Relayer runs the sequential persona relay for one user message.
type Relayer interface {
	Relay(ctx context.Context, userMessage string, emit chatservice.EmitFunc) error
}

// Handler 聊天接力的处理器，提供 WebSocket 与 SSE 两种通道。
type Handler struct {
	relay    Relayer
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// New 创建聊天处理器。allowedOrigins 包含 "*" 时接受任意来源的 WebSocket 连接。
func New(relay Relayer, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		relay:  relay,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
	r.Get("/chat/stream", h.handleStream)
}

// handleStream relays one message over Server-Sent Events and finishes with a done event.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	err := h.relay.Relay(r.Context(), message, func(reply chat.Reply) error {
		return utils.SendSSEEvent(w, flusher, chat.EventAIMessage, reply)
	})

	if err != nil && !systemReplied(err) {
		h.logger.Warn("sse relay interrupted", zap.Error(err))
		return
	}

	if err := utils.SendSSEEvent(w, flusher, chat.EventDone, map[string]bool{"ok": err == nil}); err != nil {
		h.logger.Warn("failed to send done event", zap.Error(err))
	}
}

// systemReplied reports whether the relay already told the client about the
// failure with a system reply, as opposed to losing the connection.
func systemReplied(err error) bool {
	var personaErr *chatservice.PersonaError
	return errors.As(err, &personaErr) || errors.Is(err, chatservice.ErrNoPersonas)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, candidate := range allowed {
			if strings.EqualFold(candidate, origin) {
				return true
			}
		}
		return false
	}
}
