package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/uranai/backend/internal/model/chat"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
)

// handleWebSocket 处理WebSocket连接。每条 user-message 在读循环中同步完成接力，
// 因此同一连接上的消息按到达顺序处理，且只有这一个 goroutine 写数据帧。
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("conn", uuid.NewString()))
	logger.Info("websocket connected", zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		logger.Info("websocket closed")
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		pingLoop(ctx, conn)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg chat.Envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			if err := send(conn, chat.EventError, errorPayload("invalid message")); err != nil {
				return
			}
			continue
		}

		switch msg.Event {
		case chat.EventUserMessage:
			if err := h.handleUserMessage(ctx, conn, logger, msg.Data); err != nil {
				logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		default:
			if err := send(conn, chat.EventError, errorPayload("unsupported event")); err != nil {
				return
			}
		}

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// handleUserMessage returns an error only when the connection can no longer be written.
func (h *Handler) handleUserMessage(ctx context.Context, conn *websocket.Conn, logger *zap.Logger, data json.RawMessage) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return send(conn, chat.EventError, errorPayload("invalid message"))
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// 接力期间不读取连接，pong 无法续期，暂时取消读超时。
	_ = conn.SetReadDeadline(time.Time{})

	err := h.relay.Relay(ctx, text, func(reply chat.Reply) error {
		return send(conn, chat.EventAIMessage, reply)
	})

	if err != nil && !systemReplied(err) {
		return err
	}
	if err != nil {
		logger.Debug("relay ended with system reply", zap.Error(err))
	}
	return nil
}

func send(conn *websocket.Conn, event string, data any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(chat.OutboundEnvelope{Event: event, Data: data})
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
