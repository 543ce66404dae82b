package fortune

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/uranai/backend/internal/llm"
	fortunemodel "github.com/zhouzirui/uranai/backend/internal/model/fortune"
	"github.com/zhouzirui/uranai/backend/pkg/utils"
)

// ErrorMessage is the only failure text the caller ever sees.
const ErrorMessage = "占い生成エラー"

// Teller produces the fortunes object for a request.
type Teller interface {
	Tell(ctx context.Context, req fortunemodel.Request) (json.RawMessage, error)
}

// Handler 占卜服务的HTTP处理器
type Handler struct {
	teller Teller
	logger *zap.Logger
}

// New 创建占卜处理器
func New(teller Teller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{teller: teller, logger: logger}
}

// RegisterRoutes 注册占卜相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/fortune", h.handleFortune)
}

// handleFortune 生成占卜结果
func (h *Handler) handleFortune(w http.ResponseWriter, r *http.Request) {
	var req fortunemodel.Request
	// 空请求体按空对象处理，仍然调用模型。
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fortunes, err := h.teller.Tell(r.Context(), req)
	if err != nil {
		h.logger.Error("fortune failed",
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.String("kind", string(llm.KindOf(err))),
			zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, ErrorMessage)
		return
	}

	utils.RespondJSON(w, http.StatusOK, fortunemodel.Result{Fortunes: fortunes})
}
