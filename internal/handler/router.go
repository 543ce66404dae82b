package handler

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/zhouzirui/uranai/backend/internal/handler/chat"
	"github.com/zhouzirui/uranai/backend/internal/handler/fortune"
	"github.com/zhouzirui/uranai/backend/internal/handler/persona"
	personaModel "github.com/zhouzirui/uranai/backend/internal/model/persona"
	"github.com/zhouzirui/uranai/backend/pkg/utils"
)

// Health is reported by GET /api/health. It never carries credentials.
type Health struct {
	Status        string `json:"status"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	LLMConfigured bool   `json:"llmConfigured"`
}

// Dependencies 路由需要的服务集合。
type Dependencies struct {
	Personas       personaModel.Store
	Fortune        fortune.Teller
	Relay          chat.Relayer
	Health         Health
	AllowedOrigins []string
	StaticDir      string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&zapLogFormatter{logger: logger.Named("http")}))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	personaHandler := persona.New(deps.Personas)
	fortuneHandler := fortune.New(deps.Fortune, logger.Named("fortune"))
	chatHandler := chat.New(deps.Relay, deps.AllowedOrigins, logger.Named("websocket"))

	health := deps.Health
	if health.Status == "" {
		health.Status = "ok"
	}

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		fortuneHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, health)
		})
	})

	if deps.StaticDir != "" {
		if info, err := os.Stat(deps.StaticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(deps.StaticDir)))
		} else {
			logger.Info("static directory not found, skipping", zap.String("dir", deps.StaticDir))
		}
	}

	return r
}
