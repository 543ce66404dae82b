package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/uranai/backend/internal/config"
	"github.com/zhouzirui/uranai/backend/internal/handler"
	"github.com/zhouzirui/uranai/backend/internal/model/persona"
	"github.com/zhouzirui/uranai/backend/internal/service/ai"
	"github.com/zhouzirui/uranai/backend/internal/service/chat"
	"github.com/zhouzirui/uranai/backend/internal/service/fortune"
	"github.com/zhouzirui/uranai/backend/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Warn("failed to load .env file, continuing with system environment variables only", zap.Error(envErr))
	}

	personas := persona.Seed()
	if cfg.Persona.File != "" {
		personas, err = persona.LoadFile(cfg.Persona.File)
		if err != nil {
			logger.Fatal("failed to load persona file", zap.String("path", cfg.Persona.File), zap.Error(err))
		}
	}
	personaStore := persona.NewMemoryStore(personas)

	template, err := fortune.LoadTemplate(cfg.Fortune.TemplatePath)
	if err != nil {
		logger.Fatal("failed to load fortune prompt template", zap.String("path", cfg.Fortune.TemplatePath), zap.Error(err))
	}

	llmLogger := logger.Named("llm")
	textModel, err := cfg.LLM.NewChatModel(ctx, false, llmLogger)
	if err != nil {
		logger.Fatal("failed to create chat model", zap.Error(err))
	}
	jsonModel, err := cfg.LLM.NewChatModel(ctx, true, llmLogger)
	if err != nil {
		logger.Fatal("failed to create json chat model", zap.Error(err))
	}

	if !cfg.LLM.Enabled() {
		logger.Warn("LLM credentials are not configured, fortune and chat requests will fail",
			zap.String("provider", cfg.LLM.Provider))
	}

	aiService, err := ai.NewService(textModel, jsonModel, ai.Options{
		Timeout: cfg.LLM.Timeout,
		Logger:  llmLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialize AI service", zap.Error(err))
	}

	fortuneService := fortune.NewService(aiService, template, logger.Named("fortune"))
	chatService := chat.NewService(personaStore, aiService, logger.Named("relay"))

	router := handler.NewRouter(handler.Dependencies{
		Personas: personaStore,
		Fortune:  fortuneService,
		Relay:    chatService,
		Health: handler.Health{
			Provider:      cfg.LLM.Provider,
			Model:         cfg.LLM.Model,
			LLMConfigured: cfg.LLM.Enabled(),
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("uranai backend listening", zap.String("addr", cfg.Server.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
