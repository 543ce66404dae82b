package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/uranai/backend/internal/config"
	"github.com/zhouzirui/uranai/backend/internal/service/ai"
	"github.com/zhouzirui/uranai/backend/pkg/utils"
)

var (
	timeout time.Duration
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fortunetester",
	Short: "手动调用占卜与聊天接力，验证当前 LLM 配置",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
		}
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "请求超时时间")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.AddCommand(fortuneCmd, chatCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// toolkit 是子命令共用的配置与模型服务。
type toolkit struct {
	cfg    *config.Config
	ai     *ai.Service
	logger *zap.Logger
}

func newToolkit(ctx context.Context) (*toolkit, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("配置加载失败: %w", err)
	}
	if !cfg.LLM.Enabled() {
		return nil, fmt.Errorf("LLM 凭证未配置 (provider=%s)", cfg.LLM.Provider)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := utils.NewLogger(level, true)
	if err != nil {
		return nil, err
	}

	textModel, err := cfg.LLM.NewChatModel(ctx, false, logger.Named("llm"))
	if err != nil {
		return nil, err
	}
	jsonModel, err := cfg.LLM.NewChatModel(ctx, true, logger.Named("llm"))
	if err != nil {
		return nil, err
	}

	svc, err := ai.NewService(textModel, jsonModel, ai.Options{Timeout: cfg.LLM.Timeout, Logger: logger.Named("llm")})
	if err != nil {
		return nil, err
	}
	return &toolkit{cfg: cfg, ai: svc, logger: logger}, nil
}
