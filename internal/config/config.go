package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"

	"github.com/zhouzirui/uranai/backend/internal/llm"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Fortune FortuneConfig
	Persona PersonaConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	llmCfg, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		LLM:     llmCfg,
		Fortune: FortuneConfig{TemplatePath: getEnvOrDefault("PROMPT_TEMPLATE_PATH", "prompts/fortune.md")},
		Persona: PersonaConfig{File: strings.TrimSpace(os.Getenv("PERSONA_FILE"))},
		Log:     logCfg,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	StaticDir      string
	AllowedOrigins []string
}

// FortuneConfig 描述占卜模板的位置。
type FortuneConfig struct {
	TemplatePath string
}

// PersonaConfig 可选的角色 YAML 文件，为空时使用内置角色。
type PersonaConfig struct {
	File string
}

// LogConfig 描述日志级别。
type LogConfig struct {
	Level       string
	Development bool
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	cfg := ServerConfig{
		StaticDir:      getEnvOrDefault("STATIC_DIR", "public"),
		AllowedOrigins: parseListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// Provider names accepted by LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
)

// LLMConfig 描述大模型相关配置。
type LLMConfig struct {
	Provider     string
	APIKey       string
	Endpoint     string
	Model        string
	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkBaseURL   string
	ArkRegion    string
	GeminiAPIKey string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	Timeout      time.Duration
}

// Enabled 表示当前 provider 是否提供了必需的密钥。
func (c LLMConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != ""))
	case ProviderGemini:
		return c.GeminiAPIKey != ""
	default:
		return c.APIKey != ""
	}
}

// NewChatModel 使用配置创建一个模型实例。jsonObject 为 true 时要求模型输出 JSON 对象。
// 凭证缺失时不返回错误，而是返回在每次调用时以 config 类错误失败的模型。
func (c LLMConfig) NewChatModel(ctx context.Context, jsonObject bool, logger *zap.Logger) (model.BaseChatModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	temperature := toFloat32Ptr(c.Temperature)
	topP := toFloat32Ptr(c.TopP)

	switch c.Provider {
	case ProviderOpenAI:
		return llm.NewOpenAIChatModel(llm.OpenAIConfig{
			APIKey:      c.APIKey,
			Endpoint:    c.Endpoint,
			Model:       c.Model,
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   c.MaxTokens,
			Timeout:     c.Timeout,
			JSONObject:  jsonObject,
			Logger:      logger,
		}), nil

	case ProviderArk:
		if !c.Enabled() {
			return llm.UnconfiguredChatModel{Provider: ProviderArk}, nil
		}
		// Ark 没有 json_object 开关，依赖模板约束与围栏剥离。
		chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.ArkBaseURL,
			Region:      c.ArkRegion,
			APIKey:      c.ArkAPIKey,
			AccessKey:   c.ArkAccessKey,
			SecretKey:   c.ArkSecretKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
		if err != nil {
			return nil, fmt.Errorf("create ark chat model: %w", err)
		}
		return chatModel, nil

	case ProviderGemini:
		return llm.NewGeminiChatModel(ctx, llm.GeminiConfig{
			APIKey:      c.GeminiAPIKey,
			Model:       c.Model,
			Temperature: temperature,
			TopP:        topP,
			JSONObject:  jsonObject,
			Logger:      logger,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", c.Provider)
	}
}

func loadLLMConfig() (LLMConfig, error) {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return LLMConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return LLMConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return LLMConfig{}, err
	}

	timeoutSeconds := 60 // 默认60秒
	if timeout, err := parseOptionalIntEnv("LLM_TIMEOUT"); err != nil {
		return LLMConfig{}, err
	} else if timeout != nil {
		if *timeout < 0 {
			return LLMConfig{}, fmt.Errorf("invalid LLM_TIMEOUT value %d: must not be negative", *timeout)
		}
		timeoutSeconds = *timeout
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderOpenAI))
	switch provider {
	case ProviderOpenAI, ProviderArk, ProviderGemini:
	default:
		return LLMConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	defaultModel := "gpt-4o"
	switch provider {
	case ProviderGemini:
		defaultModel = llm.DefaultGeminiModel
	case ProviderArk:
		defaultModel = ""
	}

	return LLMConfig{
		Provider:     provider,
		APIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		Endpoint:     getEnvOrDefault("OPENAI_API_ENDPOINT", llm.DefaultEndpoint),
		Model:        getEnvOrDefault("LLM_MODEL", defaultModel),
		ArkAPIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkBaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		Timeout:      time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func loadLogConfig() (LogConfig, error) {
	dev, err := parseBoolEnv("LOG_DEVELOPMENT", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:       getEnvOrDefault("LOG_LEVEL", "info"),
		Development: dev,
	}, nil
}

func toFloat32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
