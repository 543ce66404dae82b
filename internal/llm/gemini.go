package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when LLM_MODEL is left empty for the gemini provider.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature *float32
	TopP        *float32
	JSONObject  bool
	// BaseURL 为空时使用 genai 的默认地址。
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GeminiChatModel adapts google.golang.org/genai to eino's BaseChatModel.
type GeminiChatModel struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *zap.Logger
}

var _ model.BaseChatModel = (*GeminiChatModel)(nil)

// NewGeminiChatModel 创建 Gemini 模型；未配置 API Key 时返回 UnconfiguredChatModel。
func NewGeminiChatModel(ctx context.Context, cfg GeminiConfig) (model.BaseChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return UnconfiguredChatModel{Provider: "gemini"}, nil
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiChatModel{client: client, cfg: cfg, logger: logger}, nil
}

func (g *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	const op = "gemini.generate"

	options := model.GetCommonOptions(&model.Options{
		Model:       &g.cfg.Model,
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
	}, opts...)

	config := &genai.GenerateContentConfig{
		Temperature: options.Temperature,
		TopP:        options.TopP,
	}
	if g.cfg.JSONObject {
		config.ResponseMIMEType = "application/json"
	}

	var system []string
	contents := make([]*genai.Content, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	// Gemini 要求至少一条内容，只有系统指令时把它作为用户输入发送。
	if len(contents) == 0 && config.SystemInstruction != nil {
		contents = append(contents, genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser))
		config.SystemInstruction = nil
	}

	modelName := g.cfg.Model
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	res, err := g.client.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		g.logger.Error("gemini request failed", zap.Error(err))
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code != 0 {
			return nil, &Error{Kind: KindHTTP, Op: op, Status: apiErr.Code, Detail: apiErr.Message, Err: errors.New(apiErr.Status)}
		}
		return nil, Classify(op, err)
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		if g.cfg.JSONObject {
			return nil, newError(KindShape, op, errors.New("no candidate content"))
		}
		return schema.AssistantMessage("", nil), nil
	}

	var builder strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if part != nil {
			builder.WriteString(part.Text)
		}
	}
	content := strings.TrimSpace(builder.String())
	if content == "" && g.cfg.JSONObject {
		return nil, newError(KindShape, op, errors.New("empty candidate content"))
	}
	return schema.AssistantMessage(content, nil), nil
}

func (g *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := g.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}
