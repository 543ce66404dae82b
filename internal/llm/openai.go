package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// DefaultEndpoint is used when OPENAI_API_ENDPOINT is not set.
const DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
	Timeout     time.Duration
	// JSONObject 开启 response_format=json_object。
	JSONObject bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// OpenAIChatModel implements eino's BaseChatModel over a plain HTTP POST.
type OpenAIChatModel struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel 创建 OpenAI 兼容的聊天模型。API Key 为空时不报错，首次调用时失败。
func NewOpenAIChatModel(cfg OpenAIConfig) *OpenAIChatModel {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIChatModel{cfg: cfg, httpClient: client, logger: logger}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	TopP           *float32        `json:"top_p,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error json.RawMessage `json:"error,omitempty"`
}

// Generate performs one completion request and validates the reply in order:
// credential, HTTP status, body decoding, error field, choice/message content.
// In text mode an absent completion yields an empty assistant message.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	const op = "openai.generate"

	if strings.TrimSpace(m.cfg.APIKey) == "" {
		return nil, newError(KindConfig, op, ErrMissingAPIKey)
	}

	options := model.GetCommonOptions(&model.Options{
		Model:       &m.cfg.Model,
		Temperature: m.cfg.Temperature,
		TopP:        m.cfg.TopP,
		MaxTokens:   m.cfg.MaxTokens,
	}, opts...)

	reqBody := chatRequest{
		Messages:    toChatMessages(input),
		Temperature: options.Temperature,
		TopP:        options.TopP,
		MaxTokens:   options.MaxTokens,
		Stop:        options.Stop,
	}
	if options.Model != nil {
		reqBody.Model = *options.Model
	}
	if m.cfg.JSONObject {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindTransport, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindTransport, op, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		m.logger.Error("completion http error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, &Error{Kind: KindHTTP, Op: op, Status: resp.StatusCode, Detail: string(body)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		m.logger.Error("completion body is not json", zap.ByteString("body", body))
		return nil, newError(KindParse, op, err)
	}

	if len(decoded.Error) > 0 && string(decoded.Error) != "null" {
		m.logger.Error("completion api error", zap.ByteString("error", decoded.Error))
		return nil, &Error{Kind: KindUpstream, Op: op, Detail: string(decoded.Error), Err: errors.New("error field in response")}
	}

	var content string
	if len(decoded.Choices) > 0 && decoded.Choices[0].Message != nil {
		content = decoded.Choices[0].Message.Content
	}
	content = strings.TrimSpace(content)

	if content == "" {
		if m.cfg.JSONObject {
			m.logger.Error("completion has no choices", zap.ByteString("body", body))
			return nil, newError(KindShape, op, errors.New("no completion choice with content"))
		}
		m.logger.Warn("completion has no content", zap.Int("choices", len(decoded.Choices)))
	}

	fields := []zap.Field{
		zap.String("model", reqBody.Model),
		zap.Bool("jsonObject", m.cfg.JSONObject),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("length", len(content)),
	}
	if decoded.Usage != nil {
		fields = append(fields, zap.Int("totalTokens", decoded.Usage.TotalTokens))
	}
	m.logger.Debug("completion received", fields...)

	msg := schema.AssistantMessage(content, nil)
	if decoded.Usage != nil {
		msg.ResponseMeta = &schema.ResponseMeta{
			Usage: &schema.TokenUsage{
				PromptTokens:     decoded.Usage.PromptTokens,
				CompletionTokens: decoded.Usage.CompletionTokens,
				TotalTokens:      decoded.Usage.TotalTokens,
			},
		}
		if len(decoded.Choices) > 0 {
			msg.ResponseMeta.FinishReason = decoded.Choices[0].FinishReason
		}
	}
	return msg, nil
}

// Stream is served by a single Generate call; the endpoint is never asked to stream.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toChatMessages(input []*schema.Message) []chatMessage {
	out := make([]chatMessage, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		out = append(out, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}
