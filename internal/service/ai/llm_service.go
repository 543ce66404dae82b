package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/uranai/backend/internal/llm"
	"github.com/zhouzirui/uranai/backend/internal/model/chat"
	"github.com/zhouzirui/uranai/backend/internal/model/persona"
)

// Service wraps the two gateway variants: free text for persona chat and
// JSON-object constrained completions for fortunes.
type Service struct {
	textModel model.BaseChatModel
	jsonModel model.BaseChatModel
	prompts   *PersonaPromptManager
	fortune   prompt.ChatTemplate
	timeout   time.Duration
	logger    *zap.Logger
}

// Options configures NewService.
type Options struct {
	// Timeout bounds each outbound completion; zero disables it.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewService creates a new AI service instance.
func NewService(textModel, jsonModel model.BaseChatModel, opts Options) (*Service, error) {
	if textModel == nil || jsonModel == nil {
		return nil, fmt.Errorf("both text and json chat models are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		textModel: textModel,
		jsonModel: jsonModel,
		prompts:   NewPersonaPromptManager(),
		fortune:   prompt.FromMessages(schema.FString, schema.SystemMessage("{prompt}")),
		timeout:   opts.Timeout,
		logger:    logger,
	}, nil
}

// Reply asks one persona about the user's message and returns the trimmed text,
// or the placeholder when the model returned nothing.
func (s *Service) Reply(ctx context.Context, p persona.Persona, userMessage string) (string, error) {
	messages, err := s.prompts.Format(ctx, p, userMessage)
	if err != nil {
		return "", fmt.Errorf("format persona prompt: %w", err)
	}

	msg, err := s.generate(ctx, s.textModel, "chat", messages)
	if err != nil {
		return "", err
	}

	text := ""
	if msg != nil {
		text = strings.TrimSpace(msg.Content)
	}
	if text == "" {
		return chat.EmptyReplyPlaceholder, nil
	}

	s.logger.Debug("persona replied", zap.String("persona", p.ID), zap.Int("length", len(text)))
	return text, nil
}

// CompleteJSON submits a fully rendered prompt as the system instruction of a
// JSON-object constrained completion and returns the raw model content.
func (s *Service) CompleteJSON(ctx context.Context, systemPrompt string) (string, error) {
	messages, err := s.fortune.Format(ctx, map[string]any{"prompt": systemPrompt})
	if err != nil {
		return "", fmt.Errorf("format fortune prompt: %w", err)
	}

	msg, err := s.generate(ctx, s.jsonModel, "fortune", messages)
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", &llm.Error{Kind: llm.KindShape, Op: "ai.complete_json", Err: fmt.Errorf("empty completion")}
	}
	return strings.TrimSpace(msg.Content), nil
}

func (s *Service) generate(ctx context.Context, m model.BaseChatModel, op string, messages []*schema.Message) (*schema.Message, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msg, err := m.Generate(ctx, messages)
	if err != nil {
		return nil, llm.Classify("ai."+op, err)
	}
	return msg, nil
}
