package fortune

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/uranai/backend/internal/llm"
	fortunemodel "github.com/zhouzirui/uranai/backend/internal/model/fortune"
)

// Completer returns the raw content of a JSON-object constrained completion.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt string) (string, error)
}

// Service turns a birth date and health survey into the model's fortunes object.
type Service struct {
	completer Completer
	template  Template
	now       func() time.Time
	logger    *zap.Logger
}

// NewService 创建占卜服务。模板在启动时加载后作为显式依赖传入。
func NewService(completer Completer, template Template, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		completer: completer,
		template:  template,
		now:       time.Now,
		logger:    logger,
	}
}

// Tell renders the template, calls the model and returns the fortunes object verbatim.
func (s *Service) Tell(ctx context.Context, req fortunemodel.Request) (json.RawMessage, error) {
	today := s.now().UTC().Format("2006-01-02")

	prompt, err := s.template.Render(req.BirthDate, today, req.Health)
	if err != nil {
		return nil, err
	}

	raw, err := s.completer.CompleteJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("fortune completion: %w", err)
	}

	fortunes, err := ParseFortunes(raw)
	if err != nil {
		s.logger.Error("fortune output rejected", zap.String("raw", raw), zap.Error(err))
		return nil, err
	}
	return fortunes, nil
}

// ParseFortunes strips an optional code fence, decodes the reply and extracts
// its fortunes field.
func ParseFortunes(raw string) (json.RawMessage, error) {
	const op = "fortune.parse"

	var parsed fortunemodel.Result
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil {
		return nil, &llm.Error{Kind: llm.KindParse, Op: op, Err: err}
	}
	if isFalsy(parsed.Fortunes) {
		return nil, &llm.Error{Kind: llm.KindShape, Op: op, Err: fmt.Errorf("no fortunes field")}
	}
	return parsed.Fortunes, nil
}

// isFalsy mirrors JavaScript truthiness for a decoded JSON value: null, false,
// any zero number and the empty string are falsy; objects and arrays never are.
func isFalsy(raw json.RawMessage) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return true
	}

	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case json.Number:
		// 超出范围时 ParseFloat 返回 ±Inf，按非零处理。
		f, _ := strconv.ParseFloat(x.String(), 64)
		return f == 0
	}
	return false
}
