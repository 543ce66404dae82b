package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/uranai/backend/internal/llm"
	"github.com/zhouzirui/uranai/backend/internal/model/chat"
	"github.com/zhouzirui/uranai/backend/internal/model/persona"
)

// ErrNoPersonas is returned when the relay has nobody to ask.
var ErrNoPersonas = errors.New("no personas configured")

// Responder produces one persona's reply to a user message.
type Responder interface {
	Reply(ctx context.Context, p persona.Persona, userMessage string) (string, error)
}

// EmitFunc pushes one reply to the client.
type EmitFunc func(reply chat.Reply) error

// PersonaError reports which persona aborted the relay.
type PersonaError struct {
	PersonaID string
	Err       error
}

func (e *PersonaError) Error() string {
	return fmt.Sprintf("persona %s: %v", e.PersonaID, e.Err)
}

func (e *PersonaError) Unwrap() error {
	return e.Err
}

// Service relays a user message to every persona in order.
type Service struct {
	personas  persona.Store
	responder Responder
	logger    *zap.Logger
}

// NewService creates the relay.
func NewService(personas persona.Store, responder Responder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{personas: personas, responder: responder, logger: logger}
}

// Personas returns the relay order.
func (s *Service) Personas() []persona.Persona {
	return s.personas.List()
}

// Relay asks each persona in turn and emits its reply before asking the next.
// On the first persona failure the remaining personas are skipped, a single
// system reply is emitted and the failure is returned as *PersonaError.
// An emit failure stops the relay and is returned as is.
func (s *Service) Relay(ctx context.Context, userMessage string, emit EmitFunc) error {
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run", runID))

	personas := s.personas.List()
	if len(personas) == 0 {
		logger.Error("relay aborted", zap.Error(ErrNoPersonas))
		if err := emit(chat.SystemErrorReply()); err != nil {
			return err
		}
		return ErrNoPersonas
	}

	logger.Info("relay started", zap.Int("personas", len(personas)), zap.Int("length", len(userMessage)))

	for _, p := range personas {
		reply, err := s.responder.Reply(ctx, p, userMessage)
		if err != nil {
			logger.Error("persona reply failed",
				zap.String("persona", p.ID),
				zap.String("kind", string(llm.KindOf(err))),
				zap.Error(err))
			if emitErr := emit(chat.SystemErrorReply()); emitErr != nil {
				return emitErr
			}
			return &PersonaError{PersonaID: p.ID, Err: err}
		}

		if err := emit(chat.Reply{Agent: p.ID, Name: p.Name, Message: reply}); err != nil {
			logger.Warn("emit failed", zap.String("persona", p.ID), zap.Error(err))
			return err
		}
	}

	logger.Info("relay completed")
	return nil
}
