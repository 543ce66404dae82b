package ai

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/uranai/backend/internal/model/persona"
)

// PersonaPromptManager builds the single user message sent for a persona:
// the persona's instructions followed by the user's consultation.
type PersonaPromptManager struct {
	template prompt.ChatTemplate
}

// NewPersonaPromptManager creates a prompt manager with the default consultation layout.
func NewPersonaPromptManager() *PersonaPromptManager {
	return &PersonaPromptManager{
		template: prompt.FromMessages(
			schema.FString,
			schema.UserMessage("{system}\n\nユーザーの相談:\n{query}"),
		),
	}
}

// Format renders the messages for one persona call.
func (pm *PersonaPromptManager) Format(ctx context.Context, p persona.Persona, userMessage string) ([]*schema.Message, error) {
	return pm.template.Format(ctx, map[string]any{
		"system": strings.TrimSpace(p.SystemPrompt),
		"query":  userMessage,
	})
}
