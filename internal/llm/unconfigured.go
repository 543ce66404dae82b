package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// UnconfiguredChatModel stands in for a provider whose credentials are missing.
// Every call fails with KindConfig before any network activity.
type UnconfiguredChatModel struct {
	Provider string
}

var _ model.BaseChatModel = UnconfiguredChatModel{}

func (u UnconfiguredChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, newError(KindConfig, u.Provider+".generate", fmt.Errorf("%s: %w", u.Provider, ErrMissingAPIKey))
}

func (u UnconfiguredChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, newError(KindConfig, u.Provider+".stream", fmt.Errorf("%s: %w", u.Provider, ErrMissingAPIKey))
}
