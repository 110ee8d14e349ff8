package completion

import (
	"context"
	"errors"

	"multichat/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyResponse = errors.New("completion returned no choices")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are sampling parameters. Zero values other than Temperature are left to the provider default.
type Params struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty"`
}

// Client turns a role-tagged conversation into generated text.
type Client interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []Message, params Params) (string, error)

func (f ClientFunc) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	return f(ctx, messages, params)
}

func New(di *do.Injector) (Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	inner, err := newProvider(cfg.Completion)
	if err != nil {
		return nil, err
	}

	return NewRetrying(inner, RetryOptions{
		Provider:    cfg.Completion.Provider,
		MaxAttempts: cfg.Completion.MaxAttempts,
		Base:        cfg.Completion.BackoffBase,
		Cap:         cfg.Completion.BackoffCap,
	}), nil
}

func newProvider(cfg config.Completion) (Client, error) {
	switch cfg.Provider {
	case config.ProviderJLLM:
		return NewJLLMClient(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	case config.ProviderLangchain:
		return NewLangchainClient(cfg)
	default:
		return nil, oops.In("completion").With("provider", cfg.Provider).Errorf("unknown completion provider")
	}
}

// User is a single-message conversation, the shape used by every yes/no decision prompt.
func User(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}

// WithSystem prepends a system prompt to a user prompt.
func WithSystem(system, prompt string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: prompt},
	}
}
