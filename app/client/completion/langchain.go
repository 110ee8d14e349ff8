package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"multichat/app/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

var _ callbacks.Handler = LogCallbackHandler{}

// LogCallbackHandler reports langchaingo model activity through slog.
type LogCallbackHandler struct {
	callbacks.SimpleHandler
}

func (l LogCallbackHandler) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	slog.DebugContext(ctx, "LLM generate content start", "messages", len(ms))
}

func (l LogCallbackHandler) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	if res == nil {
		return
	}
	slog.DebugContext(ctx, "LLM generate content end", "choices", len(res.Choices))
}

func (l LogCallbackHandler) HandleLLMError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "LLM error", "error", err)
}

// LangchainClient routes completions through langchaingo's OpenAI model.
type LangchainClient struct {
	llm llms.Model
}

func NewLangchainClient(cfg config.Completion) (*LangchainClient, error) {
	llm, err := lcopenai.New(
		lcopenai.WithToken(cfg.Token),
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		lcopenai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain model: %w", err)
	}

	return &LangchainClient{llm: llm}, nil
}

func (c *LangchainClient) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	options := []llms.CallOption{
		llms.WithTemperature(params.Temperature),
	}
	if params.TopP > 0 {
		options = append(options, llms.WithTopP(params.TopP))
	}
	if params.PresencePenalty != 0 {
		options = append(options, llms.WithPresencePenalty(params.PresencePenalty))
	}
	if params.FrequencyPenalty != 0 {
		options = append(options, llms.WithFrequencyPenalty(params.FrequencyPenalty))
	}
	if params.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(params.MaxTokens))
	}

	resp, err := c.llm.GenerateContent(ctx, content, options...)
	if err != nil {
		if isEmptyChoices(err) {
			return "", backoff.Permanent(ErrEmptyResponse)
		}

		err = fmt.Errorf("failed to generate content: %w", err)
		if !retryableLLMError(lcopenai.MapError(err)) {
			return "", backoff.Permanent(err)
		}

		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", backoff.Permanent(ErrEmptyResponse)
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// langchaingo reports a reply without choices through an unexported sentinel, so only its text can be matched.
const langchainEmptyChoices = "empty response"

func isEmptyChoices(err error) bool {
	return errors.Is(err, lcopenai.ErrEmptyResponse) || err.Error() == langchainEmptyChoices
}

// retryableLLMError treats only request-side failures as final.
func retryableLLMError(err error) bool {
	var llmErr *llms.Error
	if !errors.As(err, &llmErr) {
		return true
	}

	switch llmErr.Code {
	case llms.ErrCodeAuthentication,
		llms.ErrCodeInvalidRequest,
		llms.ErrCodeResourceNotFound,
		llms.ErrCodeQuotaExceeded,
		llms.ErrCodeContentFilter,
		llms.ErrCodeTokenLimit,
		llms.ErrCodeNotImplemented:
		return false
	default:
		return true
	}
}

func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
