package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"multichat/app/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/elliotchance/pie/v2"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(cfg config.Completion) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	aiResponse, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: pie.Map(messages, func(m Message) openai.ChatCompletionMessage {
				return openai.ChatCompletionMessage{
					Role:    m.Role,
					Content: m.Content,
				}
			}),
			Temperature:      float32(params.Temperature),
			TopP:             float32(params.TopP),
			PresencePenalty:  float32(params.PresencePenalty),
			FrequencyPenalty: float32(params.FrequencyPenalty),
			MaxTokens:        params.MaxTokens,
		},
	)
	if err != nil {
		err = fmt.Errorf("failed to create chat completion: %w", err)

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && !retryableStatus(apiErr.HTTPStatusCode) {
			return "", backoff.Permanent(err)
		}

		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && !retryableStatus(reqErr.HTTPStatusCode) {
			return "", backoff.Permanent(err)
		}

		return "", err
	}

	if len(aiResponse.Choices) == 0 {
		return "", backoff.Permanent(ErrEmptyResponse)
	}

	return strings.TrimSpace(aiResponse.Choices[0].Message.Content), nil
}
