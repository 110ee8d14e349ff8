package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"multichat/app/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/oops"
)

// JLLMClient posts OpenAI-shaped chat payloads to a single completions endpoint.
// The endpoint sometimes answers with SSE chunks even when stream=false.
type JLLMClient struct {
	url    string
	token  string
	client *http.Client
}

type jllmRequest struct {
	Messages []Message `json:"messages"`
	Params
	Stream bool `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func NewJLLMClient(cfg config.Completion) *JLLMClient {
	return &JLLMClient{
		url:   cfg.BaseURL,
		token: cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *JLLMClient) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	body, err := json.Marshal(jllmRequest{
		Messages: messages,
		Params:   params,
		Stream:   false,
	})
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return "", fmt.Errorf("failed to post completion: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		statusErr := oops.In("completion").
			With("status", resp.StatusCode).
			Errorf("completion endpoint returned %d: %s", resp.StatusCode, truncate(string(data), 200))
		if retryableStatus(resp.StatusCode) {
			return "", statusErr
		}
		return "", backoff.Permanent(statusErr)
	}

	return parseResponse(data)
}

func parseResponse(data []byte) (string, error) {
	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err == nil {
		if len(parsed.Choices) == 0 {
			return "", backoff.Permanent(ErrEmptyResponse)
		}
		return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
	}

	text := string(data)
	if strings.Contains(text, "data: ") {
		combined := CombineSSE(text)
		if combined == "" {
			return "", backoff.Permanent(ErrEmptyResponse)
		}
		return strings.TrimSpace(combined), nil
	}

	return "", backoff.Permanent(oops.In("completion").Errorf("unparseable completion response: %s", truncate(text, 200)))
}

// CombineSSE joins the delta contents of every `data:` line, ignoring the [DONE] marker and bad chunks.
func CombineSSE(text string) string {
	var builder strings.Builder

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "data: ") || line == "data: [DONE]" {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(line[len("data: "):]), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		builder.WriteString(chunk.Choices[0].Delta.Content)
	}

	return builder.String()
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
