package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"multichat/app/client/completion"
	"multichat/app/service/persona"

	"github.com/tmc/langchaingo/prompts"
)

func render(template string, values map[string]any) string {
	result, err := prompts.RenderTemplate(template, prompts.TemplateFormatGoTemplate, values)
	if err != nil {
		panic(fmt.Sprintf("conversation: prompt template is broken: %v", err))
	}

	return strings.TrimSpace(result)
}

func isYes(text string) bool {
	return strings.Contains(strings.ToUpper(text), "YES")
}

// unwrapContent pulls the "content" string out of a JSON object reply.
// Models sometimes answer in JSON even when asked for plain text.
func unwrapContent(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return text
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return text
	}

	content, ok := payload["content"].(string)
	if !ok {
		return text
	}

	return strings.TrimSpace(content)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func sampling(params persona.Params) completion.Params {
	return completion.Params{
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
		MaxTokens:        params.MaxTokens,
	}
}
