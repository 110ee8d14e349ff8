package persona

import (
	"fmt"
	"strings"

	_ "embed"

	"github.com/tmc/langchaingo/prompts"
)

//go:embed system_prompt.tmpl
var systemPromptTemplate string

const (
	// EmojiProhibition is rendered for every persona with emoji_ok=false. Nothing else in the prompt relaxes it.
	EmojiProhibition = "ABSOLUTELY FORBIDDEN. DO NOT USE ANY EMOJIS EVER. ZERO EMOJIS."
	EmojiReminder    = "NO EMOJIS WHATSOEVER."
	PlainTextRule    = "Respond with plain text only. Do NOT use JSON format."
)

// Memory is the part of room memory a persona prompt needs.
type Memory struct {
	Summary string
	PerUser map[string]string
}

// Render builds the system prompt of a persona. It is pure: same input, same output.
func Render(cfg Config, memory Memory) string {
	perUser := memory.PerUser
	if perUser == nil {
		perUser = map[string]string{}
	}

	values := map[string]any{
		"name":              cfg.Name,
		"backstory":         cfg.Backstory,
		"tone":              cfg.Tone,
		"formality":         cfg.Formality,
		"emoji_ok":          cfg.EmojiOK,
		"emoji_prohibition": EmojiProhibition,
		"emoji_reminder":    EmojiReminder,
		"refuse_topics":     strings.Join(cfg.Safety.RefuseTopics, ", "),
		"rating":            cfg.Safety.PGRating,
		"summary":           memory.Summary,
		"per_user":          perUser,
		"max_consecutive":   cfg.Talkativeness.MaxConsecutiveAiMsgs,
		"lull_sec":          cfg.Talkativeness.ProactiveOnLullSec,
		"structured_output": cfg.StructuredOutput,
		"plain_text_rule":   PlainTextRule,
	}

	result, err := prompts.RenderTemplate(systemPromptTemplate, prompts.TemplateFormatGoTemplate, values)
	if err != nil {
		panic(fmt.Sprintf("persona: system prompt template is broken: %v", err))
	}

	return strings.TrimSpace(result)
}
