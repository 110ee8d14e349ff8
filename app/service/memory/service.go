package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"multichat/app/client/completion"
	"multichat/app/config"
	"multichat/app/service/room"

	_ "embed"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/tmc/langchaingo/prompts"
)

//go:embed extract_prompt.tmpl
var extractPromptTemplate string

//go:embed summary_prompt.tmpl
var summaryPromptTemplate string

const (
	extractWindow = 10
	noFacts       = "None yet"
	noSummary     = "None yet"
)

var (
	extractParams = completion.Params{Temperature: 0.2, MaxTokens: 300}
	summaryParams = completion.Params{Temperature: 0.3, MaxTokens: 200}
)

// Service keeps room memory fresh: per-user facts after AI replies and a rolling summary.
type Service struct {
	client         completion.Client
	summarizeEvery int
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(do.MustInvoke[completion.Client](di), cfg.Chat.SummarizeEvery), nil
}

// NewService builds a Service. summarizeEvery <= 0 disables the rolling summary.
func NewService(client completion.Client, summarizeEvery int) *Service {
	return &Service{
		client:         client,
		summarizeEvery: summarizeEvery,
	}
}

// Extract asks the model for new facts about participants of recent messages.
// It never fails: any gateway or parse problem yields an empty map.
func (s *Service) Extract(ctx context.Context, recent []room.Message, known map[string]string) map[string]string {
	if len(recent) == 0 {
		return map[string]string{}
	}
	if len(recent) > extractWindow {
		recent = recent[len(recent)-extractWindow:]
	}

	prompt := render(extractPromptTemplate, map[string]any{
		"known":        formatKnown(known),
		"conversation": room.Format(recent),
	})

	text, err := s.client.Complete(ctx, completion.User(prompt), extractParams)
	if err != nil {
		slog.Warn("Fact extraction failed",
			"error", err,
		)
		return map[string]string{}
	}

	facts, err := parseFacts(text)
	if err != nil {
		slog.Warn("Failed to parse extracted facts",
			"error", err,
			"text", text,
		)
		return map[string]string{}
	}

	return facts
}

// Refresh extracts facts from the newest messages of a room and merges them into its memory.
func (s *Service) Refresh(ctx context.Context, r *room.Room) map[string]string {
	facts := s.Extract(ctx, r.LastMessages(extractWindow), r.Memory().PerUser)
	if len(facts) == 0 {
		return facts
	}

	r.MergeFacts(facts)

	slog.Debug("Updated room facts",
		"room_id", r.ID,
		"facts", facts,
	)

	return facts
}

// MaybeSummarize rewrites the room summary once summarizeEvery messages were appended since the last one.
// A failed refresh is retried on the next call.
// Returns true when the summary was replaced.
func (s *Service) MaybeSummarize(ctx context.Context, r *room.Room) bool {
	if !r.SummaryDue(s.summarizeEvery) {
		return false
	}

	summary := r.Memory().Summary
	if summary == "" {
		summary = noSummary
	}

	prompt := render(summaryPromptTemplate, map[string]any{
		"summary":      summary,
		"conversation": room.Format(r.LastMessages(s.summarizeEvery)),
	})

	text, err := s.client.Complete(ctx, completion.User(prompt), summaryParams)
	if err != nil {
		slog.Warn("Summary refresh failed",
			"room_id", r.ID,
			"error", err,
		)
		return false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	r.SetSummary(text)

	slog.Debug("Updated room summary",
		"room_id", r.ID,
		"summary", text,
	)

	return true
}

func formatKnown(known map[string]string) string {
	if len(known) == 0 {
		return noFacts
	}

	lines := pie.Map(pie.Sort(pie.Keys(known)), func(user string) string {
		return fmt.Sprintf("- %s: %s", user, known[user])
	})

	return strings.Join(lines, "\n")
}

// stripFences unwraps the first ```json or ``` fenced block, if any.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		start += len(fence)

		end := strings.Index(text[start:], "```")
		if end > 0 {
			return strings.TrimSpace(text[start : start+end])
		}
		return text
	}

	return text
}

// parseFacts accepts a JSON object of user -> facts. String values are kept as is,
// string lists are joined with ", ", anything else is dropped.
func parseFacts(text string) (map[string]string, error) {
	text = stripFences(text)
	if text == "" {
		return map[string]string{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal facts: %w", err)
	}

	facts := make(map[string]string, len(raw))
	for user, value := range raw {
		var fact string

		switch v := value.(type) {
		case string:
			fact = v
		case []any:
			parts := pie.FilterNot(pie.Map(v, func(item any) string {
				s, _ := item.(string)
				return strings.TrimSpace(s)
			}), func(s string) bool {
				return s == ""
			})
			fact = strings.Join(parts, ", ")
		}

		fact = strings.TrimSpace(fact)
		if user == "" || fact == "" {
			continue
		}
		facts[user] = fact
	}

	return facts, nil
}

func render(template string, values map[string]any) string {
	result, err := prompts.RenderTemplate(template, prompts.TemplateFormatGoTemplate, values)
	if err != nil {
		panic(fmt.Sprintf("memory: prompt template is broken: %v", err))
	}

	return strings.TrimSpace(result)
}
