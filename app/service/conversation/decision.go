package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"multichat/app/client/completion"
	"multichat/app/service/persona"
	"multichat/app/service/room"
	"multichat/app/util/metrics"

	_ "embed"

	"github.com/elliotchance/pie/v2"
)

//go:embed dilemma_prompt.tmpl
var dilemmaPromptTemplate string

//go:embed primary_decision_prompt.tmpl
var primaryDecisionPromptTemplate string

//go:embed bot_decision_prompt.tmpl
var botDecisionPromptTemplate string

const (
	decisionWindow     = 5
	botDecisionBudget  = 2000
	backstoryPreview   = 150
	neverSpokeSeconds  = 999.0
	minNameTokenLength = 3
)

var (
	dilemmaParams  = completion.Params{Temperature: 0, MaxTokens: 10}
	decisionParams = completion.Params{Temperature: 0.3, MaxTokens: 10}
)

var dilemmaKeywords = []string{
	"cheating",
	"betray",
	"lie to",
	"lying to",
	"steal",
	"hurt someone",
	"ghost someone",
	"break up",
	"fire someone",
	"tell the truth",
}

var dilemmaPhrases = []string{
	"should i tell",
	"is it okay to",
	"is it right to",
}

// hasDilemmaSignal is the lexical half of the dilemma check. A model YES without it is ignored.
func hasDilemmaSignal(message string) bool {
	lower := strings.ToLower(message)
	found := func(term string) bool {
		return strings.Contains(lower, term)
	}

	return pie.Any(dilemmaKeywords, found) || pie.Any(dilemmaPhrases, found)
}

// DetectMoralDilemma reports whether a message deserves a GoodBot/EvilBot debate.
// Both the lexical signal and a model YES are required; errors count as NO.
func (s *Service) DetectMoralDilemma(ctx context.Context, message string) bool {
	if !hasDilemmaSignal(message) {
		metrics.Decisions.WithLabelValues("dilemma", metrics.Bool(false)).Inc()
		return false
	}

	prompt := render(dilemmaPromptTemplate, map[string]any{
		"message": message,
	})

	result, err := s.decide(ctx, "dilemma", prompt, dilemmaParams)
	if err != nil {
		slog.Warn("Dilemma check failed",
			"error", err,
		)
		return false
	}

	return result
}

// ShouldPrimaryRespond decides whether the room persona speaks after the bots had their turn.
// message is the human message that triggered the pass.
func (s *Service) ShouldPrimaryRespond(ctx context.Context, r *room.Room, message string) bool {
	cfg := r.Persona()
	now := s.clock()

	if !r.CanSpeak(now, cfg.Talkativeness.MaxConsecutiveAiMsgs) {
		metrics.Decisions.WithLabelValues("primary", "gated").Inc()
		return false
	}

	recent := r.LastMessages(decisionWindow)
	if len(recent) == 0 {
		return false
	}

	sinceLast := neverSpokeSeconds
	if lastAI := r.LastAI(); !lastAI.IsZero() {
		sinceLast = now.Sub(lastAI).Seconds()
	}

	prompt := render(primaryDecisionPromptTemplate, map[string]any{
		"name":            cfg.Name,
		"backstory":       truncateRunes(cfg.Backstory, backstoryPreview),
		"tone":            cfg.Tone,
		"max_consecutive": cfg.Talkativeness.MaxConsecutiveAiMsgs,
		"since_last":      fmt.Sprintf("%.1f", sinceLast),
		"conversation":    room.Format(recent),
	})

	result, err := s.decide(ctx, "primary", prompt, decisionParams)
	if err != nil {
		mentioned := strings.Contains(message, "@"+cfg.Name)

		slog.Warn("Primary decision failed, falling back to mention check",
			"room_id", r.ID,
			"mentioned", mentioned,
			"error", err,
		)

		return mentioned
	}

	return result
}

// ShouldBotRespond decides for one catalogue bot. Mentions answer YES without asking the model.
func (s *Service) ShouldBotRespond(ctx context.Context, r *room.Room, bot persona.Config, message string) bool {
	if mentions(bot.Name, message) {
		metrics.Decisions.WithLabelValues("bot", "mention").Inc()
		return true
	}

	tail := r.TailByTokenBudget(botDecisionBudget)
	if len(tail) > decisionWindow {
		tail = tail[len(tail)-decisionWindow:]
	}

	prompt := render(botDecisionPromptTemplate, map[string]any{
		"name":         bot.Name,
		"backstory":    bot.Backstory,
		"conversation": room.Format(tail),
		"message":      message,
	})

	result, err := s.decide(ctx, "bot", prompt, decisionParams)
	if err != nil {
		slog.Warn("Bot decision failed",
			"room_id", r.ID,
			"bot", bot.Name,
			"error", err,
		)
		return false
	}

	return result
}

func (s *Service) decide(ctx context.Context, policy, prompt string, params completion.Params) (bool, error) {
	text, err := s.client.Complete(ctx, completion.User(prompt), params)
	if err != nil {
		metrics.Decisions.WithLabelValues(policy, "error").Inc()
		return false, err
	}

	result := isYes(text)
	metrics.Decisions.WithLabelValues(policy, metrics.Bool(result)).Inc()

	slog.Debug("Decision made",
		"policy", policy,
		"answer", strings.TrimSpace(text),
		"result", result,
	)

	return result, nil
}

// mentions is true for "@Full Name" or any name token of 3+ characters found in the message, ignoring case.
func mentions(name, message string) bool {
	if strings.Contains(message, "@"+name) {
		return true
	}

	lower := strings.ToLower(message)

	return pie.Any(strings.Fields(strings.ToLower(name)), func(token string) bool {
		return utf8.RuneCountInString(token) >= minNameTokenLength && strings.Contains(lower, token)
	})
}
