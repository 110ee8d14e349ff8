package conversation

import (
	"context"
	"log/slog"

	"multichat/app/client/completion"
	"multichat/app/service/broadcast"
	"multichat/app/service/persona"
	"multichat/app/service/room"
	"multichat/app/util/metrics"

	_ "embed"
)

//go:embed argument_prompt.tmpl
var argumentPromptTemplate string

//go:embed synthesis_prompt.tmpl
var synthesisPromptTemplate string

const debateStartMessage = "Debate mode: " + persona.GoodBotName + " vs " + persona.EvilBotName

var (
	argumentParams  = completion.Params{Temperature: 0.6, MaxTokens: 180}
	synthesisParams = completion.Params{Temperature: 0.5, MaxTokens: 220}
)

// Debate runs the fixed GoodBot, EvilBot, synthesis sequence. It ignores the rate gate
// and a failed step is skipped without stopping the rest.
func (s *Service) Debate(ctx context.Context, r *room.Room, message string) {
	metrics.Debates.Inc()

	event := broadcast.NewSystem(broadcast.EventDebateStart)
	event.Message = debateStartMessage
	s.sink.Broadcast(r.ID, event)

	slog.Info("Debate started",
		"room_id", r.ID,
		"message", message,
		"telegram", true,
	)

	good := s.argue(ctx, r, persona.GoodBot(), message)
	evil := s.argue(ctx, r, persona.EvilBot(), message)

	s.synthesize(ctx, r, message, good, evil)
}

func (s *Service) argue(ctx context.Context, r *room.Room, side persona.Config, message string) string {
	prompt := render(argumentPromptTemplate, map[string]any{
		"message": message,
	})

	return s.debateStep(ctx, r, side, prompt, argumentParams)
}

func (s *Service) synthesize(ctx context.Context, r *room.Room, message, good, evil string) string {
	prompt := render(synthesisPromptTemplate, map[string]any{
		"message":   message,
		"good_name": persona.GoodBotName,
		"good":      good,
		"evil_name": persona.EvilBotName,
		"evil":      evil,
	})

	return s.debateStep(ctx, r, r.Persona(), prompt, synthesisParams)
}

// debateStep asks one persona, then appends and broadcasts a non-empty answer.
func (s *Service) debateStep(ctx context.Context, r *room.Room, speaker persona.Config, prompt string,
	params completion.Params,
) string {
	system := persona.Render(speaker, r.PersonaMemory())

	text, err := s.client.Complete(ctx, completion.WithSystem(system, prompt), params)
	if err != nil {
		slog.Warn("Debate step failed",
			"room_id", r.ID,
			"persona", speaker.Name,
			"error", err,
		)
		return ""
	}

	text = unwrapContent(text)
	if text == "" {
		return ""
	}

	msg := r.AppendMessage(speaker.Name, room.RoleAssistant, text)
	s.sink.Broadcast(r.ID, broadcast.NewChat(msg))
	metrics.BotReplies.WithLabelValues(speaker.Name).Inc()

	return text
}
