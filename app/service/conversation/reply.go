package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"multichat/app/client/completion"
	"multichat/app/service/broadcast"
	"multichat/app/service/persona"
	"multichat/app/service/room"
	"multichat/app/util/metrics"

	_ "embed"
)

//go:embed bot_reply_prompt.tmpl
var botReplyPromptTemplate string

const (
	botContextBudget  = 4000
	botContextWindow  = 10
	primaryTailBudget = 8000
	emptyBotReply     = "..."
)

var botReplyParams = completion.Params{Temperature: 0.7, MaxTokens: 200}

// botReply always returns something to post: "..." for an empty completion and a
// distracted emote when the gateway fails.
func (s *Service) botReply(ctx context.Context, r *room.Room, bot persona.Config, message string) string {
	tail := r.TailByTokenBudget(botContextBudget)
	if len(tail) > botContextWindow {
		tail = tail[len(tail)-botContextWindow:]
	}

	prompt := render(botReplyPromptTemplate, map[string]any{
		"conversation": room.Format(tail),
		"message":      message,
		"name":         bot.Name,
	})
	system := persona.Render(bot, r.PersonaMemory())

	text, err := s.client.Complete(ctx, completion.WithSystem(system, prompt), botReplyParams)
	if err != nil {
		slog.Warn("Bot reply failed",
			"room_id", r.ID,
			"bot", bot.Name,
			"error", err,
		)
		return fmt.Sprintf("*%s seems distracted*", bot.Name)
	}

	text = unwrapContent(text)
	if text == "" {
		return emptyBotReply
	}

	return text
}

// primaryMessages is the primary persona's chat transcript: system prompt, then the history tail
// with human turns prefixed by their author.
func primaryMessages(cfg persona.Config, r *room.Room) []completion.Message {
	messages := []completion.Message{{
		Role:    completion.RoleSystem,
		Content: persona.Render(cfg, r.PersonaMemory()),
	}}

	for _, msg := range r.TailByTokenBudget(primaryTailBudget) {
		switch msg.Role {
		case room.RoleUser:
			messages = append(messages, completion.Message{
				Role:    completion.RoleUser,
				Content: fmt.Sprintf("%s: %s", msg.Author, msg.Content),
			})
		default:
			messages = append(messages, completion.Message{
				Role:    completion.RoleAssistant,
				Content: msg.Content,
			})
		}
	}

	return messages
}

// replyAsPrimary generates, posts and remembers the room persona's reply. Gateway failures are returned.
func (s *Service) replyAsPrimary(ctx context.Context, r *room.Room) error {
	cfg := r.Persona()

	text, err := s.client.Complete(ctx, primaryMessages(cfg, r), sampling(r.Params()))
	if err != nil {
		return fmt.Errorf("failed to complete: %w", err)
	}

	reply := Reply{Raw: unwrapContent(text)}
	if cfg.StructuredOutput {
		reply = ParseReply(text)
	}

	content, ok := reply.Text()
	if !ok {
		slog.Debug("Primary persona stays silent",
			"room_id", r.ID,
			"persona", cfg.Name,
		)
		return nil
	}

	if update := reply.MemoryUpdate(); update != "" {
		r.SetUserFact(cfg.Name, update)
	}

	msg := r.AppendMessage(cfg.Name, room.RoleAssistant, content)
	s.sink.Broadcast(r.ID, broadcast.NewChat(msg))
	metrics.BotReplies.WithLabelValues(cfg.Name).Inc()

	slog.Info("Primary persona replied",
		"room_id", r.ID,
		"persona", cfg.Name,
		"text", content,
		"telegram", true,
	)

	s.memorySvc.Refresh(ctx, r)

	return nil
}
