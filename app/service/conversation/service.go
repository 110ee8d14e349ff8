package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"multichat/app/client/completion"
	"multichat/app/config"
	"multichat/app/service/broadcast"
	"multichat/app/service/memory"
	"multichat/app/service/persona"
	"multichat/app/service/room"
	"multichat/app/util/metrics"

	"github.com/samber/do"
)

// Broadcaster delivers an event to every connection of a room.
type Broadcaster interface {
	Broadcast(roomID string, event any)
}

type Options struct {
	// Delay between successive bot replies within one pass
	Pacing time.Duration
	// Let the room persona join every pass, not only when @mentioned
	PrimaryPersona bool
	Clock          func() time.Time
}

type Service struct {
	client    completion.Client
	memorySvc *memory.Service
	sink      Broadcaster

	pacing         time.Duration
	primaryPersona bool
	clock          func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[completion.Client](di),
		do.MustInvoke[*memory.Service](di),
		do.MustInvoke[*broadcast.Hub](di),
		Options{
			Pacing:         cfg.Chat.BotPacing,
			PrimaryPersona: cfg.Chat.PrimaryPersona,
		},
	), nil
}

func NewService(client completion.Client, memorySvc *memory.Service, sink Broadcaster, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		client:         client,
		memorySvc:      memorySvc,
		sink:           sink,
		pacing:         opts.Pacing,
		primaryPersona: opts.PrimaryPersona,
		clock:          clock,
	}
}

// ProcessMessage runs one orchestration pass for a human message that is already in the room history.
// Only a failed primary reply is returned; every other failure degrades locally.
func (s *Service) ProcessMessage(ctx context.Context, r *room.Room, content string) error {
	start := time.Now()

	if s.DetectMoralDilemma(ctx, content) {
		s.Debate(ctx, r, content)
		metrics.Passes.WithLabelValues("debate").Inc()
		return nil
	}

	replies := s.runBots(ctx, r, content)

	if s.primaryInvited(r, content) && s.ShouldPrimaryRespond(ctx, r, content) {
		if err := s.replyAsPrimary(ctx, r); err != nil {
			metrics.Passes.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to reply as %s: %w", r.Persona().Name, err)
		}
	}

	s.memorySvc.MaybeSummarize(ctx, r)

	metrics.Passes.WithLabelValues("ok").Inc()

	slog.Debug("Processed message",
		"room_id", r.ID,
		"bot_replies", replies,
		"duration", time.Since(start),
	)

	return nil
}

// primaryInvited reports whether the room persona takes part in this pass at all.
// Unless enabled in config, it only answers when the message @mentions it.
func (s *Service) primaryInvited(r *room.Room, content string) bool {
	return s.primaryPersona || strings.Contains(content, "@"+r.Persona().Name)
}

// runBots lets every active bot decide on its own, in activation order. Returns the number of replies.
func (s *Service) runBots(ctx context.Context, r *room.Room, content string) int {
	replies := 0

	for _, id := range r.ActiveBots() {
		if ctx.Err() != nil {
			return replies
		}

		bot, ok := persona.LookupBot(id)
		if !ok {
			slog.Warn("Active bot is not in the catalogue",
				"room_id", r.ID,
				"bot_id", id,
			)
			continue
		}

		if !s.ShouldBotRespond(ctx, r, bot.Config, content) {
			continue
		}

		if replies > 0 && !s.wait(ctx) {
			return replies
		}

		text := s.botReply(ctx, r, bot.Config, content)
		msg := r.AppendMessage(bot.Config.Name, room.RoleAssistant, text)
		s.sink.Broadcast(r.ID, broadcast.NewBotChat(msg, bot.ID))
		metrics.BotReplies.WithLabelValues(bot.Config.Name).Inc()

		slog.Info("Bot replied",
			"room_id", r.ID,
			"bot", bot.Config.Name,
			"text", text,
			"telegram", true,
		)

		replies++
	}

	return replies
}

func (s *Service) wait(ctx context.Context) bool {
	if s.pacing <= 0 {
		return true
	}

	timer := time.NewTimer(s.pacing)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
