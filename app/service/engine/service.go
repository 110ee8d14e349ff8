package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"multichat/app/service/broadcast"
	"multichat/app/service/conversation"
	"multichat/app/service/persona"
	"multichat/app/service/queue"
	"multichat/app/service/room"

	"github.com/samber/do"
)

const (
	TypeJoin          = "join"
	TypeChat          = "chat"
	TypeBotAdd        = "bot.add"
	TypeBotRemove     = "bot.remove"
	TypeTyping        = "typing"
	TypePersonaUpdate = "persona.update"
	TypeSlidersUpdate = "sliders.update"
)

var (
	ErrInvalidJSON  = errors.New("invalid json")
	ErrUnknownEvent = errors.New("unknown message type")
	ErrForbidden    = errors.New("only the room admin can change bots")
	ErrRoomBusy     = errors.New("room is busy, message was not processed")
)

// Processor runs the orchestration pass for a human message.
type Processor interface {
	ProcessMessage(ctx context.Context, r *room.Room, content string) error
}

// Scheduler serialises jobs per key.
type Scheduler interface {
	Add(key string, job queue.Job) bool
}

type Sink interface {
	Broadcast(roomID string, event any)
	Send(conn broadcast.Conn, event any) error
}

type inbound struct {
	Type     string          `json:"type"`
	User     string          `json:"user"`
	Content  string          `json:"content"`
	BotID    string          `json:"bot_id"`
	IsTyping bool            `json:"is_typing"`
	Persona  json.RawMessage `json:"persona"`
	Params   json.RawMessage `json:"params"`
}

// Service dispatches inbound websocket events of a room.
type Service struct {
	sink      Sink
	processor Processor
	scheduler Scheduler
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*broadcast.Hub](di),
		do.MustInvoke[*conversation.Service](di),
		do.MustInvoke[*queue.Service](di),
	), nil
}

func NewService(sink Sink, processor Processor, scheduler Scheduler) *Service {
	return &Service{
		sink:      sink,
		processor: processor,
		scheduler: scheduler,
	}
}

// Handle processes one frame. Client mistakes are answered to conn only, the connection stays usable.
func (s *Service) Handle(r *room.Room, conn broadcast.Conn, data []byte) {
	var event inbound
	if err := json.Unmarshal(data, &event); err != nil {
		s.reject(conn, ErrInvalidJSON)
		return
	}

	var err error

	switch event.Type {
	case TypeJoin:
		err = s.join(r, event)
	case TypeChat:
		err = s.chat(r, event)
	case TypeBotAdd:
		err = s.addBot(r, event)
	case TypeBotRemove:
		err = s.removeBot(r, event)
	case TypeTyping:
		s.sink.Broadcast(r.ID, broadcast.NewTyping(event.User, event.IsTyping))
	case TypePersonaUpdate:
		err = s.updatePersona(r, event)
	case TypeSlidersUpdate:
		err = s.updateParams(r, event)
	default:
		err = ErrUnknownEvent
	}

	if err != nil {
		slog.Debug("Rejected event",
			"room_id", r.ID,
			"type", event.Type,
			"user", event.User,
			"error", err,
		)
		s.reject(conn, err)
	}
}

func (s *Service) reject(conn broadcast.Conn, err error) {
	if sendErr := s.sink.Send(conn, broadcast.NewError(err.Error())); sendErr != nil {
		slog.Debug("Failed to send error",
			"error", sendErr,
		)
	}
}

func (s *Service) join(r *room.Room, event inbound) error {
	user := strings.TrimSpace(event.User)
	if user == "" {
		return errors.New("user is required")
	}

	r.Join(user)

	joined := broadcast.NewSystem(broadcast.EventJoined)
	joined.User = user
	s.sink.Broadcast(r.ID, joined)

	return nil
}

func (s *Service) chat(r *room.Room, event inbound) error {
	user := strings.TrimSpace(event.User)
	if user == "" || strings.TrimSpace(event.Content) == "" {
		return errors.New("user and content are required")
	}

	msg := r.AppendMessage(user, room.RoleUser, event.Content)
	s.sink.Broadcast(r.ID, broadcast.NewChat(msg))

	content := event.Content
	accepted := s.scheduler.Add(r.ID, func(ctx context.Context) error {
		start := time.Now()
		err := s.processor.ProcessMessage(ctx, r, content)

		slog.Info("Processed message",
			"room_id", r.ID,
			"user", user,
			"duration", time.Since(start),
		)

		return err
	})
	if !accepted {
		return ErrRoomBusy
	}

	return nil
}

func (s *Service) authorize(r *room.Room, event inbound) error {
	if event.User != r.Admin {
		return ErrForbidden
	}
	return nil
}

func (s *Service) addBot(r *room.Room, event inbound) error {
	if err := s.authorize(r, event); err != nil {
		return err
	}

	bot, ok := persona.LookupBot(event.BotID)
	if !ok {
		return fmt.Errorf("%w: %s", room.ErrUnknownBot, event.BotID)
	}

	if !r.ActivateBot(bot.ID) {
		return nil
	}

	added := broadcast.NewSystem(broadcast.EventBotAdded)
	added.BotID = bot.ID
	added.BotName = bot.Config.Name
	s.sink.Broadcast(r.ID, added)

	slog.Info("Bot added",
		"room_id", r.ID,
		"bot_id", bot.ID,
	)

	return nil
}

func (s *Service) removeBot(r *room.Room, event inbound) error {
	if err := s.authorize(r, event); err != nil {
		return err
	}

	if !r.DeactivateBot(event.BotID) {
		return nil
	}

	removed := broadcast.NewSystem(broadcast.EventBotRemoved)
	removed.BotID = event.BotID
	if bot, ok := persona.LookupBot(event.BotID); ok {
		removed.BotName = bot.Config.Name
	}
	s.sink.Broadcast(r.ID, removed)

	slog.Info("Bot removed",
		"room_id", r.ID,
		"bot_id", event.BotID,
	)

	return nil
}

func (s *Service) updatePersona(r *room.Room, event inbound) error {
	cfg, err := persona.DecodeConfig(event.Persona)
	if err != nil {
		return err
	}

	r.SetPersona(cfg)
	s.sink.Broadcast(r.ID, broadcast.NewSystem(broadcast.EventPersonaUpdated))

	return nil
}

func (s *Service) updateParams(r *room.Room, event inbound) error {
	params, err := persona.DecodeParams(event.Params)
	if err != nil {
		return err
	}

	r.SetParams(params)
	s.sink.Broadcast(r.ID, broadcast.NewSystem(broadcast.EventParamsUpdated))

	return nil
}
