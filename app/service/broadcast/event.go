package broadcast

import (
	"time"

	"multichat/app/service/room"
)

const (
	TypeChat   = "chat"
	TypeSystem = "system"
	TypeTyping = "typing"
	TypeError  = "error"
)

const (
	EventJoined         = "joined"
	EventBotAdded       = "bot.added"
	EventBotRemoved     = "bot.removed"
	EventDebateStart    = "debate.start"
	EventPersonaUpdated = "persona.updated"
	EventParamsUpdated  = "params.updated"
)

type ChatEvent struct {
	Type    string    `json:"type"`
	User    string    `json:"user"`
	Content string    `json:"content"`
	TS      time.Time `json:"ts"`
	IsBot   bool      `json:"is_bot,omitempty"`
	BotID   string    `json:"bot_id,omitempty"`
}

type SystemEvent struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Message string `json:"message,omitempty"`
	User    string `json:"user,omitempty"`
	BotID   string `json:"bot_id,omitempty"`
	BotName string `json:"bot_name,omitempty"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	IsTyping bool   `json:"is_typing"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewChat(msg room.Message) ChatEvent {
	return ChatEvent{
		Type:    TypeChat,
		User:    msg.Author,
		Content: msg.Content,
		TS:      msg.Timestamp,
	}
}

// NewBotChat is a chat event authored by a catalogue bot.
func NewBotChat(msg room.Message, botID string) ChatEvent {
	event := NewChat(msg)
	event.IsBot = true
	event.BotID = botID
	return event
}

func NewSystem(event string) SystemEvent {
	return SystemEvent{Type: TypeSystem, Event: event}
}

func NewTyping(user string, isTyping bool) TypingEvent {
	return TypingEvent{Type: TypeTyping, User: user, IsTyping: isTyping}
}

func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}
