package room

import (
	"fmt"
	"strings"
	"time"
)

const charsPerToken = 4

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Message is immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Author    string    `json:"user"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}

type history struct {
	messages []Message
	limit    int
	appended int
}

func (h *history) add(msg Message) {
	h.appended++
	if h.limit > 0 && len(h.messages) >= h.limit {
		h.messages = append(h.messages[1:], msg)
	} else {
		h.messages = append(h.messages, msg)
	}
}

func (h *history) last(n int) []Message {
	if n <= 0 {
		return nil
	}
	if n > len(h.messages) {
		n = len(h.messages)
	}

	return append([]Message(nil), h.messages[len(h.messages)-n:]...)
}

// tail walks newest to oldest and stops before the character budget would be exceeded.
func (h *history) tail(maxTokens int) []Message {
	limit := maxTokens * charsPerToken
	total := 0
	start := len(h.messages)

	for i := len(h.messages) - 1; i >= 0; i-- {
		size := len(h.messages[i].Content)
		if total+size > limit {
			break
		}
		total += size
		start = i
	}

	return append([]Message(nil), h.messages[start:]...)
}

// Format renders messages as "author: content" lines, the shape every prompt uses.
func Format(messages []Message) string {
	var builder strings.Builder

	for i, msg := range messages {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("%s: %s", msg.Author, msg.Content))
	}

	return builder.String()
}
