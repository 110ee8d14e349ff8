package conversation

import (
	"encoding/json"
	"strings"
)

// StructuredReply is the JSON envelope a structured_output persona is asked to produce.
type StructuredReply struct {
	SpeakNow        bool             `json:"speak_now"`
	Address         []string         `json:"address"`
	Tone            string           `json:"tone"`
	Content         string           `json:"content"`
	Actions         []map[string]any `json:"actions"`
	MemoryUpdate    string           `json:"memory_update"`
	ModerationFlags []string         `json:"moderation_flags"`
}

// Reply is a primary persona completion: exactly one of Structured or Raw is meaningful.
type Reply struct {
	Structured *StructuredReply
	Raw        string
}

type structuredWire struct {
	SpeakNow        *bool            `json:"speak_now"`
	Address         []string         `json:"address"`
	Tone            *string          `json:"tone"`
	Content         string           `json:"content"`
	Actions         []map[string]any `json:"actions"`
	MemoryUpdate    *string          `json:"memory_update"`
	ModerationFlags []string         `json:"moderation_flags"`
}

// ParseReply resolves a completion into a Reply. Anything that is not a JSON object
// with a boolean speak_now is kept as raw text.
func ParseReply(text string) Reply {
	text = strings.TrimSpace(text)

	var wire structuredWire
	if err := json.Unmarshal([]byte(text), &wire); err != nil || wire.SpeakNow == nil {
		return Reply{Raw: text}
	}

	reply := &StructuredReply{
		SpeakNow:        *wire.SpeakNow,
		Address:         wire.Address,
		Content:         strings.TrimSpace(wire.Content),
		Actions:         wire.Actions,
		ModerationFlags: wire.ModerationFlags,
	}
	if wire.Tone != nil {
		reply.Tone = *wire.Tone
	}
	if wire.MemoryUpdate != nil {
		reply.MemoryUpdate = strings.TrimSpace(*wire.MemoryUpdate)
	}

	return Reply{Structured: reply}
}

// Text returns what should be posted, false when the persona stays silent.
func (r Reply) Text() (string, bool) {
	if r.Structured != nil {
		if !r.Structured.SpeakNow || r.Structured.Content == "" {
			return "", false
		}
		return r.Structured.Content, true
	}

	return r.Raw, r.Raw != ""
}

// MemoryUpdate is the persona's self-note, empty for raw replies.
func (r Reply) MemoryUpdate() string {
	if r.Structured == nil {
		return ""
	}
	return r.Structured.MemoryUpdate
}
