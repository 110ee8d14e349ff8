package room

import (
	"sync"
	"time"

	"multichat/app/service/persona"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
)

// Cooldown is the minimum gap between AI messages enforced by CanSpeak.
const Cooldown = 2 * time.Second

type Memory struct {
	Summary string            `json:"summary"`
	PerUser map[string]string `json:"per_user"`
}

// Room is one chat session. All methods are safe for concurrent use.
type Room struct {
	ID        string
	Name      string
	Admin     string
	CreatedAt time.Time

	mu            sync.RWMutex
	clock         func() time.Time
	participants  map[string]struct{}
	activeBots    []string
	history       history
	memory        Memory
	persona       persona.Config
	params        persona.Params
	lastAI        time.Time
	consecutiveAI int
	summarizedAt  int
}

type Options struct {
	ID         string
	Name       string
	Admin      string
	Persona    persona.Config
	Params     persona.Params
	MaxHistory int
	Clock      func() time.Time
}

func NewRoom(opts Options) *Room {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &Room{
		ID:           id,
		Name:         opts.Name,
		Admin:        opts.Admin,
		CreatedAt:    clock(),
		clock:        clock,
		participants: make(map[string]struct{}),
		history:      history{limit: opts.MaxHistory},
		memory:       Memory{PerUser: make(map[string]string)},
		persona:      opts.Persona.Clone(),
		params:       opts.Params,
	}
}

// AppendMessage records a message. Human messages reset the shared AI counter,
// AI messages bump it and the last-AI timestamp.
func (r *Room) AppendMessage(author string, role Role, content string) Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := Message{
		ID:        uuid.NewString(),
		RoomID:    r.ID,
		Author:    author,
		Role:      role,
		Content:   content,
		Timestamp: r.clock(),
	}
	r.history.add(msg)

	switch role {
	case RoleUser:
		r.consecutiveAI = 0
	case RoleAssistant:
		r.consecutiveAI++
		r.lastAI = msg.Timestamp
	}

	return msg
}

// TailByTokenBudget returns the newest messages whose combined content fits in maxTokens*4 characters,
// oldest first.
func (r *Room) TailByTokenBudget(maxTokens int) []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.history.tail(maxTokens)
}

func (r *Room) LastMessages(n int) []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.history.last(n)
}

func (r *Room) History() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Message(nil), r.history.messages...)
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.history.messages)
}

// Appended counts every message ever appended, evicted ones included.
func (r *Room) Appended() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.history.appended
}

// SecondsSinceLastHuman measures from the newest user message, or from the epoch when there is none.
func (r *Room) SecondsSinceLastHuman(now time.Time) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.history.messages) - 1; i >= 0; i-- {
		if r.history.messages[i].Role == RoleUser {
			return now.Sub(r.history.messages[i].Timestamp).Seconds()
		}
	}

	return float64(now.Unix())
}

// CanSpeak is the rate gate: the shared consecutive-AI cap first, then the cooldown.
func (r *Room) CanSpeak(now time.Time, maxConsecutive int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.consecutiveAI >= maxConsecutive {
		return false
	}
	if now.Sub(r.lastAI) < Cooldown {
		return false
	}

	return true
}

// LastAI returns the time of the newest AI message, zero if none.
func (r *Room) LastAI() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastAI
}

func (r *Room) ConsecutiveAI() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.consecutiveAI
}

func (r *Room) Join(user string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.participants[user] = struct{}{}
}

func (r *Room) Participants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return pie.Sort(pie.Keys(r.participants))
}

// ActivateBot appends id to the active set. Returns false if it was already active.
func (r *Room) ActivateBot(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pie.Contains(r.activeBots, id) {
		return false
	}
	r.activeBots = append(r.activeBots, id)

	return true
}

func (r *Room) DeactivateBot(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !pie.Contains(r.activeBots, id) {
		return false
	}
	r.activeBots = pie.Filter(r.activeBots, func(active string) bool {
		return active != id
	})

	return true
}

// ActiveBots returns bot ids in activation order.
func (r *Room) ActiveBots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.activeBots...)
}

func (r *Room) Persona() persona.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.persona.Clone()
}

func (r *Room) SetPersona(cfg persona.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.persona = cfg.Clone()
}

func (r *Room) Params() persona.Params {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.params
}

func (r *Room) SetParams(params persona.Params) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.params = params
}

// Memory returns a copy of the room memory.
func (r *Room) Memory() Memory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perUser := make(map[string]string, len(r.memory.PerUser))
	for k, v := range r.memory.PerUser {
		perUser[k] = v
	}

	return Memory{Summary: r.memory.Summary, PerUser: perUser}
}

// PersonaMemory is Memory in the shape the persona renderer takes.
func (r *Room) PersonaMemory() persona.Memory {
	memory := r.Memory()
	return persona.Memory{Summary: memory.Summary, PerUser: memory.PerUser}
}

// SetUserFact replaces the fact string of one user.
func (r *Room) SetUserFact(user, fact string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.memory.PerUser[user] = fact
}

// MergeFacts appends new facts to existing ones as "existing, new". Facts are never deduplicated.
func (r *Room) MergeFacts(facts map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for user, fact := range facts {
		if existing, ok := r.memory.PerUser[user]; ok {
			r.memory.PerUser[user] = existing + ", " + fact
		} else {
			r.memory.PerUser[user] = fact
		}
	}
}

// SetSummary replaces the rolling summary and marks the current history position as summarised.
func (r *Room) SetSummary(summary string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.memory.Summary = summary
	r.summarizedAt = r.history.appended
}

// SummaryDue reports whether at least every messages were appended since the last SetSummary.
func (r *Room) SummaryDue(every int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return every > 0 && r.history.appended-r.summarizedAt >= every
}

// Info is the listing view of a room.
type Info struct {
	RoomID       string    `json:"room_id"`
	Name         string    `json:"name"`
	Admin        string    `json:"admin"`
	Participants []string  `json:"participants"`
	ActiveBots   []string  `json:"active_bots"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *Room) Info() Info {
	return Info{
		RoomID:       r.ID,
		Name:         r.Name,
		Admin:        r.Admin,
		Participants: r.Participants(),
		ActiveBots:   r.ActiveBots(),
		CreatedAt:    r.CreatedAt,
	}
}
