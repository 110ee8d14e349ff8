package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/do"
)

// Conn is one subscriber. Send must be safe for concurrent use.
type Conn interface {
	Send(data []byte) error
}

// Hub fans room events out to every subscribed connection.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
}

func New(_ *do.Injector) (*Hub, error) {
	return NewHub(), nil
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[Conn]struct{}),
	}
}

func (h *Hub) Subscribe(roomID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.rooms[roomID]
	if !ok {
		conns = make(map[Conn]struct{})
		h.rooms[roomID] = conns
	}
	conns[conn] = struct{}{}
}

func (h *Hub) Unsubscribe(roomID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.rooms[roomID]
	if !ok {
		return
	}

	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.rooms, roomID)
	}
}

// Count returns the number of connections subscribed to a room.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[roomID])
}

// Broadcast is best effort: the event is marshalled once and write errors are only logged.
func (h *Hub) Broadcast(roomID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event",
			"room_id", roomID,
			"error", err,
		)
		return
	}

	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[roomID]))
	for conn := range h.rooms[roomID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err = conn.Send(data); err != nil {
			slog.Debug("Failed to deliver event",
				"room_id", roomID,
				"error", err,
			)
		}
	}
}

// Send delivers an event to a single connection, used for sender-only errors.
func (h *Hub) Send(conn Conn, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err = conn.Send(data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	return nil
}
