package room

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"multichat/app/config"
	"multichat/app/service/persona"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUnknownBot   = errors.New("unknown bot")
	ErrInvalidRoom  = errors.New("invalid room request")
)

type CreateRequest struct {
	Name       string `json:"name"`
	Admin      string `json:"admin"`
	InitialBot string `json:"initial_bot"`
}

// Registry owns every room of the process. Rooms are only created through Create.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	defaultPersona persona.Config
	maxHistory     int
}

func New(di *do.Injector) (*Registry, error) {
	cfg := do.MustInvoke[*config.Config](di)

	defaultPersona := persona.DefaultPrimary()
	if cfg.Chat.DefaultPersonaFile != "" {
		loaded, err := persona.LoadConfigFile(cfg.Chat.DefaultPersonaFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load default persona: %w", err)
		}
		defaultPersona = loaded
	}

	return NewRegistry(defaultPersona, cfg.Chat.MaxHistory), nil
}

func NewRegistry(defaultPersona persona.Config, maxHistory int) *Registry {
	return &Registry{
		rooms:          make(map[string]*Room),
		defaultPersona: defaultPersona,
		maxHistory:     maxHistory,
	}
}

func (r *Registry) Create(req CreateRequest) (*Room, error) {
	name := strings.TrimSpace(req.Name)
	admin := strings.TrimSpace(req.Admin)
	if name == "" || admin == "" {
		return nil, fmt.Errorf("%w: name and admin are required", ErrInvalidRoom)
	}

	if req.InitialBot != "" {
		if _, ok := persona.LookupBot(req.InitialBot); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBot, req.InitialBot)
		}
	}

	room := NewRoom(Options{
		Name:       name,
		Admin:      admin,
		Persona:    r.defaultPersona,
		Params:     persona.DefaultParams(),
		MaxHistory: r.maxHistory,
	})

	if req.InitialBot != "" {
		room.ActivateBot(req.InitialBot)
	}

	r.mu.Lock()
	r.rooms[room.ID] = room
	r.mu.Unlock()

	slog.Info("Room created",
		"room_id", room.ID,
		"name", room.Name,
		"admin", room.Admin,
		"initial_bot", req.InitialBot,
	)

	return room, nil
}

func (r *Registry) Get(id string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}

	return room, nil
}

// List returns rooms oldest first.
func (r *Registry) List() []*Room {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	return pie.SortUsing(rooms, func(a, b *Room) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
