package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"multichat/app/service/persona"
	"multichat/app/service/room"

	"github.com/elliotchance/pie/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const (
	serverName    = "multichat"
	serverVersion = "1.0.0"

	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type botInfo struct {
	ID string `json:"id"`
	persona.BotMetadata
	Name string `json:"name"`
}

// Service exposes read-only room inspection tools over MCP.
type Service struct {
	registry *room.Registry
	server   *server.MCPServer
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[*room.Registry](di)), nil
}

func NewService(registry *room.Registry) *Service {
	s := &Service{
		registry: registry,
		server: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(false),
			server.WithInstructions("Inspect live chat rooms: list them, read their history and memory."),
		),
	}

	s.server.AddTool(mcp.NewTool("list_rooms",
		mcp.WithDescription("List chat rooms with their participants and active bots, oldest first."),
	), s.listRooms)

	s.server.AddTool(mcp.NewTool("list_bots",
		mcp.WithDescription("List bot personas that can be added to a room."),
	), s.listBots)

	s.server.AddTool(mcp.NewTool("room_history",
		mcp.WithDescription("Return the most recent messages of a room, oldest first."),
		mcp.WithString("room_id",
			mcp.Required(),
			mcp.Description("Room id as returned by list_rooms"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max messages to return, default %d, at most %d", defaultHistoryLimit, maxHistoryLimit)),
		),
	), s.roomHistory)

	s.server.AddTool(mcp.NewTool("room_memory",
		mcp.WithDescription("Return the rolling summary and per-user facts remembered for a room."),
		mcp.WithString("room_id",
			mcp.Required(),
			mcp.Description("Room id as returned by list_rooms"),
		),
	), s.roomMemory)

	return s
}

func (s *Service) Server() *server.MCPServer {
	return s.server
}

func (s *Service) listRooms(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos := pie.Map(s.registry.List(), func(r *room.Room) room.Info {
		return r.Info()
	})
	return jsonResult(infos)
}

func (s *Service) listBots(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos := pie.Map(persona.Bots(), func(b persona.Bot) botInfo {
		return botInfo{ID: b.ID, Name: b.Config.Name, BotMetadata: b.Metadata}
	})
	return jsonResult(infos)
}

func (s *Service) roomHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, errResult := s.lookup(req)
	if errResult != nil {
		return errResult, nil
	}

	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	return jsonResult(r.LastMessages(limit))
}

func (s *Service) roomMemory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, errResult := s.lookup(req)
	if errResult != nil {
		return errResult, nil
	}

	return jsonResult(r.Memory())
}

// lookup resolves room_id. Lookup failures are tool errors, not protocol errors.
func (s *Service) lookup(req mcp.CallToolRequest) (*room.Room, *mcp.CallToolResult) {
	id, err := req.RequireString("room_id")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}

	r, err := s.registry.Get(id)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}

	return r, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
