package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"multichat/app/config"
	"multichat/app/service/broadcast"
	"multichat/app/service/engine"
	"multichat/app/service/mcptools"
	"multichat/app/service/persona"
	"multichat/app/service/queue"
	"multichat/app/service/room"

	fastws "github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type silentProcessor struct{}

func (silentProcessor) ProcessMessage(context.Context, *room.Room, string) error {
	return nil
}

type inlineScheduler struct{}

func (inlineScheduler) Add(_ string, job queue.Job) bool {
	_ = job(context.Background())
	return true
}

type fixture struct {
	server   *Server
	registry *room.Registry
	hub      *broadcast.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Listen = "127.0.0.1:0"

	registry := room.NewRegistry(persona.DefaultPrimary(), 0)
	hub := broadcast.NewHub()
	engineSvc := engine.NewService(hub, silentProcessor{}, inlineScheduler{})

	return &fixture{
		server:   NewServer(&cfg, registry, engineSvc, hub, mcptools.NewService(registry)),
		registry: registry,
		hub:      hub,
	}
}

func (f *fixture) do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()

	resp, err := f.server.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestListBots(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/bots", nil))
	require.Equal(t, http.StatusOK, code)

	var bots map[string]persona.BotMetadata
	require.NoError(t, json.Unmarshal(body, &bots))
	assert.Len(t, bots, len(persona.Bots()))
	assert.Equal(t, "Enlightened AI", bots["zen"].Tagline)
}

func TestCreateAndListRooms(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/create",
		strings.NewReader(`{"name":"lobby","admin":"alice","initial_bot":"zen"}`))
	req.Header.Set("Content-Type", "application/json")

	code, body := f.do(t, req)
	require.Equal(t, http.StatusOK, code, string(body))

	var created createRoomResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "lobby", created.Name)
	assert.NotEmpty(t, created.RoomID)

	code, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	require.Equal(t, http.StatusOK, code)

	var rooms []room.Info
	require.NoError(t, json.Unmarshal(body, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, created.RoomID, rooms[0].RoomID)
	assert.Equal(t, "alice", rooms[0].Admin)
	assert.Equal(t, []string{"zen"}, rooms[0].ActiveBots)
}

func TestCreateRoomRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	for name, body := range map[string]string{
		"malformed":   `{"name":`,
		"missing":     `{"name":"lobby"}`,
		"unknown bot": `{"name":"lobby","admin":"alice","initial_bot":"nobody"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/rooms/create", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			code, resp := f.do(t, req)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, string(resp), "error")
		})
	}

	assert.Empty(t, f.registry.List())
}

func TestSocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/ws/anything", nil))

	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "multichat_")
}

func serve(t *testing.T, f *fixture) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.server.Serve(ctx, ln)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("server did not stop")
		}
	})

	return "ws://" + ln.Addr().String()
}

func readEvent(t *testing.T, conn *fastws.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))

	return event
}

func TestSocketJoinAndChat(t *testing.T) {
	f := newFixture(t)
	r, err := f.registry.Create(room.CreateRequest{Name: "lobby", Admin: "alice"})
	require.NoError(t, err)

	base := serve(t, f)

	conn, _, err := fastws.DefaultDialer.Dial(base+"/ws/"+r.ID, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join", "user": "bob"}))
	joined := readEvent(t, conn)
	assert.Equal(t, "system", joined["type"])
	assert.Equal(t, "joined", joined["event"])
	assert.Equal(t, "bob", joined["user"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "chat", "user": "bob", "content": "hi"}))
	chat := readEvent(t, conn)
	assert.Equal(t, "chat", chat["type"])
	assert.Equal(t, "hi", chat["content"])

	require.NoError(t, conn.WriteMessage(fastws.TextMessage, []byte("{nope")))
	invalid := readEvent(t, conn)
	assert.Equal(t, "error", invalid["type"])
	assert.Equal(t, "invalid json", invalid["message"])

	assert.Equal(t, 1, f.hub.Count(r.ID))
	assert.Equal(t, 1, r.Len())
}

func TestSocketUnknownRoom(t *testing.T) {
	f := newFixture(t)
	base := serve(t, f)

	conn, _, err := fastws.DefaultDialer.Dial(base+"/ws/nope", nil)
	require.NoError(t, err)
	defer conn.Close()

	event := readEvent(t, conn)
	assert.Equal(t, "error", event["type"])
	assert.Contains(t, event["message"], "room not found")

	_, _, err = conn.ReadMessage()
	assert.True(t, fastws.IsCloseError(err, fastws.ClosePolicyViolation), "got %v", err)
}
