package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"ticrelay/internal/events"
	"ticrelay/internal/relay"
	"ticrelay/internal/wshub"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	hub := wshub.NewHub()
	srv := &Server{
		Relay: relay.New(relay.NewRegistry(), hub),
		Hub:   hub,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleStatus)
	mux.HandleFunc("/stats", srv.handleStats)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/ws", srv.handleWS)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ctx context.Context, baseURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, baseURL+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := events.Marshal(event, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, ctx context.Context, conn *websocket.Conn) events.Envelope {
	t.Helper()
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(rctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := events.Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

func decodeInto(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatal(err)
	}
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleStatus_Empty(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.ActiveGames != 0 || body.ConnectedUsers != 0 {
		t.Errorf("body = %+v, want zero counts", body)
	}
	if body.Message == "" {
		t.Error("status message should not be empty")
	}
}

func TestHandleStatus_UnknownPath(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleStats_ReflectsRegistry(t *testing.T) {
	srv, ts := newTestServer(t)

	srv.Relay.Registry().Join("g1", "c1", "u1")
	srv.Relay.Registry().Join("g1", "c2", "u2")

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.ActiveGames != 1 || body.ConnectedUsers != 2 {
		t.Errorf("body = %+v, want 1 game / 2 users", body)
	}
	if len(body.Games) != 1 || body.Games[0].UUID != "g1" || body.Games[0].PlayersCount != 2 {
		t.Errorf("games = %+v, want [g1:2]", body.Games)
	}
}

// Full session over real websockets: alice and bob join g1, bob plays a
// move alice alone receives, bob drops and alice is told, alice drops and
// the room disappears.
func TestWebSocketSession(t *testing.T) {
	srv, ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connA := dial(t, ctx, ts.URL)
	defer connA.Close(websocket.StatusNormalClosure, "")

	send(t, ctx, connA, events.JoinGame, events.JoinGamePayload{GameUUID: "g1", UserID: "u1", Username: "alice"})
	env := recv(t, ctx, connA)
	if env.Event != events.PlayerJoined {
		t.Fatalf("Event = %q, want %q", env.Event, events.PlayerJoined)
	}
	var joined events.PlayerJoinedPayload
	decodeInto(t, env.Data, &joined)
	if joined.PlayersCount != 1 {
		t.Errorf("PlayersCount = %d, want 1", joined.PlayersCount)
	}

	connB := dial(t, ctx, ts.URL)
	send(t, ctx, connB, events.JoinGame, events.JoinGamePayload{GameUUID: "g1", UserID: "u2", Username: "bob"})

	// Both members see bob's join with the updated count
	for _, conn := range []*websocket.Conn{connA, connB} {
		env = recv(t, ctx, conn)
		if env.Event != events.PlayerJoined {
			t.Fatalf("Event = %q, want %q", env.Event, events.PlayerJoined)
		}
		decodeInto(t, env.Data, &joined)
		if joined.UserID != "u2" || joined.Username != "bob" || joined.PlayersCount != 2 {
			t.Errorf("payload = %+v, want u2/bob/2", joined)
		}
	}

	// Bob plays; only alice receives the move
	send(t, ctx, connB, events.PlayMove, events.PlayMovePayload{GameUUID: "g1", Position: 4, Symbol: "O", UserID: "u2"})
	env = recv(t, ctx, connA)
	if env.Event != events.MovePlayed {
		t.Fatalf("Event = %q, want %q", env.Event, events.MovePlayed)
	}
	var move events.MovePlayedPayload
	decodeInto(t, env.Data, &move)
	if move.Position != 4 || move.Symbol != "O" || move.UserID != "u2" {
		t.Errorf("payload = %+v, want 4/O/u2", move)
	}
	if move.Timestamp <= 0 {
		t.Error("Timestamp should be set by the server")
	}

	quiet, quietCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	if _, _, err := connB.Read(quiet); err == nil {
		t.Error("bob should not receive his own move")
	}
	quietCancel()

	// Bob drops; alice is notified and the room shrinks
	connB.Close(websocket.StatusNormalClosure, "")
	env = recv(t, ctx, connA)
	if env.Event != events.PlayerLeft {
		t.Fatalf("Event = %q, want %q", env.Event, events.PlayerLeft)
	}
	var left events.PlayerLeftPayload
	decodeInto(t, env.Data, &left)
	if left.UserID != "u2" {
		t.Errorf("UserID = %q, want %q", left.UserID, "u2")
	}

	waitFor(t, func() bool { return srv.Relay.Registry().PlayersCount("g1") == 1 })

	// Alice drops; the room is deleted
	connA.Close(websocket.StatusNormalClosure, "")
	waitFor(t, func() bool { return srv.Relay.Registry().ActiveGames() == 0 })
}

func TestWebSocket_GameStateFlow(t *testing.T) {
	_, ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connA := dial(t, ctx, ts.URL)
	defer connA.Close(websocket.StatusNormalClosure, "")
	connB := dial(t, ctx, ts.URL)
	defer connB.Close(websocket.StatusNormalClosure, "")

	send(t, ctx, connA, events.JoinGame, events.JoinGamePayload{GameUUID: "g2", UserID: "u1", Username: "alice"})
	recv(t, ctx, connA)
	send(t, ctx, connB, events.JoinGame, events.JoinGamePayload{GameUUID: "g2", UserID: "u2", Username: "bob"})
	recv(t, ctx, connA)
	recv(t, ctx, connB)

	// A new-ish client asks for state; only the other side is solicited
	send(t, ctx, connB, events.RequestGameState, events.RequestGameStatePayload{GameUUID: "g2"})
	env := recv(t, ctx, connA)
	if env.Event != events.ShareGameState {
		t.Fatalf("Event = %q, want %q", env.Event, events.ShareGameState)
	}

	// Alice shares; everyone, alice included, gets the opaque state back
	state := json.RawMessage(`{"board":["X","","O","","O","","","",""],"turn":"u1"}`)
	send(t, ctx, connA, events.GameUpdate, events.GameUpdatePayload{GameUUID: "g2", GameState: state})
	for _, conn := range []*websocket.Conn{connA, connB} {
		env = recv(t, ctx, conn)
		if env.Event != events.GameUpdated {
			t.Fatalf("Event = %q, want %q", env.Event, events.GameUpdated)
		}
		if string(env.Data) != string(state) {
			t.Errorf("Data = %s, want unmodified state", env.Data)
		}
	}

	// Game over reaches the whole room
	send(t, ctx, connB, events.GameEnded, events.GameEndedPayload{GameUUID: "g2", Winner: json.RawMessage(`"u2"`), IsDraw: false})
	for _, conn := range []*websocket.Conn{connA, connB} {
		env = recv(t, ctx, conn)
		if env.Event != events.GameFinished {
			t.Fatalf("Event = %q, want %q", env.Event, events.GameFinished)
		}
		var fin events.GameFinishedPayload
		decodeInto(t, env.Data, &fin)
		if string(fin.Winner) != `"u2"` || fin.IsDraw {
			t.Errorf("payload = %+v, want winner u2", fin)
		}
	}
}

func TestWebSocket_LeaveGame(t *testing.T) {
	srv, ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connA := dial(t, ctx, ts.URL)
	defer connA.Close(websocket.StatusNormalClosure, "")
	connB := dial(t, ctx, ts.URL)
	defer connB.Close(websocket.StatusNormalClosure, "")

	send(t, ctx, connA, events.JoinGame, events.JoinGamePayload{GameUUID: "g3", UserID: "u1", Username: "alice"})
	recv(t, ctx, connA)
	send(t, ctx, connB, events.JoinGame, events.JoinGamePayload{GameUUID: "g3", UserID: "u2", Username: "bob"})
	recv(t, ctx, connA)
	recv(t, ctx, connB)

	send(t, ctx, connB, events.LeaveGame, events.LeaveGamePayload{GameUUID: "g3", UserID: "u2"})
	env := recv(t, ctx, connA)
	if env.Event != events.PlayerLeft {
		t.Fatalf("Event = %q, want %q", env.Event, events.PlayerLeft)
	}
	var left events.PlayerLeftPayload
	decodeInto(t, env.Data, &left)
	if left.UserID != "u2" {
		t.Errorf("UserID = %q, want %q", left.UserID, "u2")
	}

	waitFor(t, func() bool { return srv.Relay.Registry().PlayersCount("g3") == 1 })
}

// waitFor polls until cond holds, failing the test after two seconds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
