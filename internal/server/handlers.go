package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"ticrelay/internal/events"
	"ticrelay/internal/metrics"
	"ticrelay/internal/relay"
	"ticrelay/internal/wshub"
)

type Server struct {
	Relay          *relay.Relay
	Hub            *wshub.Hub
	OriginPatterns []string
}

type statusResponse struct {
	Message        string `json:"message"`
	ActiveGames    int    `json:"activeGames"`
	ConnectedUsers int    `json:"connectedUsers"`
}

type statsResponse struct {
	ActiveGames    int              `json:"activeGames"`
	ConnectedUsers int              `json:"connectedUsers"`
	Games          []relay.GameStat `json:"games"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	reg := s.Relay.Registry()
	writeJSON(w, statusResponse{
		Message:        "Tic Tac Toe WebSocket relay",
		ActiveGames:    reg.ActiveGames(),
		ConnectedUsers: reg.ConnectedUsers(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reg := s.Relay.Registry()
	writeJSON(w, statsResponse{
		ActiveGames:    reg.ActiveGames(),
		ConnectedUsers: reg.ConnectedUsers(),
		Games:          reg.Games(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, `{"status":"ok"}`)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Handle] encode error: %v\n", err)
	}
}

// handleWS upgrades the connection, registers it with the hub under a
// fresh connection ID, and pumps inbound frames into the relay until the
// client goes away. Membership cleanup runs on the way out: the hub drops
// the connection's subscriptions first so the departure broadcast only
// reaches the members still there.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		log.Printf("[WS] accept error: %v\n", err)
		return
	}

	connID := uuid.New().String()
	client := &wshub.Client{
		ID:   connID,
		Conn: conn,
		Send: make(chan []byte, 64),
	}
	s.Hub.Register(client)
	metrics.ConnectionsTotal.Inc()
	log.Printf("[WS] client connected: %s\n", connID)

	ctx := r.Context()
	go client.WritePump(ctx)

	defer func() {
		s.Hub.Unregister(connID)
		s.Relay.Disconnect(connID)
		conn.Close(websocket.StatusNormalClosure, "")
		log.Printf("[WS] client disconnected: %s\n", connID)
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		s.dispatch(connID, data)
	}
}

// dispatch routes one inbound frame to the relay. Payload fields are not
// validated: absent fields arrive as zero values and pass through.
func (s *Server) dispatch(connID string, data []byte) {
	env, err := events.Unmarshal(data)
	if err != nil {
		log.Printf("[WS] bad frame from %s: %v\n", connID, err)
		return
	}

	switch env.Event {
	case events.JoinGame:
		var p events.JoinGamePayload
		decodePayload(env.Data, &p)
		s.Relay.Join(p.GameUUID, connID, p.UserID, p.Username)
	case events.PlayMove:
		var p events.PlayMovePayload
		decodePayload(env.Data, &p)
		s.Relay.PlayMove(p.GameUUID, connID, p.Position, p.Symbol, p.UserID)
	case events.GameUpdate:
		var p events.GameUpdatePayload
		decodePayload(env.Data, &p)
		s.Relay.UpdateGameState(p.GameUUID, p.GameState)
	case events.GameEnded:
		var p events.GameEndedPayload
		decodePayload(env.Data, &p)
		s.Relay.EndGame(p.GameUUID, p.Winner, p.IsDraw)
	case events.RequestGameState:
		var p events.RequestGameStatePayload
		decodePayload(env.Data, &p)
		s.Relay.RequestGameState(p.GameUUID, connID)
	case events.LeaveGame:
		var p events.LeaveGamePayload
		decodePayload(env.Data, &p)
		s.Relay.Leave(p.GameUUID, p.UserID, connID)
	default:
		log.Printf("[WS] unknown event %q from %s\n", env.Event, connID)
	}
}

func decodePayload(data json.RawMessage, v any) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("[WS] payload decode error: %v\n", err)
	}
}
