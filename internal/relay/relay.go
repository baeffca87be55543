package relay

import (
	"encoding/json"
	"log"
	"time"

	"ticrelay/internal/events"
	"ticrelay/internal/metrics"
)

// Transport is the room-capable messaging channel the relay broadcasts
// through. Delivery is fire-and-forget: a broadcast to a room with no
// subscribers is a no-op, and no send is retried or acknowledged.
type Transport interface {
	Subscribe(roomID, connID string)
	Unsubscribe(roomID, connID string)
	Broadcast(roomID, event string, data any)
	BroadcastExcept(roomID, senderID, event string, data any)
}

// Relay forwards inbound game events to the right broadcast scope and
// keeps the registry's room membership consistent while doing so. It holds
// no game rules: positions, symbols and game states pass through
// unvalidated and uninterpreted.
type Relay struct {
	registry  *Registry
	transport Transport
}

// New creates a Relay over the given registry and transport.
func New(registry *Registry, transport Transport) *Relay {
	return &Relay{
		registry:  registry,
		transport: transport,
	}
}

// Registry exposes the relay's registry for the status endpoints.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Join subscribes the connection to the room's broadcast scope, records it
// in the registry, and announces the join to every member of the room,
// the joiner included. A room that does not exist yet is created
// implicitly; re-joining is not an error.
func (r *Relay) Join(roomID, connID, userID, username string) {
	r.transport.Subscribe(roomID, connID)
	count := r.registry.Join(roomID, connID, userID)
	log.Printf("[Relay] %s (%s) joined game %s (%d players)\n", username, userID, roomID, count)

	r.transport.Broadcast(roomID, events.PlayerJoined, events.PlayerJoinedPayload{
		UserID:       userID,
		Username:     username,
		PlayersCount: count,
	})
	r.observe(events.PlayerJoined)
}

// PlayMove relays a move to every member of the room except the sender,
// stamping it with the server time.
func (r *Relay) PlayMove(roomID, connID string, position int, symbol, userID string) {
	log.Printf("[Relay] move in game %s: position %d by user %s (%s)\n", roomID, position, userID, symbol)

	r.transport.BroadcastExcept(roomID, connID, events.MovePlayed, events.MovePlayedPayload{
		Position:  position,
		Symbol:    symbol,
		UserID:    userID,
		Timestamp: time.Now().UnixMilli(),
	})
	r.observe(events.MovePlayed)
}

// UpdateGameState relays an opaque game state to every member of the room,
// the sender included.
func (r *Relay) UpdateGameState(roomID string, gameState json.RawMessage) {
	log.Printf("[Relay] game %s state updated\n", roomID)

	r.transport.Broadcast(roomID, events.GameUpdated, gameState)
	r.observe(events.GameUpdated)
}

// EndGame announces the end of a game to every member of the room.
func (r *Relay) EndGame(roomID string, winner json.RawMessage, isDraw bool) {
	log.Printf("[Relay] game %s finished\n", roomID)

	r.transport.Broadcast(roomID, events.GameFinished, events.GameFinishedPayload{
		Winner:    winner,
		IsDraw:    isDraw,
		Timestamp: time.Now().UnixMilli(),
	})
	r.observe(events.GameFinished)
}

// RequestGameState asks the other members of the room to share their local
// state. Best-effort: the relay does not wait for or aggregate responses.
func (r *Relay) RequestGameState(roomID, connID string) {
	log.Printf("[Relay] game %s state requested\n", roomID)

	r.transport.BroadcastExcept(roomID, connID, events.ShareGameState, nil)
	r.observe(events.ShareGameState)
}

// Leave unsubscribes the connection from the room, removes it from the
// registry, and announces the departure to whatever membership remains.
// The broadcast fires even when the leaver was the last member; the
// transport delivers to an empty scope as a no-op.
func (r *Relay) Leave(roomID, userID, connID string) {
	log.Printf("[Relay] %s left game %s\n", userID, roomID)

	r.transport.Unsubscribe(roomID, connID)
	remaining := r.registry.Leave(roomID, connID)
	if remaining == 0 {
		log.Printf("[Relay] game %s removed (no players)\n", roomID)
	}

	r.transport.Broadcast(roomID, events.PlayerLeft, events.PlayerLeftPayload{UserID: userID})
	r.observe(events.PlayerLeft)
}

// Disconnect cleans up after a dropped connection. If the connection was
// still in a room, it is removed and the remaining members are told the
// user left; disconnecting the last member deletes the room silently. The
// transport drops its own subscriptions when the connection closes, so
// only the registry needs cleanup here. A connection that never joined a
// room is a silent no-op.
func (r *Relay) Disconnect(connID string) {
	userID, roomID, remaining, inRoom := r.registry.Disconnect(connID)
	if !inRoom {
		r.updateGauges()
		return
	}
	log.Printf("[Relay] %s disconnected from game %s\n", userID, roomID)

	if remaining > 0 {
		r.transport.Broadcast(roomID, events.PlayerLeft, events.PlayerLeftPayload{UserID: userID})
		metrics.EventsRelayed.WithLabelValues(events.PlayerLeft).Inc()
	} else {
		log.Printf("[Relay] game %s removed (no players)\n", roomID)
	}
	r.updateGauges()
}

func (r *Relay) observe(event string) {
	metrics.EventsRelayed.WithLabelValues(event).Inc()
	r.updateGauges()
}

func (r *Relay) updateGauges() {
	metrics.ActiveRooms.Set(float64(r.registry.ActiveGames()))
	metrics.ConnectedUsers.Set(float64(r.registry.ConnectedUsers()))
}
