package events

import "encoding/json"

// Inbound event names, sent by clients.
const (
	JoinGame         = "join-game"
	PlayMove         = "play-move"
	GameUpdate       = "game-update"
	GameEnded        = "game-ended"
	RequestGameState = "request-game-state"
	LeaveGame        = "leave-game"
)

// Outbound event names, sent by the server.
const (
	PlayerJoined   = "player-joined"
	MovePlayed     = "move-played"
	GameUpdated    = "game-updated"
	GameFinished   = "game-finished"
	ShareGameState = "share-game-state"
	PlayerLeft     = "player-left"
)

// Envelope is the JSON frame exchanged over the websocket. Data stays raw
// so payloads pass through uninterpreted until decoded by a handler.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads. Fields are not validated; missing fields decode to
// zero values and propagate as-is.

type JoinGamePayload struct {
	GameUUID string `json:"gameUuid"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type PlayMovePayload struct {
	GameUUID string `json:"gameUuid"`
	Position int    `json:"position"`
	Symbol   string `json:"symbol"`
	UserID   string `json:"userId"`
}

type GameUpdatePayload struct {
	GameUUID  string          `json:"gameUuid"`
	GameState json.RawMessage `json:"gameState"`
}

type GameEndedPayload struct {
	GameUUID string          `json:"gameUuid"`
	Winner   json.RawMessage `json:"winner"`
	IsDraw   bool            `json:"isDraw"`
}

type RequestGameStatePayload struct {
	GameUUID string `json:"gameUuid"`
}

type LeaveGamePayload struct {
	GameUUID string `json:"gameUuid"`
	UserID   string `json:"userId"`
}

// Outbound payloads. Timestamps are millisecond epoch, matching what
// browser clients get from Date.now().

type PlayerJoinedPayload struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	PlayersCount int    `json:"playersCount"`
}

type MovePlayedPayload struct {
	Position  int    `json:"position"`
	Symbol    string `json:"symbol"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

type GameFinishedPayload struct {
	Winner    json.RawMessage `json:"winner"`
	IsDraw    bool            `json:"isDraw"`
	Timestamp int64           `json:"timestamp"`
}

type PlayerLeftPayload struct {
	UserID string `json:"userId"`
}

// Marshal builds the wire form of an outbound event. A nil data value
// produces an envelope with no data field (share-game-state).
func Marshal(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Unmarshal decodes a wire frame into an envelope.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
