package relay

import "sync"

// member associates a connection with the logical user behind it. Keeping
// the pair together (rather than two index-aligned lists) means removing a
// connection always removes the matching user entry.
type member struct {
	connID string
	userID string
}

type room struct {
	members []member
}

// session is the per-connection record used for disconnect cleanup. It
// replaces attributes stashed on the transport handle: the registry owns
// it and looks it up explicitly when the connection drops.
type session struct {
	userID string
	roomID string
}

// GameStat is the per-room entry returned by the stats endpoint.
type GameStat struct {
	UUID         string `json:"uuid"`
	PlayersCount int    `json:"playersCount"`
}

// Registry tracks which connections belong to which game room, and which
// connection currently speaks for each logical user. A room exists iff it
// has at least one member; the last member out deletes it. All state is
// in-memory and lives for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*room
	users    map[string]string  // userID -> current connID, last join wins
	sessions map[string]session // connID -> session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]*room),
		users:    make(map[string]string),
		sessions: make(map[string]session),
	}
}

// Join records a connection as a member of a room, creating the room if
// needed. Joining a room the connection is already in does not add a
// duplicate. The user index entry is overwritten unconditionally, so a
// user joining again from a new connection claims the identity without
// evicting the old connection. Returns the member count after the join.
func (g *Registry) Join(roomID, connID, userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok {
		rm = &room{}
		g.rooms[roomID] = rm
	}
	present := false
	for _, m := range rm.members {
		if m.connID == connID {
			present = true
			break
		}
	}
	if !present {
		rm.members = append(rm.members, member{connID: connID, userID: userID})
	}

	g.users[userID] = connID
	g.sessions[connID] = session{userID: userID, roomID: roomID}

	return len(rm.members)
}

// Leave removes a connection from a room, deleting the room once empty.
// The connection's session drops its room association so a later
// disconnect does not repeat the cleanup. Returns the remaining member
// count; leaving a room the connection is not in returns the count
// unchanged (0 for an unknown room).
func (g *Registry) Leave(roomID, connID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sess, ok := g.sessions[connID]; ok && sess.roomID == roomID {
		sess.roomID = ""
		g.sessions[connID] = sess
	}

	return g.removeMember(roomID, connID)
}

// Disconnect drops the session for a connection. The user index entry for
// the session's user is removed regardless of room state. If the session
// still carried a room, the connection is removed from it and the room is
// deleted once empty. Returns the departing user, the room it was removed
// from, the remaining member count, and whether the connection was still
// in a room. A connection that never joined is a silent no-op.
func (g *Registry) Disconnect(connID string) (userID, roomID string, remaining int, inRoom bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sess, ok := g.sessions[connID]
	if !ok {
		return "", "", 0, false
	}
	delete(g.sessions, connID)
	delete(g.users, sess.userID)

	if sess.roomID == "" {
		return sess.userID, "", 0, false
	}
	remaining = g.removeMember(sess.roomID, connID)
	return sess.userID, sess.roomID, remaining, true
}

// removeMember removes connID from roomID and deletes the room if it ends
// up empty. Caller must hold the lock.
func (g *Registry) removeMember(roomID, connID string) int {
	rm, ok := g.rooms[roomID]
	if !ok {
		return 0
	}
	for i, m := range rm.members {
		if m.connID == connID {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			break
		}
	}
	if len(rm.members) == 0 {
		delete(g.rooms, roomID)
		return 0
	}
	return len(rm.members)
}

// ActiveGames returns the number of rooms with at least one member.
func (g *Registry) ActiveGames() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// ConnectedUsers returns the number of users with a live connection mapping.
func (g *Registry) ConnectedUsers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.users)
}

// PlayersCount returns the member count of a room, 0 if it does not exist.
func (g *Registry) PlayersCount(roomID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rm, ok := g.rooms[roomID]; ok {
		return len(rm.members)
	}
	return 0
}

// Games returns a per-room member count snapshot.
func (g *Registry) Games() []GameStat {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := make([]GameStat, 0, len(g.rooms))
	for id, rm := range g.rooms {
		stats = append(stats, GameStat{UUID: id, PlayersCount: len(rm.members)})
	}
	return stats
}
