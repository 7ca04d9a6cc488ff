package registry

import (
	"errors"
	"sync"
)

var (
	ErrAlreadyRegistered = errors.New("connection id is already registered")
	ErrNotRegistered     = errors.New("connection is not registered")
)

// Connection is a live, authenticated websocket session as the matchmaker
// sees it. RoomID is empty while the connection has no partner.
type Connection struct {
	ID          string
	DisplayName string
	RoomID      string
}

// Registry tracks live connections and their room assignments. It keeps a
// room membership index alongside the connection table so partner lookup is
// a map access instead of a scan over all connections.
//
// Registry is pure bookkeeping: it never emits events and never decides
// room lifecycle. The engine is the sole caller of its mutators.
type Registry struct {
	mx    *sync.Mutex
	conns map[string]*Connection
	rooms map[string]map[string]*Connection
}

func New() *Registry {
	return &Registry{
		mx:    &sync.Mutex{},
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]*Connection),
	}
}

// Register adds a connection with no room assignment. The transport layer
// assigns unique ids, so a duplicate is an invariant breach, not a user
// error.
func (r *Registry) Register(id, displayName string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.conns[id]; ok {
		return ErrAlreadyRegistered
	}
	r.conns[id] = &Connection{
		ID:          id,
		DisplayName: displayName,
	}
	return nil
}

// Unregister removes the connection. Room cleanup is the engine's job and
// must happen first; the index removal here is defensive.
func (r *Registry) Unregister(id string) {
	r.mx.Lock()
	defer r.mx.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return
	}
	if conn.RoomID != "" {
		r.detachLocked(conn)
	}
	delete(r.conns, id)
}

// SetRoom updates the connection's room assignment and the room membership
// index. An empty roomID clears the assignment; a room whose last member is
// cleared disappears from the index.
func (r *Registry) SetRoom(id, roomID string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return ErrNotRegistered
	}
	if conn.RoomID != "" {
		r.detachLocked(conn)
	}
	conn.RoomID = roomID
	if roomID != "" {
		members, ok := r.rooms[roomID]
		if !ok {
			members = make(map[string]*Connection)
			r.rooms[roomID] = members
		}
		members[id] = conn
	}
	return nil
}

func (r *Registry) detachLocked(conn *Connection) {
	members, ok := r.rooms[conn.RoomID]
	if ok {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(r.rooms, conn.RoomID)
		}
	}
	conn.RoomID = ""
}

// Get returns a snapshot of the connection.
func (r *Registry) Get(id string) (Connection, bool) {
	r.mx.Lock()
	defer r.mx.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// OtherParticipant returns the member of roomID that is not excludingID, or
// false if the room has no such member.
func (r *Registry) OtherParticipant(roomID, excludingID string) (Connection, bool) {
	r.mx.Lock()
	defer r.mx.Unlock()

	for id, conn := range r.rooms[roomID] {
		if id != excludingID {
			return *conn, true
		}
	}
	return Connection{}, false
}

// Members returns snapshots of every current member of roomID.
func (r *Registry) Members(roomID string) []Connection {
	r.mx.Lock()
	defer r.mx.Unlock()

	members := r.rooms[roomID]
	out := make([]Connection, 0, len(members))
	for _, conn := range members {
		out = append(out, *conn)
	}
	return out
}

// ParticipantCount returns the current member count of roomID.
func (r *Registry) ParticipantCount(roomID string) int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.rooms[roomID])
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.rooms)
}
