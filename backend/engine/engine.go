package engine

import (
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/khucmai/thebluecafe/backend/model"
	"github.com/khucmai/thebluecafe/backend/registry"
)

// Broadcaster is the transport capability the engine emits through. The
// engine calls it only after releasing its own lock, so implementations may
// block briefly but must bound their delivery time.
type Broadcaster interface {
	JoinRoom(roomID, connID string)
	LeaveRoom(roomID, connID string)
	ToConn(connID string, ev model.Event)
	ToRoom(roomID string, ev model.Event)
}

// Engine pairs connections into two-party rooms and drives room lifecycle.
// It owns the single waiting slot; the registry owns the connection and
// membership tables. Every public operation is linearized by one mutex held
// for the whole operation, and emit instructions collected under the lock
// are delivered only after it is released.
type Engine struct {
	mx      *sync.Mutex
	reg     *registry.Registry
	bc      Broadcaster
	logger  zerolog.Logger
	waiting string
}

type Config struct {
	Registry    *registry.Registry
	Broadcaster Broadcaster
	Logger      *zerolog.Logger
}

func New(cfg Config) *Engine {
	return &Engine{
		mx:     &sync.Mutex{},
		reg:    cfg.Registry,
		bc:     cfg.Broadcaster,
		logger: cfg.Logger.With().Str("component", "engine").Logger(),
	}
}

// Stats is a point-in-time snapshot for the API server.
type Stats struct {
	Waiting int `json:"waiting"`
	Rooms   int `json:"rooms"`
}

func (e *Engine) Stats() Stats {
	e.mx.Lock()
	defer e.mx.Unlock()

	s := Stats{Rooms: e.reg.RoomCount()}
	if e.waiting != "" {
		s.Waiting = 1
	}
	return s
}

// Connect registers a freshly authenticated connection. A duplicate id means
// the transport broke its uniqueness guarantee.
func (e *Engine) Connect(connID, displayName string) error {
	e.mx.Lock()
	defer e.mx.Unlock()

	if err := e.reg.Register(connID, displayName); err != nil {
		e.logger.Error().Err(err).Str("connID", connID).Msg("register failed")
		return err
	}
	e.logger.Debug().
		Str("connID", connID).
		Str("displayName", displayName).
		Msg("connection registered")
	return nil
}

// RequestJoin places the connection into matchmaking. If a different
// connection is waiting, the two are paired into a new room; otherwise the
// requester takes the waiting slot. A connection that is already paired is
// detached from its room first, and a waiting connection re-joining is a
// no-op apart from the repeated self notice.
func (e *Engine) RequestJoin(connID string) {
	e.mx.Lock()

	conn, ok := e.reg.Get(connID)
	if !ok {
		e.mx.Unlock()
		e.logger.Error().Str("connID", connID).Msg("join request from unknown connection")
		return
	}

	var emits []func()
	if conn.RoomID != "" {
		emits = e.teardownLocked(conn)
	}

	if e.waiting != "" && e.waiting != connID {
		if partner, ok := e.reg.Get(e.waiting); ok {
			emits = append(emits, e.pairLocked(conn, partner)...)
			e.waiting = ""
			e.mx.Unlock()
			deliver(emits)
			return
		}
		e.logger.Error().
			Str("connID", e.waiting).
			Msg("waiting slot held an unknown connection, clearing")
		e.waiting = ""
	}

	e.waiting = connID
	notice := systemEvent(joinedNotice(conn.DisplayName))
	emits = append(emits, func() { e.bc.ToConn(connID, notice) })
	e.mx.Unlock()
	deliver(emits)
}

// SendMessage relays a chat message to the sender's room, or echoes it back
// to the sender when there is no room yet so sends never vanish silently.
func (e *Engine) SendMessage(connID, text string) {
	e.mx.Lock()
	conn, ok := e.reg.Get(connID)
	if !ok {
		e.mx.Unlock()
		e.logger.Error().Str("connID", connID).Msg("message from unknown connection")
		return
	}
	roomID := conn.RoomID
	e.mx.Unlock()

	ev := model.Event{
		Type: model.EventChatMessage,
		Payload: model.ChatMessage{
			Sender:   conn.DisplayName,
			Text:     text,
			SenderID: conn.ID,
		},
	}
	if roomID != "" {
		e.bc.ToRoom(roomID, ev)
		return
	}
	e.bc.ToConn(conn.ID, ev)
}

// Leave detaches the connection from its room, destroying the room, or
// clears the waiting slot if the connection was waiting. The orphaned
// partner is not re-queued; it must request joining again.
func (e *Engine) Leave(connID string) {
	e.mx.Lock()

	conn, ok := e.reg.Get(connID)
	if !ok {
		e.mx.Unlock()
		e.logger.Error().Str("connID", connID).Msg("leave from unknown connection")
		return
	}

	var emits []func()
	if conn.RoomID != "" {
		emits = e.teardownLocked(conn)
	}
	if e.waiting == connID {
		e.waiting = ""
	}
	e.mx.Unlock()
	deliver(emits)
}

// Disconnect is Leave plus unregistration. The transport has already dropped
// the connection's wire, so room events naturally exclude it.
func (e *Engine) Disconnect(connID string) {
	e.mx.Lock()

	conn, ok := e.reg.Get(connID)
	if !ok {
		e.mx.Unlock()
		return
	}

	var emits []func()
	if conn.RoomID != "" {
		emits = e.teardownLocked(conn)
	}
	if e.waiting == connID {
		e.waiting = ""
	}
	e.reg.Unregister(connID)
	e.mx.Unlock()

	e.logger.Debug().Str("connID", connID).Msg("connection unregistered")
	deliver(emits)
}

// pairLocked creates a room for the waiter and the joiner and returns the
// emit instructions announcing it. Caller holds the engine lock.
func (e *Engine) pairLocked(joiner, waiter registry.Connection) []func() {
	roomID := uuid.NewString()
	_ = e.reg.SetRoom(waiter.ID, roomID)
	_ = e.reg.SetRoom(joiner.ID, roomID)

	e.logger.Debug().
		Str("roomID", roomID).
		Str("waiterID", waiter.ID).
		Str("joinerID", joiner.ID).
		Msg("room created")

	notice := systemEvent(joinedNotice(joiner.DisplayName))
	presence := presenceEvent(2)
	return []func(){
		func() { e.bc.JoinRoom(roomID, waiter.ID) },
		func() { e.bc.JoinRoom(roomID, joiner.ID) },
		func() { e.bc.ToRoom(roomID, notice) },
		func() { e.bc.ToRoom(roomID, presence) },
	}
}

// teardownLocked removes conn from its room and destroys the room. The room
// never survives with one member. Remaining members (exactly one unless an
// invariant was breached) are detached after the departure events so they
// still receive them. Caller holds the engine lock.
func (e *Engine) teardownLocked(conn registry.Connection) []func() {
	roomID := conn.RoomID
	members := e.reg.Members(roomID)
	if len(members) > 2 {
		e.logger.Error().
			Str("roomID", roomID).
			Str("state", spew.Sdump(members)).
			Msg("room has more than two participants, forcing teardown")
	}

	emits := []func(){func() { e.bc.LeaveRoom(roomID, conn.ID) }}
	_ = e.reg.SetRoom(conn.ID, "")

	reduced := presenceEvent(e.reg.ParticipantCount(roomID))
	notice := systemEvent(leftNotice(conn.DisplayName))
	emits = append(emits,
		func() { e.bc.ToRoom(roomID, reduced) },
		func() { e.bc.ToRoom(roomID, notice) },
	)

	var orphaned []string
	for {
		partner, ok := e.reg.OtherParticipant(roomID, conn.ID)
		if !ok {
			break
		}
		_ = e.reg.SetRoom(partner.ID, "")
		orphaned = append(orphaned, partner.ID)
	}

	empty := presenceEvent(0)
	emits = append(emits, func() { e.bc.ToRoom(roomID, empty) })
	for _, id := range orphaned {
		id := id
		emits = append(emits, func() { e.bc.LeaveRoom(roomID, id) })
	}

	e.logger.Debug().Str("roomID", roomID).Msg("room destroyed")
	return emits
}

func deliver(emits []func()) {
	for _, emit := range emits {
		emit()
	}
}

func systemEvent(text string) model.Event {
	return model.Event{
		Type:    model.EventSystemMessage,
		Payload: text,
	}
}

func presenceEvent(count int) model.Event {
	return model.Event{
		Type:    model.EventRoomPresence,
		Payload: model.RoomPresence{ParticipantCount: count},
	}
}

func joinedNotice(displayName string) string {
	return displayName + " เข้าร่วมแชทแล้ว"
}

func leftNotice(displayName string) string {
	return displayName + " ออกจากห้องแล้ว"
}
