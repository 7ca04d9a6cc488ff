package broadcast

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/khucmai/thebluecafe/backend/model"
)

const (
	defaultSendTimeout = time.Second
)

// Switch fans engine events out to websocket sessions. Each connection
// registers a TX wire once; room groups are a membership overlay on top of
// the wires, so a connection can receive targeted events before it ever has
// a room.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	wires  map[string]model.Wire
	rooms  map[string]map[string]struct{}
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		wires:  make(map[string]model.Wire),
		rooms:  make(map[string]map[string]struct{}),
	}
}

func (sw *Switch) Connect(connID string, wire model.Wire) {
	sw.mx.Lock()
	sw.wires[connID] = wire
	sw.mx.Unlock()
	sw.logger.Debug().Str("connID", connID).Msg("endpoint connected")
}

func (sw *Switch) Disconnect(connID string) {
	sw.mx.Lock()
	delete(sw.wires, connID)
	for roomID, members := range sw.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(sw.rooms, roomID)
		}
	}
	sw.mx.Unlock()
	sw.logger.Debug().Str("connID", connID).Msg("endpoint disconnected")
}

func (sw *Switch) JoinRoom(roomID, connID string) {
	sw.mx.Lock()
	members, ok := sw.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		sw.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	sw.mx.Unlock()
	sw.logger.Debug().
		Str("roomID", roomID).
		Str("connID", connID).
		Msg("endpoint joined room group")
}

func (sw *Switch) LeaveRoom(roomID, connID string) {
	sw.mx.Lock()
	members, ok := sw.rooms[roomID]
	if ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(sw.rooms, roomID)
		}
	}
	sw.mx.Unlock()
	sw.logger.Debug().
		Str("roomID", roomID).
		Str("connID", connID).
		Msg("endpoint left room group")
}

// ToConn delivers an event to a single connection.
func (sw *Switch) ToConn(connID string, ev model.Event) {
	sw.mx.RLock()
	wire, ok := sw.wires[connID]
	sw.mx.RUnlock()

	if !ok {
		sw.logger.Debug().
			Str("connID", connID).
			Str("type", ev.Type).
			Msg("cannot deliver, endpoint not found")
		return
	}
	sw.send(connID, ev, wire.TX)
}

// ToRoom delivers an event to every current member of the room group.
func (sw *Switch) ToRoom(roomID string, ev model.Event) {
	sw.mx.RLock()
	wires := make(map[string]model.Wire, len(sw.rooms[roomID]))
	for connID := range sw.rooms[roomID] {
		if wire, ok := sw.wires[connID]; ok {
			wires[connID] = wire
		}
	}
	sw.mx.RUnlock()

	if len(wires) == 0 {
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("type", ev.Type).
			Msg("room event did not reach anyone")
		return
	}
	for connID, wire := range wires {
		sw.send(connID, ev, wire.TX)
	}
}

func (sw *Switch) send(connID string, ev model.Event, tx chan<- model.Event) {
	tCh := time.NewTimer(defaultSendTimeout)
	select {
	case <-tCh.C:
		sw.logger.Error().
			Str("connID", connID).
			Str("type", ev.Type).
			Msg("dead endpoint")
	case tx <- ev:
		sw.logger.Debug().
			Str("connID", connID).
			Str("type", ev.Type).
			Msg("event delivered")
	}
	tCh.Stop()
}
