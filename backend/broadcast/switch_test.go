package broadcast

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/khucmai/thebluecafe/backend/model"
)

func newTestSwitch() *Switch {
	logger := zerolog.Nop()
	return NewSwitch(&logger)
}

// drain forwards everything delivered on wire to out, labeled with connID.
func drain(wire model.Wire, connID string, out chan<- string) {
	go func() {
		for ev := range wire.TX {
			out <- connID + ":" + ev.Type
		}
	}()
}

func collect(t *testing.T, out <-chan string, n int) []string {
	t.Helper()
	got := make([]string, 0, n)
	for i := 0; i < n; i++ {
		select {
		case s := <-out:
			got = append(got, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
	return got
}

func TestSwitch_ToConn(t *testing.T) {
	req := require.New(t)
	sw := newTestSwitch()

	wire := model.NewWire()
	sw.Connect("c1", wire)

	out := make(chan string, 4)
	drain(wire, "c1", out)

	sw.ToConn("c1", model.Event{Type: model.EventSystemMessage})
	req.Equal([]string{"c1:system-message"}, collect(t, out, 1))
}

func TestSwitch_ToConn_UnknownEndpoint(t *testing.T) {
	sw := newTestSwitch()
	// no wire registered, must not block or panic
	sw.ToConn("ghost", model.Event{Type: model.EventSystemMessage})
}

func TestSwitch_ToRoom_ReachesMembersOnly(t *testing.T) {
	req := require.New(t)
	sw := newTestSwitch()

	out := make(chan string, 8)
	for _, id := range []string{"c1", "c2", "c3"} {
		wire := model.NewWire()
		sw.Connect(id, wire)
		drain(wire, id, out)
	}
	sw.JoinRoom("r1", "c1")
	sw.JoinRoom("r1", "c2")

	sw.ToRoom("r1", model.Event{Type: model.EventChatMessage})

	got := collect(t, out, 2)
	req.ElementsMatch([]string{"c1:chat-message", "c2:chat-message"}, got)
	select {
	case s := <-out:
		t.Fatalf("unexpected delivery: %s", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSwitch_LeaveRoom_StopsDelivery(t *testing.T) {
	req := require.New(t)
	sw := newTestSwitch()

	out := make(chan string, 8)
	for _, id := range []string{"c1", "c2"} {
		wire := model.NewWire()
		sw.Connect(id, wire)
		drain(wire, id, out)
	}
	sw.JoinRoom("r1", "c1")
	sw.JoinRoom("r1", "c2")
	sw.LeaveRoom("r1", "c1")

	sw.ToRoom("r1", model.Event{Type: model.EventRoomPresence})
	req.Equal([]string{"c2:room-presence"}, collect(t, out, 1))
}

func TestSwitch_Disconnect_RemovesWireAndMemberships(t *testing.T) {
	sw := newTestSwitch()

	wire := model.NewWire()
	sw.Connect("c1", wire)
	sw.JoinRoom("r1", "c1")

	sw.Disconnect("c1")

	// nothing listens on the wire anymore; both must return without delivery
	sw.ToConn("c1", model.Event{Type: model.EventSystemMessage})
	sw.ToRoom("r1", model.Event{Type: model.EventSystemMessage})
}

func TestSwitch_DeadEndpointTimesOut(t *testing.T) {
	sw := newTestSwitch()

	// wire registered but never read from
	sw.Connect("c1", model.NewWire())

	done := make(chan struct{})
	go func() {
		sw.ToConn("c1", model.Event{Type: model.EventSystemMessage})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("send to dead endpoint did not time out")
	}
}
