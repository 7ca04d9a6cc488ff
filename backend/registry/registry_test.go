package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	req := require.New(t)
	reg := New()

	req.NoError(reg.Register("c1", "alice"))

	conn, ok := reg.Get("c1")
	req.True(ok)
	req.Equal("alice", conn.DisplayName)
	req.Empty(conn.RoomID)

	// transport guarantees unique ids, so this is a breach
	req.ErrorIs(reg.Register("c1", "bob"), ErrAlreadyRegistered)
}

func TestRegistry_SetRoom_LinksBothDirections(t *testing.T) {
	req := require.New(t)
	reg := New()
	req.NoError(reg.Register("c1", "alice"))
	req.NoError(reg.Register("c2", "bob"))

	req.NoError(reg.SetRoom("c1", "r1"))
	req.NoError(reg.SetRoom("c2", "r1"))

	conn, ok := reg.Get("c1")
	req.True(ok)
	req.Equal("r1", conn.RoomID)
	req.Equal(2, reg.ParticipantCount("r1"))
	req.Equal(1, reg.RoomCount())

	other, ok := reg.OtherParticipant("r1", "c1")
	req.True(ok)
	req.Equal("c2", other.ID)
	other, ok = reg.OtherParticipant("r1", "c2")
	req.True(ok)
	req.Equal("c1", other.ID)
}

func TestRegistry_SetRoom_ClearRemovesEmptyRoom(t *testing.T) {
	req := require.New(t)
	reg := New()
	req.NoError(reg.Register("c1", "alice"))
	req.NoError(reg.Register("c2", "bob"))
	req.NoError(reg.SetRoom("c1", "r1"))
	req.NoError(reg.SetRoom("c2", "r1"))

	req.NoError(reg.SetRoom("c1", ""))
	req.Equal(1, reg.ParticipantCount("r1"))
	_, ok := reg.OtherParticipant("r1", "c2")
	req.False(ok)

	req.NoError(reg.SetRoom("c2", ""))
	req.Zero(reg.ParticipantCount("r1"))
	req.Zero(reg.RoomCount())
}

func TestRegistry_SetRoom_ReassignDetachesOldRoom(t *testing.T) {
	req := require.New(t)
	reg := New()
	req.NoError(reg.Register("c1", "alice"))
	req.NoError(reg.SetRoom("c1", "r1"))

	req.NoError(reg.SetRoom("c1", "r2"))

	req.Zero(reg.ParticipantCount("r1"))
	req.Equal(1, reg.ParticipantCount("r2"))
	conn, _ := reg.Get("c1")
	req.Equal("r2", conn.RoomID)
}

func TestRegistry_SetRoom_Unknown(t *testing.T) {
	req := require.New(t)
	reg := New()
	req.ErrorIs(reg.SetRoom("ghost", "r1"), ErrNotRegistered)
}

func TestRegistry_Unregister(t *testing.T) {
	req := require.New(t)
	reg := New()
	req.NoError(reg.Register("c1", "alice"))
	req.NoError(reg.SetRoom("c1", "r1"))

	reg.Unregister("c1")

	_, ok := reg.Get("c1")
	req.False(ok)
	// defensive index cleanup even when the engine skipped room teardown
	req.Zero(reg.ParticipantCount("r1"))

	reg.Unregister("c1") // no-op
}

func TestRegistry_Members(t *testing.T) {
	req := require.New(t)
	reg := New()
	req.NoError(reg.Register("c1", "alice"))
	req.NoError(reg.Register("c2", "bob"))
	req.NoError(reg.SetRoom("c1", "r1"))
	req.NoError(reg.SetRoom("c2", "r1"))

	members := reg.Members("r1")
	req.Len(members, 2)
	ids := []string{members[0].ID, members[1].ID}
	req.ElementsMatch([]string{"c1", "c2"}, ids)

	req.Empty(reg.Members("nope"))
}
