package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	conn := NewConn(1, "alice", 4)

	assert.True(t, r.Join(conn, 1))
	assert.False(t, r.Join(conn, 1), "second join has no additional effect")
	assert.Len(t, r.MembersOf(1), 1)
	assert.Equal(t, []uint{1}, r.RoomsOf(conn))
}

func TestRegistry_Leave(t *testing.T) {
	r := NewRegistry()
	conn := NewConn(1, "alice", 4)

	assert.False(t, r.Leave(conn, 1), "leave without join is a no-op")

	r.Join(conn, 1)
	r.Join(conn, 2)
	assert.True(t, r.Leave(conn, 1))
	assert.False(t, r.IsMember(conn, 1))
	assert.True(t, r.IsMember(conn, 2))
	assert.Empty(t, r.MembersOf(1))
	assert.Equal(t, 1, r.RoomCount())
}

func TestRegistry_RemoveConnection(t *testing.T) {
	r := NewRegistry()
	alice := NewConn(1, "alice", 4)
	bob := NewConn(2, "bob", 4)

	r.Join(alice, 1)
	r.Join(alice, 3)
	r.Join(bob, 1)

	assert.Equal(t, []uint{1, 3}, r.RemoveConnection(alice))
	assert.Nil(t, r.RemoveConnection(alice), "second removal is a harmless no-op")

	members := r.MembersOf(1)
	require.Len(t, members, 1)
	assert.Equal(t, bob.ID, members[0].ID)
	assert.Empty(t, r.MembersOf(3))
	assert.Equal(t, 1, r.ConnectionCount())
	assert.Empty(t, r.RoomsOf(alice))
}

func TestRegistry_ClosedConnectionCannotJoin(t *testing.T) {
	r := NewRegistry()
	conn := NewConn(1, "alice", 4)
	conn.Close()

	assert.False(t, r.Register(conn))
	assert.False(t, r.Join(conn, 1))
	assert.Zero(t, r.ConnectionCount())
}

func TestRegistry_SnapshotIsDetached(t *testing.T) {
	r := NewRegistry()
	alice := NewConn(1, "alice", 4)
	bob := NewConn(2, "bob", 4)
	r.Join(alice, 1)

	snapshot := r.MembersOf(1)
	r.Join(bob, 1)
	r.Leave(alice, 1)

	require.Len(t, snapshot, 1)
	assert.Equal(t, alice.ID, snapshot[0].ID)
	assert.Equal(t, 1, r.RoomMemberCount(1))
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	idle := NewConn(1, "idle", 4)
	joined := NewConn(2, "joined", 4)
	r.Register(idle)
	r.Join(joined, 1)

	assert.Equal(t, 2, r.CloseAll())
	assert.True(t, idle.Closed())
	assert.True(t, joined.Closed())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	const workers = 32

	conns := make([]*Conn, workers)
	for i := range conns {
		conns[i] = NewConn(uint(i+1), "user", 4)
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			for room := uint(1); room <= 5; room++ {
				r.Join(c, room)
				_ = r.MembersOf(room)
				if room%2 == 0 {
					r.Leave(c, room)
				}
			}
		}(conn)
	}
	wg.Wait()

	assert.Len(t, r.MembersOf(1), workers)
	assert.Empty(t, r.MembersOf(2))
	assert.Empty(t, r.MembersOf(4))

	for _, conn := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			r.RemoveConnection(c)
		}(conn)
	}
	wg.Wait()

	assert.Zero(t, r.RoomCount())
	assert.Zero(t, r.ConnectionCount())
}
