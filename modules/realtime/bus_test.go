package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sungchulkim/sung-kim-capstone-server/events"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func drain(t *testing.T, conn *Conn) []frame {
	t.Helper()
	var frames []frame
	for {
		select {
		case raw := <-conn.Mailbox():
			var f frame
			require.NoError(t, json.Unmarshal(raw, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestBus_PublishReachesOnlyRoomMembers(t *testing.T) {
	registry := NewRegistry()
	bus := NewBus(registry, &mockLogger{})

	inRoom := NewConn(1, "alice", 8)
	otherRoom := NewConn(2, "bob", 8)
	neverJoined := NewConn(3, "carol", 8)
	registry.Join(inRoom, 1)
	registry.Join(otherRoom, 2)
	registry.Register(neverJoined)

	n := bus.Publish(events.MessageDeleted{MessageID: 10, Room: 1})
	assert.Equal(t, 1, n)

	got := drain(t, inRoom)
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeMessageDeleted, got[0].Type)
	assert.JSONEq(t, `{"messageId":10,"roomId":1}`, string(got[0].Payload))

	assert.Empty(t, drain(t, otherRoom))
	assert.Empty(t, drain(t, neverJoined))
}

func TestBus_NoDeliveryAfterLeave(t *testing.T) {
	registry := NewRegistry()
	bus := NewBus(registry, &mockLogger{})
	conn := NewConn(1, "alice", 8)

	registry.Join(conn, 1)
	bus.Publish(events.MessageDeleted{MessageID: 1, Room: 1})
	registry.Leave(conn, 1)
	bus.Publish(events.MessageDeleted{MessageID: 2, Room: 1})

	got := drain(t, conn)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"messageId":1,"roomId":1}`, string(got[0].Payload))
}

func TestBus_SlowMemberDoesNotAffectOthers(t *testing.T) {
	registry := NewRegistry()
	bus := NewBus(registry, &mockLogger{})

	slow := NewConn(1, "slow", 1)
	fast := NewConn(2, "fast", 16)
	registry.Join(slow, 1)
	registry.Join(fast, 1)

	for i := 1; i <= 5; i++ {
		bus.Publish(events.MessageDeleted{MessageID: uint(i), Room: 1})
	}

	assert.Len(t, drain(t, fast), 5)
	assert.Len(t, drain(t, slow), 1)
	assert.EqualValues(t, 4, slow.Dropped())

	stats := bus.Stats()
	assert.EqualValues(t, 5, stats.Published)
	assert.EqualValues(t, 6, stats.Delivered)
	assert.EqualValues(t, 4, stats.Dropped)
}

func TestBus_ClosedMemberIsSkipped(t *testing.T) {
	registry := NewRegistry()
	bus := NewBus(registry, &mockLogger{})

	closed := NewConn(1, "gone", 4)
	open := NewConn(2, "here", 4)
	registry.Join(closed, 1)
	registry.Join(open, 1)
	closed.Close()

	assert.Equal(t, 1, bus.Publish(events.MessageDeleted{MessageID: 1, Room: 1}))
	assert.Len(t, drain(t, open), 1)
}

func TestBus_PerRoomFIFO(t *testing.T) {
	registry := NewRegistry()
	bus := NewBus(registry, &mockLogger{})

	const publishers = 8
	const perPublisher = 50

	a := NewConn(1, "a", publishers*perPublisher)
	b := NewConn(2, "b", publishers*perPublisher)
	registry.Join(a, 1)
	registry.Join(b, 1)

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				bus.Publish(events.MessageDeleted{MessageID: uint(p*perPublisher + i + 1), Room: 1})
			}
		}(p)
	}
	wg.Wait()

	ids := func(frames []frame) []uint {
		out := make([]uint, 0, len(frames))
		for _, f := range frames {
			var ev events.MessageDeleted
			require.NoError(t, json.Unmarshal(f.Payload, &ev))
			out = append(out, ev.MessageID)
		}
		return out
	}

	gotA := ids(drain(t, a))
	gotB := ids(drain(t, b))
	require.Len(t, gotA, publishers*perPublisher)
	assert.Equal(t, gotA, gotB, "every member observes the same publish order")

	// each publisher's own events stay in order
	last := make(map[uint]uint)
	for _, id := range gotA {
		p := (id - 1) / perPublisher
		assert.Greater(t, id, last[p])
		last[p] = id
	}
}
