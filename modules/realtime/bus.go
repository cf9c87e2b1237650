package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/sungchulkim/sung-kim-capstone-server/events"
)

// Bus delivers room events to every current member of the room.
// Delivery is best effort and at most once per member.
type Bus struct {
	registry *Registry
	logger   types.Logger

	roomLocks sync.Map // uint -> *sync.Mutex

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// BusStats is a point-in-time view of the bus counters.
type BusStats struct {
	Published uint64 `json:"published"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// NewBus creates a Bus that routes through the registry.
func NewBus(registry *Registry, logger types.Logger) *Bus {
	return &Bus{
		registry: registry,
		logger:   logger,
	}
}

// Publish encodes the event once and offers it to each member's mailbox.
// It never blocks on a member and never fails; it returns how many members
// accepted the frame.
//
// Publishes to the same room are serialized so every member sees them in
// call order. Different rooms proceed independently.
func (b *Bus) Publish(event events.Event) int {
	b.published.Add(1)

	frame, err := events.Encode(event)
	if err != nil {
		b.logger.Error("Failed to encode room event", "type", event.Type(), "room", event.RoomID(), "error", err)
		return 0
	}

	lock := b.roomLock(event.RoomID())
	lock.Lock()
	defer lock.Unlock()

	accepted := 0
	for _, conn := range b.registry.MembersOf(event.RoomID()) {
		if conn.Offer(frame) {
			accepted++
			continue
		}
		b.dropped.Add(1)
		if !conn.Closed() {
			b.logger.Warn("Dropped room event for slow connection",
				"type", event.Type(), "room", event.RoomID(), "conn", conn.ID, "user", conn.UserID)
		}
	}
	b.delivered.Add(uint64(accepted))
	return accepted
}

// Stats returns the bus counters.
func (b *Bus) Stats() BusStats {
	return BusStats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
	}
}

func (b *Bus) roomLock(roomID uint) *sync.Mutex {
	if lock, ok := b.roomLocks.Load(roomID); ok {
		return lock.(*sync.Mutex)
	}
	lock, _ := b.roomLocks.LoadOrStore(roomID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
