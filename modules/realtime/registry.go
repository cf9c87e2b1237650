package realtime

import (
	"slices"
	"sync"
)

// Registry maps rooms to the live connections that joined them.
// All state is guarded by one RWMutex; callers only see copies.
type Registry struct {
	mu          sync.RWMutex
	conns       map[string]*Conn
	rooms       map[uint]map[string]*Conn
	memberships map[string]map[uint]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:       make(map[string]*Conn),
		rooms:       make(map[uint]map[string]*Conn),
		memberships: make(map[string]map[uint]struct{}),
	}
}

// Register tracks an authenticated connection that has not joined rooms yet.
// Closed connections are ignored.
func (r *Registry) Register(conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn.Closed() {
		return false
	}
	r.conns[conn.ID] = conn
	return true
}

// Join adds conn to the room. It returns true only on the first join.
func (r *Registry) Join(conn *Conn, roomID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn.Closed() {
		return false
	}
	r.conns[conn.ID] = conn

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]*Conn)
		r.rooms[roomID] = members
	}
	if _, already := members[conn.ID]; already {
		return false
	}
	members[conn.ID] = conn

	joined, ok := r.memberships[conn.ID]
	if !ok {
		joined = make(map[uint]struct{})
		r.memberships[conn.ID] = joined
	}
	joined[roomID] = struct{}{}
	return true
}

// Leave removes conn from the room. It returns false if conn was not a member.
func (r *Registry) Leave(conn *Conn, roomID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.leaveLocked(conn.ID, roomID)
}

// RemoveConnection drops conn from every room and forgets it. It returns the
// rooms conn was removed from; repeated calls return nil.
func (r *Registry) RemoveConnection(conn *Conn) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, conn.ID)

	joined := r.memberships[conn.ID]
	if len(joined) == 0 {
		delete(r.memberships, conn.ID)
		return nil
	}

	removed := make([]uint, 0, len(joined))
	for roomID := range joined {
		removed = append(removed, roomID)
	}
	for _, roomID := range removed {
		r.leaveLocked(conn.ID, roomID)
	}
	slices.Sort(removed)
	return removed
}

func (r *Registry) leaveLocked(connID string, roomID uint) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, member := members[connID]; !member {
		return false
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}

	if joined, ok := r.memberships[connID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.memberships, connID)
		}
	}
	return true
}

// MembersOf returns a snapshot of the room's members.
func (r *Registry) MembersOf(roomID uint) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	if len(members) == 0 {
		return nil
	}
	snapshot := make([]*Conn, 0, len(members))
	for _, conn := range members {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// RoomsOf returns the rooms conn has joined, in ascending order.
func (r *Registry) RoomsOf(conn *Conn) []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.memberships[conn.ID]
	rooms := make([]uint, 0, len(joined))
	for roomID := range joined {
		rooms = append(rooms, roomID)
	}
	slices.Sort(rooms)
	return rooms
}

// IsMember reports whether conn has joined the room.
func (r *Registry) IsMember(conn *Conn, roomID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID][conn.ID]
	return ok
}

// ConnectionCount returns the number of tracked connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// RoomMemberCount returns the number of members in a room.
func (r *Registry) RoomMemberCount(roomID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// CloseAll closes every tracked connection. Their sessions then remove
// themselves through RemoveConnection.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
	return len(conns)
}
