package roomcore

import (
	"sync"
	"time"
)

// Room is the in-process record for one conference room (spec.md §3
// Room). Its router handle is owned by the Room; membership mutations
// are serialized by mu (spec.md §5: "all mutations affecting a given
// Room... are serialized by a room-scoped mutual-exclusion primitive").
type Room struct {
	ID        string
	router    RouterHandle
	createdAt time.Time

	mu      sync.Mutex
	members map[string]struct{}
	closed  bool
}

func newRoom(id string, router RouterHandle) *Room {
	return &Room{
		ID:        id,
		router:    router,
		createdAt: time.Now(),
		members:   make(map[string]struct{}),
	}
}

// Lock/Unlock expose the room-scoped mutex to the event router so a
// single critical section can span membership checks, table mutation,
// and short per-room adapter calls (spec.md §5).
func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// addMemberLocked must be called with r locked.
func (r *Room) addMemberLocked(peerID string) {
	r.members[peerID] = struct{}{}
}

// hasMemberLocked must be called with r locked.
func (r *Room) hasMemberLocked(peerID string) bool {
	_, ok := r.members[peerID]
	return ok
}

// removeMemberLocked removes peerID and reports whether the room is now
// empty. Must be called with r locked.
func (r *Room) removeMemberLocked(peerID string) bool {
	delete(r.members, peerID)
	return len(r.members) == 0
}

// membersLocked returns a snapshot of current member ids for fan-out.
// Must be called with r locked; the returned slice is a fresh copy, so
// the caller may keep using it after unlocking (snapshot-then-send is
// the pattern mandated by spec.md §5).
func (r *Room) membersLocked() []string {
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}

// Capabilities returns the router's advertised codec capabilities.
func (r *Room) Capabilities() interface{} {
	return r.router.Capabilities()
}

// RoomRegistry maps RoomId to Room (spec.md §4.2). mu is the "separate
// short-held lock" of spec.md §5: it guards only the map itself and is
// never held across a call into the media engine.
type RoomRegistry struct {
	engine Engine

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRoomRegistry builds an empty registry backed by engine.
func NewRoomRegistry(engine Engine) *RoomRegistry {
	return &RoomRegistry{engine: engine, rooms: make(map[string]*Room)}
}

// GetOrCreate returns the live Room for roomID, allocating a router via
// the adapter and installing a new Room if none exists yet (spec.md
// §4.2 get_or_create). The adapter call happens with no registry lock
// held; a double-checked insert resolves the race between concurrent
// first joins.
func (rr *RoomRegistry) GetOrCreate(roomID string) (*Room, error) {
	for {
		rr.mu.RLock()
		r, ok := rr.rooms[roomID]
		rr.mu.RUnlock()
		if ok {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if !closed {
				return r, nil
			}
			// Stale entry for a room whose last member already left;
			// help remove it and retry (spec.md §3 Room: "destroyed
			// immediately after last member leaves").
			rr.mu.Lock()
			if cur, ok := rr.rooms[roomID]; ok && cur == r {
				delete(rr.rooms, roomID)
			}
			rr.mu.Unlock()
			continue
		}

		router, err := rr.engine.CreateRouter(roomID)
		if err != nil {
			return nil, err
		}

		rr.mu.Lock()
		if cur, ok := rr.rooms[roomID]; ok {
			rr.mu.Unlock()
			router.Close()
			_ = cur
			continue
		}
		created := newRoom(roomID, router)
		rr.rooms[roomID] = created
		rr.mu.Unlock()
		return created, nil
	}
}

// Get returns the room for roomID without creating it.
func (rr *RoomRegistry) Get(roomID string) (*Room, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	r, ok := rr.rooms[roomID]
	return r, ok
}

// removeIfEmpty drops roomID from the registry and closes its router if
// the room has no members left (spec.md §4.2 remove_member). Caller must
// have already removed the departing peer from r.members under r's
// lock; this method re-checks emptiness under the registry lock plus the
// room lock to close the window between the two, and marks the room
// closed and removes it in that same critical section. The router itself
// is closed just after both locks are released, so the registry lock is
// never held across the adapter call.
func (rr *RoomRegistry) removeIfEmpty(r *Room) {
	rr.mu.Lock()
	cur, ok := rr.rooms[r.ID]
	if !ok || cur != r {
		rr.mu.Unlock()
		return
	}
	r.mu.Lock()
	empty := len(r.members) == 0
	if empty {
		r.closed = true
	}
	r.mu.Unlock()
	if empty {
		delete(rr.rooms, r.ID)
	}
	rr.mu.Unlock()

	if empty {
		r.router.Close()
	}
}
