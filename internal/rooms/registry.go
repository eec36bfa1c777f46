package rooms

import (
	"errors"
	"sync"
)

// Registry errors returned by Join.
var (
	// ErrUnknownRoom means the room name is not on the allow-list.
	ErrUnknownRoom = errors.New("rooms: unknown room")

	// ErrUnauthorized means the room requires a privileged client.
	ErrUnauthorized = errors.New("rooms: room requires privileged access")
)

// Registry maps room names to the set of member client ids. It is an explicit
// object constructed once per server process (or once per test) and passed by
// handle into the gateway — there is no package-level instance.
//
// All state is in-memory and intentionally non-persistent: if the server
// restarts, clients reconnect and rejoin automatically via their
// reconnection loop.
type Registry struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // room name → client id set
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]map[string]struct{}),
	}
}

// Join adds clientID to room. It is idempotent: re-joining an already-joined
// room leaves membership unchanged. Privileged rooms reject non-privileged
// clients with ErrUnauthorized; names outside the allow-list fail with
// ErrUnknownRoom. On success it returns the room population after the join.
func (r *Registry) Join(clientID, room string, privileged bool) (int, error) {
	def, ok := Lookup(room)
	if !ok {
		return 0, ErrUnknownRoom
	}
	if def.Privileged && !privileged {
		return 0, ErrUnauthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.members[room]
	if set == nil {
		set = make(map[string]struct{})
		r.members[room] = set
	}
	set[clientID] = struct{}{}
	return len(set), nil
}

// Leave removes clientID from room. It is idempotent: leaving a room the
// client is not in is a no-op. The room entry is deleted once its membership
// reaches zero. Returns the room population after the leave.
func (r *Registry) Leave(clientID, room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[room]
	if !ok {
		return 0
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(r.members, room)
		return 0
	}
	return len(set)
}

// LeaveAll removes clientID from every room it is a member of and returns the
// names of the rooms it left. Called on disconnect and eviction.
func (r *Registry) LeaveAll(clientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for room, set := range r.members {
		if _, ok := set[clientID]; !ok {
			continue
		}
		delete(set, clientID)
		left = append(left, room)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	return left
}

// Members returns a point-in-time copy of the member ids of room. Broadcasts
// deliver to exactly this snapshot: a client joining concurrently gets either
// this broadcast or the next one, never a duplicate.
func (r *Registry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[room]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Population returns the current membership count of room.
func (r *Registry) Population(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[room])
}

// ActiveRooms returns the number of rooms with at least one member.
func (r *Registry) ActiveRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// RoomsOf returns the rooms clientID is currently a member of.
func (r *Registry) RoomsOf(clientID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for room, set := range r.members {
		if _, ok := set[clientID]; ok {
			out = append(out, room)
		}
	}
	return out
}
