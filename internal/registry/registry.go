// Package registry tracks which participants are currently in which room.
//
// It is pure bookkeeping: rooms exist from the moment their first
// participant joins and are deleted the instant their last participant
// leaves. The registry carries no locking on purpose; the signaling hub
// mutates it from a single dispatcher goroutine only.
package registry

// Registry maps room ids to their members in join order.
type Registry struct {
	rooms map[string][]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{rooms: make(map[string][]string)}
}

// Join appends participant to room, creating the room on first join, and
// returns the member list as it was before the join. Join order is
// significant: the first prior member is the one a new joiner negotiates
// with. Calling Join twice for the same participant duplicates it; the hub
// guarantees at most one join per connection lifetime.
func (r *Registry) Join(room, participant string) []string {
	prior := append([]string(nil), r.rooms[room]...)
	r.rooms[room] = append(r.rooms[room], participant)
	return prior
}

// Leave removes participant from the room that holds it and returns the
// room id plus the remaining members. The room is deleted once empty.
// An unknown participant is a no-op (ok=false): disconnects race with
// explicit leaves and both paths call Leave.
func (r *Registry) Leave(participant string) (room string, remaining []string, ok bool) {
	for id, members := range r.rooms {
		for i, m := range members {
			if m != participant {
				continue
			}
			members = append(members[:i], members[i+1:]...)
			if len(members) == 0 {
				delete(r.rooms, id)
				return id, nil, true
			}
			r.rooms[id] = members
			return id, append([]string(nil), members...), true
		}
	}
	return "", nil, false
}

// Members returns the current member list of room in join order.
func (r *Registry) Members(room string) []string {
	return append([]string(nil), r.rooms[room]...)
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}
