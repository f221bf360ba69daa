package relay

import "sort"

// RoomID identifies a live room.
type RoomID string

// room is a named member set. It is only touched under the registry lock.
type room struct {
	id      RoomID
	name    string
	members map[ConnectionID]struct{}
}

func newRoom(id RoomID, name string) *room {
	return &room{
		id:      id,
		name:    name,
		members: make(map[ConnectionID]struct{}),
	}
}

func (r *room) add(id ConnectionID) {
	r.members[id] = struct{}{}
}

func (r *room) remove(id ConnectionID) {
	delete(r.members, id)
}

func (r *room) has(id ConnectionID) bool {
	_, ok := r.members[id]
	return ok
}

func (r *room) empty() bool {
	return len(r.members) == 0
}

// memberIDs returns the members in ascending order.
func (r *room) memberIDs() []ConnectionID {
	ids := make([]ConnectionID, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *room) info() RoomInfo {
	return RoomInfo{ID: r.id, Name: r.name, Clients: r.memberIDs()}
}

// RoomInfo is a point-in-time snapshot of a room. Its JSON form is the
// per-room entry of a list_rooms reply.
type RoomInfo struct {
	Clients []ConnectionID `json:"clients"`
	Name    string         `json:"name"`
	ID      RoomID         `json:"id"`
}
