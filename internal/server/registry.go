package server

// Registry maps a user id to the set of live connections belonging to that
// user (the user's "room"). It is owned by the hub's event loop and is never
// touched from any other goroutine, so it carries no locking.
type Registry struct {
	rooms  map[string]map[*Client]struct{}
	owners map[*Client]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[*Client]struct{}),
		owners: make(map[*Client]string),
	}
}

// Join adds c to userId's room. Joining is idempotent; a connection already
// associated with a different user is moved, so a connection is a member of
// at most one room at any time.
func (r *Registry) Join(c *Client, userId string) {
	if prev, ok := r.owners[c]; ok {
		if prev == userId {
			return
		}
		r.remove(c, prev)
	}

	room, ok := r.rooms[userId]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[userId] = room
	}
	room[c] = struct{}{}
	r.owners[c] = userId
}

// Leave removes c from whichever room contains it. A no-op when the
// connection never joined.
func (r *Registry) Leave(c *Client) {
	userId, ok := r.owners[c]
	if !ok {
		return
	}
	r.remove(c, userId)
}

func (r *Registry) remove(c *Client, userId string) {
	delete(r.owners, c)
	if room, ok := r.rooms[userId]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, userId)
		}
	}
}

// Connections returns the live connections in userId's room. An unknown user
// yields an empty slice, not an error.
func (r *Registry) Connections(userId string) []*Client {
	room, ok := r.rooms[userId]
	if !ok {
		return nil
	}

	conns := make([]*Client, 0, len(room))
	for c := range room {
		conns = append(conns, c)
	}
	return conns
}

// Owner returns the user id a connection joined as, if any.
func (r *Registry) Owner(c *Client) (string, bool) {
	userId, ok := r.owners[c]
	return userId, ok
}

// NumRooms returns the number of users with at least one live connection.
func (r *Registry) NumRooms() int {
	return len(r.rooms)
}
