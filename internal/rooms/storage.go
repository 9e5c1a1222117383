package rooms

import "sync"

// Registry owns every live Room. Rooms are created by the first join and
// removed when their last participant leaves.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate returns the live room for id, creating an empty one if there is
// none or the current entry has been reclaimed. created reports a new room.
func (g *Registry) GetOrCreate(id string) (room *Room, created bool) {
	g.mu.RLock()
	r := g.rooms[id]
	g.mu.RUnlock()
	if r != nil && !r.Reclaimed() {
		return r, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if r := g.rooms[id]; r != nil && !r.Reclaimed() {
		return r, false
	}
	r = newRoom(id)
	g.rooms[id] = r
	return r, true
}

// Get returns the live room for id, or nil.
func (g *Registry) Get(id string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r := g.rooms[id]
	if r == nil || r.Reclaimed() {
		return nil
	}
	return r
}

// Remove deletes the entry for id if that room has been reclaimed. It
// returns false for live rooms and unknown ids.
func (g *Registry) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.rooms[id]
	if r == nil || !r.Reclaimed() {
		return false
	}
	delete(g.rooms, id)
	return true
}

func (g *Registry) removeRoom(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[r.ID] == r {
		delete(g.rooms, r.ID)
	}
}

// Join runs fn against the live room for id, creating it first if needed.
// If the room it found is reclaimed before fn can run, a fresh room is
// created and fn runs there instead, so a joiner never lands in a room that
// is about to vanish.
func (g *Registry) Join(id string, fn func(*State)) (room *Room, created bool) {
	for {
		r, c := g.GetOrCreate(id)
		if ok, _ := r.Do(fn); ok {
			return r, c
		}
		// lost the race with the last leave; drop the stale entry and retry
		g.removeRoom(r)
	}
}

// Update runs fn against the existing live room for id. found is false if no
// such room exists. reclaimed reports that fn emptied the room, in which case
// it has already been removed from the registry.
func (g *Registry) Update(id string, fn func(*State)) (found, reclaimed bool) {
	r := g.Get(id)
	if r == nil {
		return false, false
	}
	ok, emptied := r.Do(fn)
	if !ok {
		return false, false
	}
	if emptied {
		g.removeRoom(r)
	}
	return true, emptied
}

func (g *Registry) List() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	list := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		if !r.Reclaimed() {
			list = append(list, r)
		}
	}
	return list
}

func (g *Registry) Len() int {
	return len(g.List())
}

// ParticipantCount sums the participants of every live room, reading each
// under its own lock.
func (g *Registry) ParticipantCount() int {
	n := 0
	for _, r := range g.List() {
		r.Do(func(st *State) {
			n += st.ParticipantCount()
		})
	}
	return n
}
