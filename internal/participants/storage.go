package participants

// Store is the presence table of one room, keyed by connection id and kept
// in join order. It is not safe for concurrent use; the owning room
// serializes access.
type Store struct {
	order        []string
	participants map[string]Participant
}

func NewStore() *Store {
	return &Store{
		participants: make(map[string]Participant),
	}
}

// Put inserts or overwrites the entry for p.ConnectionID. A returning
// connection keeps its original position. added reports a new entry and
// changed reports that an existing entry's display attributes differ.
func (s *Store) Put(p Participant) (added, changed bool) {
	prev, exists := s.participants[p.ConnectionID]
	s.participants[p.ConnectionID] = p
	if !exists {
		s.order = append(s.order, p.ConnectionID)
		return true, false
	}
	return false, prev != p
}

func (s *Store) Get(id string) (Participant, bool) {
	p, ok := s.participants[id]
	return p, ok
}

func (s *Store) Has(id string) bool {
	_, ok := s.participants[id]
	return ok
}

// Remove deletes the entry for id and returns it. Removing an absent id is a
// no-op that returns false.
func (s *Store) Remove(id string) (Participant, bool) {
	p, ok := s.participants[id]
	if !ok {
		return Participant{}, false
	}
	delete(s.participants, id)
	for i, c := range s.order {
		if c == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return p, true
}

// GetList returns the participants in join order.
func (s *Store) GetList() []Participant {
	list := make([]Participant, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.participants[id])
	}
	return list
}

// IDs returns the connection ids in join order.
func (s *Store) IDs() []string {
	return append([]string(nil), s.order...)
}

func (s *Store) Len() int {
	return len(s.participants)
}
