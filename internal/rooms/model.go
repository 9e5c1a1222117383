package rooms

import (
	"canvassync/internal/participants"
	"canvassync/internal/strokes"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the full room state handed to a connection at join time.
type Snapshot struct {
	Strokes      []strokes.Stroke
	Participants []participants.Participant
}

type JoinResult struct {
	Snapshot
	Participant participants.Participant
	// Added is true for a new entry, Changed for an existing entry whose
	// display attributes were updated.
	Added   bool
	Changed bool
	// Others lists every participant id except the joining one.
	Others []string
}

type LeaveResult struct {
	Participant participants.Participant
	Remaining   []string
}

// State is one room's stroke log and presence table. Its methods are not
// synchronized; they run under the owning Room's lock.
type State struct {
	log    *strokes.Log
	people *participants.Store
}

func NewState() *State {
	return &State{
		log:    strokes.NewLog(),
		people: participants.NewStore(),
	}
}

// Join inserts or overwrites the participant entry and returns the complete
// current log and roster, the caller included.
func (s *State) Join(p participants.Participant) JoinResult {
	added, changed := s.people.Put(p)
	res := JoinResult{
		Snapshot: Snapshot{
			Strokes:      s.Strokes(),
			Participants: s.people.GetList(),
		},
		Participant: p,
		Added:       added,
		Changed:     changed,
	}
	for _, id := range s.people.IDs() {
		if id != p.ConnectionID {
			res.Others = append(res.Others, id)
		}
	}
	return res
}

// AppendStroke commits st under the identity of connID. The author field
// supplied by the caller is ignored. It returns false if connID is not a
// participant or the stroke cannot be appended.
func (s *State) AppendStroke(connID string, st strokes.Stroke) (strokes.Stroke, bool) {
	if !s.people.Has(connID) {
		return strokes.Stroke{}, false
	}
	st.AuthorID = connID
	if !s.log.Append(st) {
		return strokes.Stroke{}, false
	}
	committed, _ := s.log.Get(st.ID)
	return committed, true
}

// UndoStroke removes strokeID only if it exists and connID authored it.
func (s *State) UndoStroke(connID, strokeID string) bool {
	if !s.people.Has(connID) {
		return false
	}
	return s.log.RemoveOwned(strokeID, connID)
}

// Leave removes connID from the roster. Leaving twice is a no-op that
// returns false.
func (s *State) Leave(connID string) (LeaveResult, bool) {
	p, ok := s.people.Remove(connID)
	if !ok {
		return LeaveResult{}, false
	}
	return LeaveResult{Participant: p, Remaining: s.people.IDs()}, true
}

func (s *State) IsParticipant(connID string) bool {
	return s.people.Has(connID)
}

func (s *State) ParticipantIDs() []string {
	return s.people.IDs()
}

// Strokes returns a copy of the log in commit order.
func (s *State) Strokes() []strokes.Stroke {
	return s.log.List()
}

func (s *State) ParticipantCount() int {
	return s.people.Len()
}

func (s *State) StrokeCount() int {
	return s.log.Len()
}

// Room serializes every operation on one State. Once its last participant
// leaves it is marked reclaimed and never runs another operation.
type Room struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	closed atomic.Bool
	state  *State
}

func newRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		state:     NewState(),
	}
}

// Do runs fn with exclusive access to the room state. It returns ok=false
// without calling fn if the room was already reclaimed; emptied reports that
// fn removed the last participant, which reclaims the room.
func (r *Room) Do(fn func(*State)) (ok, emptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return false, false
	}
	before := r.state.ParticipantCount()
	fn(r.state)
	if before > 0 && r.state.ParticipantCount() == 0 {
		r.closed.Store(true)
		return true, true
	}
	return true, false
}

// Reclaimed reports whether the room has lost its last participant.
func (r *Room) Reclaimed() bool {
	return r.closed.Load()
}
