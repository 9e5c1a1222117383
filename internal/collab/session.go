package collab

// State is where a connection is in its lifecycle.
type State int

const (
	Unjoined State = iota
	Joined
	Disconnected
)

func (s State) String() string {
	switch s {
	case Unjoined:
		return "unjoined"
	case Joined:
		return "joined"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session tracks one transport connection. A connection belongs to at most
// one room at a time. A Session is driven by its connection's read loop
// and is not safe for concurrent use.
type Session struct {
	ID     string
	state  State
	roomID string
}

func (s *Session) State() State {
	return s.state
}

// RoomID returns the room the session is joined to, or "".
func (s *Session) RoomID() string {
	return s.roomID
}
