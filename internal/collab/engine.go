// Package collab runs the synchronization protocol: it drives each
// connection through join, draw, undo and leave, applies those operations to
// the owning room and decides who hears about them.
package collab

import (
	"canvassync/internal/events"
	"canvassync/internal/participants"
	"canvassync/internal/protocol"
	"canvassync/internal/rooms"
	"canvassync/internal/utility"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultDisplayName = "Anonymous"

// Transport delivers one notification to one connection. Engine calls Send
// while a room is locked, so implementations must not block; delivery is
// fire-and-forget.
type Transport interface {
	Send(connID string, msg protocol.ServerMessage)
}

type Engine struct {
	rooms *rooms.Registry
	out   Transport
	bus   *events.Bus
	log   *logrus.Entry
}

// NewEngine wires the registry to a transport. bus may be nil.
func NewEngine(registry *rooms.Registry, out Transport, bus *events.Bus) *Engine {
	return &Engine{
		rooms: registry,
		out:   out,
		bus:   bus,
		log:   logrus.WithField("component", "collab"),
	}
}

func (e *Engine) Rooms() *rooms.Registry {
	return e.rooms
}

// Connect starts a session for a freshly connected transport identity and
// tells the client which id its strokes will carry.
func (e *Engine) Connect(connID string) *Session {
	s := &Session{ID: connID, state: Unjoined}
	e.out.Send(connID, protocol.Welcome{ConnectionID: connID})
	e.log.WithField("conn_id", connID).Debug("connection opened")
	return s
}

// HandleRaw decodes one inbound frame and handles it. Malformed frames are
// dropped and the connection stays open.
func (e *Engine) HandleRaw(s *Session, data []byte) {
	msg, err := protocol.DecodeClient(data)
	if err != nil {
		e.drop(s, "", events.ReasonMalformed, err.Error())
		return
	}
	e.Handle(s, msg)
}

func (e *Engine) Handle(s *Session, msg protocol.ClientMessage) {
	if s.state == Disconnected {
		return
	}
	switch m := msg.(type) {
	case protocol.Join:
		e.join(s, m)
	case protocol.Draw:
		e.draw(s, m)
	case protocol.Undo:
		e.undo(s, m)
	case protocol.Leave:
		e.leave(s, m)
	default:
		e.drop(s, msg.Room(), events.ReasonMalformed, "unhandled message "+msg.Kind())
	}
}

// Disconnect ends the session, leaving its room if it has one. Calling it
// again is a no-op.
func (e *Engine) Disconnect(s *Session) {
	if s.state == Disconnected {
		return
	}
	if s.state == Joined {
		e.leaveRoom(s)
	}
	s.state = Disconnected
	e.log.WithField("conn_id", s.ID).Debug("connection closed")
}

func (e *Engine) join(s *Session, m protocol.Join) {
	roomID := strings.TrimSpace(m.RoomID)
	if roomID == "" {
		e.drop(s, "", events.ReasonInvalidJoin, "empty room id")
		return
	}
	// one room per connection: joining elsewhere abandons the current room
	if s.state == Joined && s.roomID != roomID {
		e.leaveRoom(s)
	}

	p := participants.Participant{
		ConnectionID: s.ID,
		DisplayName:  strings.TrimSpace(m.DisplayName),
		DisplayColor: strings.TrimSpace(m.DisplayColor),
	}
	if p.DisplayName == "" {
		p.DisplayName = defaultDisplayName
	}
	if p.DisplayColor == "" {
		p.DisplayColor = utility.RandomColorHex()
	}

	var count int
	_, created := e.rooms.Join(roomID, func(st *rooms.State) {
		if st.ParticipantCount() == 0 {
			e.publish(events.Event{Kind: events.RoomOpened, RoomID: roomID})
		}
		res := st.Join(p)
		e.out.Send(s.ID, snapshotFor(roomID, s.ID, res.Snapshot))
		if res.Added || res.Changed {
			joined := protocol.ParticipantJoined{Participant: protocol.PresenceOf(p, "")}
			for _, id := range res.Others {
				e.out.Send(id, joined)
			}
		}
		count = len(res.Participants)
		if res.Added {
			e.publish(events.Event{Kind: events.ParticipantJoined, RoomID: roomID, ConnectionID: s.ID, Participants: count})
		}
	})

	s.state = Joined
	s.roomID = roomID
	e.log.WithFields(logrus.Fields{
		"room_id":      roomID,
		"conn_id":      s.ID,
		"display_name": p.DisplayName,
		"participants": count,
		"new_room":     created,
	}).Info("participant joined")
}

func (e *Engine) draw(s *Session, m protocol.Draw) {
	roomID, ok := e.sessionRoom(s, m.RoomID)
	if !ok {
		return
	}
	found, _ := e.rooms.Update(roomID, func(st *rooms.State) {
		if !st.IsParticipant(s.ID) {
			e.drop(s, roomID, events.ReasonNotJoined, "draw from non-participant")
			return
		}
		committed, ok := st.AppendStroke(s.ID, m.Stroke)
		if !ok {
			e.drop(s, roomID, events.ReasonInvalidStroke, "stroke "+m.Stroke.ID)
			return
		}
		// the author already holds its own copy
		msg := protocol.StrokeCommitted{Stroke: committed}
		for _, id := range st.ParticipantIDs() {
			if id != s.ID {
				e.out.Send(id, msg)
			}
		}
		e.publish(events.Event{Kind: events.StrokeCommitted, RoomID: roomID, ConnectionID: s.ID, StrokeID: committed.ID, Participants: st.ParticipantCount()})
	})
	if !found {
		e.drop(s, roomID, events.ReasonNotJoined, "draw for missing room")
	}
}

func (e *Engine) undo(s *Session, m protocol.Undo) {
	roomID, ok := e.sessionRoom(s, m.RoomID)
	if !ok {
		return
	}
	found, _ := e.rooms.Update(roomID, func(st *rooms.State) {
		if !st.IsParticipant(s.ID) {
			e.drop(s, roomID, events.ReasonNotJoined, "undo from non-participant")
			return
		}
		if !st.UndoStroke(s.ID, m.StrokeID) {
			e.drop(s, roomID, events.ReasonUnauthorizedUndo, "stroke "+m.StrokeID)
			return
		}
		// everyone, author included, learns the removal was accepted
		msg := protocol.StrokeRemoved{StrokeID: m.StrokeID}
		for _, id := range st.ParticipantIDs() {
			e.out.Send(id, msg)
		}
		e.publish(events.Event{Kind: events.StrokeRemoved, RoomID: roomID, ConnectionID: s.ID, StrokeID: m.StrokeID, Participants: st.ParticipantCount()})
	})
	if !found {
		e.drop(s, roomID, events.ReasonNotJoined, "undo for missing room")
	}
}

func (e *Engine) leave(s *Session, m protocol.Leave) {
	if s.state != Joined {
		return
	}
	if roomID := strings.TrimSpace(m.RoomID); roomID != "" && roomID != s.roomID {
		e.drop(s, m.RoomID, events.ReasonWrongRoom, "leave for another room")
		return
	}
	e.leaveRoom(s)
	s.state = Unjoined
}

func (e *Engine) leaveRoom(s *Session) {
	roomID := s.roomID
	s.roomID = ""
	var left bool
	var name string
	_, reclaimed := e.rooms.Update(roomID, func(st *rooms.State) {
		res, ok := st.Leave(s.ID)
		if !ok {
			return
		}
		left, name = true, res.Participant.DisplayName
		msg := protocol.ParticipantLeft{ParticipantID: s.ID, DisplayName: name}
		for _, id := range res.Remaining {
			e.out.Send(id, msg)
		}
		e.publish(events.Event{Kind: events.ParticipantLeft, RoomID: roomID, ConnectionID: s.ID, Participants: len(res.Remaining)})
		if len(res.Remaining) == 0 {
			e.publish(events.Event{Kind: events.RoomClosed, RoomID: roomID})
		}
	})
	if !left {
		return
	}
	log := e.log.WithFields(logrus.Fields{"room_id": roomID, "conn_id": s.ID, "display_name": name})
	log.Info("participant left")
	if reclaimed {
		log.Info("room empty, reclaimed")
	}
}

// sessionRoom resolves the room a draw or undo targets. An empty room id
// means the session's own room.
func (e *Engine) sessionRoom(s *Session, roomID string) (string, bool) {
	roomID = strings.TrimSpace(roomID)
	if s.state != Joined {
		e.drop(s, roomID, events.ReasonNotJoined, "request before join")
		return "", false
	}
	if roomID == "" {
		return s.roomID, true
	}
	if roomID != s.roomID {
		e.drop(s, roomID, events.ReasonWrongRoom, "request for another room")
		return "", false
	}
	return roomID, true
}

// drop records a silently ignored request. Nothing is sent to any client.
func (e *Engine) drop(s *Session, roomID, reason, detail string) {
	e.log.WithFields(logrus.Fields{
		"room_id": roomID,
		"conn_id": s.ID,
		"reason":  reason,
	}).Debug("dropped request: " + detail)
	e.publish(events.Event{Kind: events.MessageDropped, RoomID: roomID, ConnectionID: s.ID, Reason: reason})
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func snapshotFor(roomID, self string, snap rooms.Snapshot) protocol.Snapshot {
	out := protocol.Snapshot{
		RoomID:       roomID,
		SelfID:       self,
		Strokes:      snap.Strokes,
		Participants: make([]protocol.Presence, 0, len(snap.Participants)),
	}
	for _, p := range snap.Participants {
		out.Participants = append(out.Participants, protocol.PresenceOf(p, self))
	}
	return out
}
