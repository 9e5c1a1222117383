package collab

import (
	"canvassync/internal/events"
	"canvassync/internal/protocol"
	"canvassync/internal/rooms"
	"canvassync/internal/strokes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got map[string][]protocol.ServerMessage
}

func newRecorder() *recorder {
	return &recorder{got: make(map[string][]protocol.ServerMessage)}
}

func (r *recorder) Send(connID string, msg protocol.ServerMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got[connID] = append(r.got[connID], msg)
}

// take returns and clears everything delivered to connID.
func (r *recorder) take(connID string) []protocol.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.got[connID]
	delete(r.got, connID)
	return msgs
}

func newTestEngine(t *testing.T) (*Engine, *recorder, *events.Bus) {
	t.Helper()
	rec := newRecorder()
	bus := events.NewBus()
	return NewEngine(rooms.NewRegistry(), rec, bus), rec, bus
}

func connect(e *Engine, rec *recorder, id string) *Session {
	s := e.Connect(id)
	rec.take(id)
	return s
}

func joinMsg(room, name string) protocol.Join {
	return protocol.Join{RoomID: room, DisplayName: name, DisplayColor: "#3b82f6"}
}

func drawMsg(room, id string) protocol.Draw {
	return protocol.Draw{RoomID: room, Stroke: strokes.Stroke{
		ID:       id,
		AuthorID: "spoofed",
		Tool:     strokes.ToolPen,
		Color:    "#000000",
		Width:    5,
		Points:   []strokes.Point{{X: 10, Y: 10}, {X: 100, Y: 100}},
	}}
}

func TestConnect_SendsWelcome(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	s := e.Connect("A")
	assert.Equal(t, Unjoined, s.State())
	assert.Equal(t, []protocol.ServerMessage{protocol.Welcome{ConnectionID: "A"}}, rec.take("A"))
}

// Walks the two-participant session end to end.
func TestScenario_TwoParticipants(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	b := connect(e, rec, "B")

	e.Handle(a, joinMsg("r1", "Alice"))
	assert.Equal(t, []protocol.ServerMessage{protocol.Snapshot{
		RoomID:       "r1",
		SelfID:       "A",
		Strokes:      []strokes.Stroke{},
		Participants: []protocol.Presence{{ID: "A", DisplayName: "Alice", DisplayColor: "#3b82f6", IsSelf: true}},
	}}, rec.take("A"))

	e.Handle(b, joinMsg("r1", "Bob"))
	assert.Equal(t, []protocol.ServerMessage{protocol.Snapshot{
		RoomID:  "r1",
		SelfID:  "B",
		Strokes: []strokes.Stroke{},
		Participants: []protocol.Presence{
			{ID: "A", DisplayName: "Alice", DisplayColor: "#3b82f6"},
			{ID: "B", DisplayName: "Bob", DisplayColor: "#3b82f6", IsSelf: true},
		},
	}}, rec.take("B"))
	assert.Equal(t, []protocol.ServerMessage{protocol.ParticipantJoined{
		Participant: protocol.Presence{ID: "B", DisplayName: "Bob", DisplayColor: "#3b82f6"},
	}}, rec.take("A"))

	e.Handle(a, drawMsg("r1", "s1"))
	bGot := rec.take("B")
	require.Len(t, bGot, 1)
	committed, ok := bGot[0].(protocol.StrokeCommitted)
	require.True(t, ok, "got %T", bGot[0])
	assert.Equal(t, "s1", committed.Stroke.ID)
	assert.Equal(t, "A", committed.Stroke.AuthorID, "author must be the server-known identity")
	assert.Empty(t, rec.take("A"), "the author gets no echo")

	e.Handle(b, protocol.Undo{RoomID: "r1", StrokeID: "s1"})
	assert.Empty(t, rec.take("A"))
	assert.Empty(t, rec.take("B"))

	e.Handle(a, protocol.Undo{RoomID: "r1", StrokeID: "s1"})
	assert.Equal(t, []protocol.ServerMessage{protocol.StrokeRemoved{StrokeID: "s1"}}, rec.take("A"))
	assert.Equal(t, []protocol.ServerMessage{protocol.StrokeRemoved{StrokeID: "s1"}}, rec.take("B"))

	e.Disconnect(a)
	assert.Equal(t, []protocol.ServerMessage{protocol.ParticipantLeft{ParticipantID: "A", DisplayName: "Alice"}}, rec.take("B"))
	assert.NotNil(t, e.Rooms().Get("r1"), "room survives while B remains")

	e.Disconnect(b)
	assert.Nil(t, e.Rooms().Get("r1"), "room reclaimed once empty")
	assert.Empty(t, rec.take("A"))
	assert.Empty(t, rec.take("B"))
}

func TestDrawBeforeJoinIsDropped(t *testing.T) {
	e, rec, bus := newTestEngine(t)
	a := connect(e, rec, "A")
	b := connect(e, rec, "B")
	e.Handle(b, joinMsg("r1", "Bob"))
	rec.take("B")

	e.Handle(a, drawMsg("r1", "s1"))
	e.Handle(a, protocol.Undo{RoomID: "r1", StrokeID: "s1"})
	assert.Empty(t, rec.take("A"))
	assert.Empty(t, rec.take("B"))

	e.Rooms().Get("r1").Do(func(st *rooms.State) {
		assert.Equal(t, 0, st.StrokeCount())
	})
	assert.Equal(t, 2, countKind(bus, events.MessageDropped))
}

func TestDrawForAnotherRoomIsDropped(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	b := connect(e, rec, "B")
	e.Handle(a, joinMsg("r1", "Alice"))
	e.Handle(b, joinMsg("r2", "Bob"))
	rec.take("A")
	rec.take("B")

	e.Handle(a, drawMsg("r2", "s1"))
	assert.Empty(t, rec.take("B"))
	e.Rooms().Get("r2").Do(func(st *rooms.State) {
		assert.Equal(t, 0, st.StrokeCount())
	})
}

func TestDrawWithoutRoomIDUsesSessionRoom(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	b := connect(e, rec, "B")
	e.Handle(a, joinMsg("r1", "Alice"))
	e.Handle(b, joinMsg("r1", "Bob"))
	rec.take("A")
	rec.take("B")

	e.Handle(a, drawMsg("", "s1"))
	require.Len(t, rec.take("B"), 1)
}

func TestInvalidStrokesAreDropped(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	b := connect(e, rec, "B")
	e.Handle(a, joinMsg("r1", "Alice"))
	e.Handle(b, joinMsg("r1", "Bob"))
	rec.take("A")
	rec.take("B")

	empty := drawMsg("r1", "s1")
	empty.Stroke.Points = nil
	e.Handle(a, empty)

	e.Handle(a, drawMsg("r1", "s2"))
	rec.take("B")
	e.Handle(a, drawMsg("r1", "s2"))

	assert.Empty(t, rec.take("B"), "no broadcast for rejected strokes")
	e.Rooms().Get("r1").Do(func(st *rooms.State) {
		assert.Equal(t, 1, st.StrokeCount())
	})
}

func TestUndoIsIdempotent(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	e.Handle(a, joinMsg("r1", "Alice"))
	e.Handle(a, drawMsg("r1", "s1"))
	rec.take("A")

	e.Handle(a, protocol.Undo{RoomID: "r1", StrokeID: "s1"})
	e.Handle(a, protocol.Undo{RoomID: "r1", StrokeID: "s1"})
	assert.Equal(t, []protocol.ServerMessage{protocol.StrokeRemoved{StrokeID: "s1"}}, rec.take("A"))
}

func TestJoinSnapshotCarriesLog(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	e.Handle(a, joinMsg("r1", "Alice"))
	e.Handle(a, drawMsg("r1", "s1"))
	e.Handle(a, drawMsg("r1", "s2"))
	e.Handle(a, protocol.Undo{RoomID: "r1", StrokeID: "s1"})
	rec.take("A")

	b := connect(e, rec, "B")
	e.Handle(b, joinMsg("r1", "Bob"))
	got := rec.take("B")
	require.Len(t, got, 1)
	snap := got[0].(protocol.Snapshot)
	require.Len(t, snap.Strokes, 1)
	assert.Equal(t, "s2", snap.Strokes[0].ID)
	assert.Equal(t, "A", snap.Strokes[0].AuthorID)
	assert.Len(t, snap.Participants, 2)
}

func TestRejoinSameRoom(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	b := connect(e, rec, "B")
	e.Handle(a, joinMsg("r1", "Alice"))
	e.Handle(b, joinMsg("r1", "Bob"))
	rec.take("A")
	rec.take("B")

	e.Handle(b, joinMsg("r1", "Bob"))
	got := rec.take("B")
	require.Len(t, got, 1)
	assert.Len(t, got[0].(protocol.Snapshot).Participants, 2, "no duplicate entry")
	assert.Empty(t, rec.take("A"), "unchanged rejoin is not announced again")

	e.Handle(b, joinMsg("r1", "Robert"))
	rec.take("B")
	assert.Equal(t, []protocol.ServerMessage{protocol.ParticipantJoined{
		Participant: protocol.Presence{ID: "B", DisplayName: "Robert", DisplayColor: "#3b82f6"},
	}}, rec.take("A"))
}

func TestJoinAnotherRoomLeavesTheFirst(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	b := connect(e, rec, "B")
	e.Handle(a, joinMsg("r1", "Alice"))
	e.Handle(b, joinMsg("r1", "Bob"))
	rec.take("A")
	rec.take("B")

	e.Handle(b, joinMsg("r2", "Bob"))
	assert.Equal(t, []protocol.ServerMessage{protocol.ParticipantLeft{ParticipantID: "B", DisplayName: "Bob"}}, rec.take("A"))
	assert.Equal(t, "r2", b.RoomID())

	e.Rooms().Get("r1").Do(func(st *rooms.State) {
		assert.Equal(t, []string{"A"}, st.ParticipantIDs())
	})

	e.Handle(a, joinMsg("r2", "Alice"))
	assert.Nil(t, e.Rooms().Get("r1"), "abandoned room is reclaimed")
}

func TestExplicitLeave(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	b := connect(e, rec, "B")
	e.Handle(a, joinMsg("r1", "Alice"))
	e.Handle(b, joinMsg("r1", "Bob"))
	rec.take("A")
	rec.take("B")

	e.Handle(a, protocol.Leave{RoomID: "r1"})
	assert.Equal(t, Unjoined, a.State())
	assert.Equal(t, []protocol.ServerMessage{protocol.ParticipantLeft{ParticipantID: "A", DisplayName: "Alice"}}, rec.take("B"))

	// redundant leave and disconnect are tolerated silently
	e.Handle(a, protocol.Leave{RoomID: "r1"})
	e.Disconnect(a)
	e.Disconnect(a)
	assert.Empty(t, rec.take("B"))
	assert.Equal(t, Disconnected, a.State())

	e.Handle(a, joinMsg("r1", "Alice"))
	assert.Empty(t, rec.take("A"), "a disconnected session is terminal")
}

// A reconnect arrives under a new identity; the old one is cleaned up by its
// own disconnect, which may come before or after the new join.
func TestReconnectUnderNewIdentity(t *testing.T) {
	for _, disconnectFirst := range []bool{true, false} {
		t.Run(fmt.Sprintf("disconnectFirst=%v", disconnectFirst), func(t *testing.T) {
			e, rec, _ := newTestEngine(t)
			old := connect(e, rec, "A1")
			b := connect(e, rec, "B")
			e.Handle(old, joinMsg("r1", "Alice"))
			e.Handle(b, joinMsg("r1", "Bob"))
			e.Handle(old, drawMsg("r1", "s1"))
			rec.take("A1")
			rec.take("B")

			fresh := connect(e, rec, "A2")
			if disconnectFirst {
				e.Disconnect(old)
				e.Handle(fresh, joinMsg("r1", "Alice"))
			} else {
				e.Handle(fresh, joinMsg("r1", "Alice"))
				e.Disconnect(old)
			}

			got := rec.take("A2")
			require.Len(t, got, 1)
			snap := got[0].(protocol.Snapshot)
			require.Len(t, snap.Strokes, 1)
			assert.Equal(t, "A1", snap.Strokes[0].AuthorID)

			e.Rooms().Get("r1").Do(func(st *rooms.State) {
				assert.ElementsMatch(t, []string{"B", "A2"}, st.ParticipantIDs(), "no ghost participant")
			})

			// undo rights stay with the identity that drew the stroke
			e.Handle(fresh, protocol.Undo{RoomID: "r1", StrokeID: "s1"})
			e.Rooms().Get("r1").Do(func(st *rooms.State) {
				assert.Equal(t, 1, st.StrokeCount())
			})
		})
	}
}

func TestHandleRawDropsMalformed(t *testing.T) {
	e, rec, bus := newTestEngine(t)
	a := connect(e, rec, "A")
	e.HandleRaw(a, []byte(`{"type":"join"`))
	e.HandleRaw(a, []byte(`{"type":"explode"}`))
	assert.Equal(t, Unjoined, a.State())
	assert.Empty(t, rec.take("A"))
	assert.Equal(t, 2, countKind(bus, events.MessageDropped))

	e.HandleRaw(a, []byte(`{"type":"join","roomId":"r1","displayName":"Alice"}`))
	got := rec.take("A")
	require.Len(t, got, 1)
	snap := got[0].(protocol.Snapshot)
	assert.NotEmpty(t, snap.Participants[0].DisplayColor, "missing colour gets a default")
}

func TestJoinWithoutRoomIsDropped(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	a := connect(e, rec, "A")
	e.Handle(a, protocol.Join{RoomID: "  ", DisplayName: "Alice"})
	assert.Equal(t, Unjoined, a.State())
	assert.Empty(t, rec.take("A"))
	assert.Equal(t, 0, e.Rooms().Len())
}

func TestLifecycleEvents(t *testing.T) {
	e, rec, bus := newTestEngine(t)
	a := connect(e, rec, "A")
	e.Handle(a, joinMsg("r1", "Alice"))
	e.Handle(a, drawMsg("r1", "s1"))
	e.Handle(a, protocol.Undo{RoomID: "r1", StrokeID: "s1"})
	e.Disconnect(a)

	var kinds []events.Kind
	for len(bus.Events) > 0 {
		kinds = append(kinds, (<-bus.Events).Kind)
	}
	assert.Equal(t, []events.Kind{
		events.RoomOpened,
		events.ParticipantJoined,
		events.StrokeCommitted,
		events.StrokeRemoved,
		events.ParticipantLeft,
		events.RoomClosed,
	}, kinds)
}

// Every participant sees committed strokes in the server's log order, even
// when several authors draw at once.
func TestConcurrentDrawsConverge(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	const writers = 4
	const perWriter = 25

	observer := connect(e, rec, "obs")
	e.Handle(observer, joinMsg("r1", "Observer"))

	sessions := make([]*Session, writers)
	for i := range sessions {
		id := fmt.Sprintf("w%d", i)
		sessions[i] = connect(e, rec, id)
		e.Handle(sessions[i], joinMsg("r1", id))
	}
	rec.take("obs")

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				e.Handle(s, drawMsg("r1", fmt.Sprintf("w%d-%d", i, j)))
			}
		}(i, s)
	}
	wg.Wait()

	var logIDs []string
	e.Rooms().Get("r1").Do(func(st *rooms.State) {
		for _, s := range st.Strokes() {
			logIDs = append(logIDs, s.ID)
		}
	})
	require.Len(t, logIDs, writers*perWriter)

	var seen []string
	for _, msg := range rec.take("obs") {
		if c, ok := msg.(protocol.StrokeCommitted); ok {
			seen = append(seen, c.Stroke.ID)
		}
	}
	assert.Equal(t, logIDs, seen)
}

func countKind(bus *events.Bus, kind events.Kind) int {
	n := 0
	for len(bus.Events) > 0 {
		if (<-bus.Events).Kind == kind {
			n++
		}
	}
	return n
}
