package events

import (
	"context"
	"sync/atomic"
	"time"
)

type Kind string

const (
	RoomOpened        = Kind("roomOpened")
	RoomClosed        = Kind("roomClosed")
	ParticipantJoined = Kind("participantJoined")
	ParticipantLeft   = Kind("participantLeft")
	StrokeCommitted   = Kind("strokeCommitted")
	StrokeRemoved     = Kind("strokeRemoved")
	MessageDropped    = Kind("messageDropped")
)

// Drop reasons carried by MessageDropped events.
const (
	ReasonNotJoined        = "not_joined"
	ReasonWrongRoom        = "wrong_room"
	ReasonInvalidStroke    = "invalid_stroke"
	ReasonUnauthorizedUndo = "unauthorized_undo"
	ReasonInvalidJoin      = "invalid_join"
	ReasonMalformed        = "malformed"
)

// Event is an internal record of something a room did. Events never reach
// canvas clients; they feed metrics, the activity journal and the operator
// feed.
type Event struct {
	Kind         Kind      `json:"kind"`
	RoomID       string    `json:"roomId,omitempty"`
	ConnectionID string    `json:"connectionId,omitempty"`
	StrokeID     string    `json:"strokeId,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Participants int       `json:"participants"`
	At           time.Time `json:"at"`
}

type Bus struct {
	Events  chan Event
	dropped atomic.Int64
}

func NewBus() *Bus {
	return &Bus{
		Events: make(chan Event, 1024),
	}
}

// Publish enqueues ev without blocking. Rooms publish while locked, so a
// full bus drops the event instead of stalling the room.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case b.Events <- ev:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many events Publish discarded.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Observer consumes events drained from a Bus.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Run hands every published event to each observer in turn until ctx is
// done. Observers run on Run's goroutine and must not block.
func (b *Bus) Run(ctx context.Context, observers ...Observer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.Events:
			for _, o := range observers {
				o.Observe(ev)
			}
		}
	}
}
