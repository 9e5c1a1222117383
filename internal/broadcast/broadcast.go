// Package broadcast fans room lifecycle events out to operator feed
// subscribers (the /events server-sent event stream).
package broadcast

import (
	"canvassync/internal/events"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscriber queue depth.
const DefaultBuffer = 16

type FeedMessage struct {
	Event string
	Msg   string
}

// Feed is an events.Observer that encodes each lifecycle event once and
// hands it to every subscriber without blocking the bus.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan FeedMessage]struct{}
	buffer      int
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Feed{
		subscribers: make(map[chan FeedMessage]struct{}),
		buffer:      buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel func removes it and
// closes the channel; calling it more than once is harmless.
func (f *Feed) Subscribe() (<-chan FeedMessage, func()) {
	ch := make(chan FeedMessage, f.buffer)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Len reports the number of live subscribers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// Observe delivers ev to every subscriber with room in its queue. A slow
// subscriber misses events rather than stalling the others.
func (f *Feed) Observe(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).WithField("component", "feed").Warn("encoding event")
		return
	}
	msg := FeedMessage{Event: string(ev.Kind), Msg: string(data)}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}
