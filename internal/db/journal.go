package db

import (
	"context"
	"fmt"
	"time"

	"canvassync/internal/events"

	"github.com/lib/pq"
)

const (
	batchSize     = 50
	flushInterval = 500 * time.Millisecond
)

// BatchRecordEvents writes evs in one COPY inside a transaction.
func (d *DB) BatchRecordEvents(evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn("room_events",
		"room_id", "kind", "connection_id", "stroke_id", "reason", "participants", "occurred_at"))
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}
	for _, ev := range evs {
		if _, err := stmt.Exec(ev.RoomID, string(ev.Kind), ev.ConnectionID, ev.StrokeID, ev.Reason, ev.Participants, ev.At); err != nil {
			stmt.Close()
			return fmt.Errorf("copying event: %w", err)
		}
	}
	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		return fmt.Errorf("flushing copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("closing copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

// EventWriter is the subset of DB the journal loop needs.
type EventWriter interface {
	BatchRecordEvents([]events.Event) error
}

// Journal buffers lifecycle events between the event bus and RunJournal.
type Journal struct {
	buffer chan events.Event
}

func NewJournal(size int) *Journal {
	return &Journal{buffer: make(chan events.Event, size)}
}

// Observe queues ev for writing. A full buffer drops the event.
func (j *Journal) Observe(ev events.Event) {
	select {
	case j.buffer <- ev:
	default:
		log.WithField("kind", ev.Kind).Warn("journal buffer full, dropping event")
	}
}

// Run writes buffered events to w until ctx is done.
func (j *Journal) Run(ctx context.Context, w EventWriter) {
	RunJournal(ctx, w, j.buffer)
}

// RunJournal drains buffer into w in batches until ctx is done, flushing
// whatever is pending on the way out.
func RunJournal(ctx context.Context, w EventWriter, buffer <-chan events.Event) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]events.Event, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.BatchRecordEvents(batch); err != nil {
			log.WithError(err).WithField("events", len(batch)).Error("journal write failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev, ok := <-buffer:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
