package analytics

import (
	"canvassync/internal/db"
	"canvassync/internal/events"
	"database/sql"
	"fmt"
)

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

// summarySelect aggregates the journal per room. Callers append WHERE and
// ORDER clauses.
const summarySelect = `
	SELECT
		room_id,
		MIN(occurred_at) as first_seen,
		MAX(occurred_at) as last_seen,
		COUNT(*) FILTER (WHERE kind = $1) as joins,
		COALESCE(MAX(participants), 0) as peak,
		COUNT(*) FILTER (WHERE kind = $2) as committed,
		COUNT(*) FILTER (WHERE kind = $3) as removed,
		COUNT(*) FILTER (WHERE kind = $4 AND reason = $5) as rejected_undos,
		COUNT(*) FILTER (WHERE kind = $4) as dropped
	FROM room_events
	WHERE room_id <> ''`

func summaryArgs() []any {
	return []any{
		string(events.ParticipantJoined),
		string(events.StrokeCommitted),
		string(events.StrokeRemoved),
		string(events.MessageDropped),
		events.ReasonUnauthorizedUndo,
	}
}

func (q *Queries) GetRoomSummary(roomID string) (*RoomSummary, error) {
	s := &RoomSummary{}
	args := append(summaryArgs(), roomID)
	err := q.DB.QueryRow(summarySelect+` AND room_id = $6 GROUP BY room_id`, args...).Scan(
		&s.RoomID, &s.FirstSeen, &s.LastSeen, &s.Joins, &s.PeakParticipants,
		&s.StrokesCommitted, &s.StrokesRemoved, &s.RejectedUndos, &s.Dropped,
	)
	if err != nil {
		return nil, fmt.Errorf("getting room summary: %w", err)
	}
	s.Badges = EvaluateRoomBadges(*s)
	return s, nil
}

// GetRecentRooms returns the rooms with the most recent activity first.
func (q *Queries) GetRecentRooms(limit int) ([]RoomSummary, error) {
	args := append(summaryArgs(), limit)
	rows, err := q.DB.Query(summarySelect+`
		GROUP BY room_id
		ORDER BY last_seen DESC
		LIMIT $6`, args...)
	if err != nil {
		return nil, fmt.Errorf("getting recent rooms: %w", err)
	}
	defer rows.Close()

	var list []RoomSummary
	for rows.Next() {
		var s RoomSummary
		if err := rows.Scan(
			&s.RoomID, &s.FirstSeen, &s.LastSeen, &s.Joins, &s.PeakParticipants,
			&s.StrokesCommitted, &s.StrokesRemoved, &s.RejectedUndos, &s.Dropped,
		); err != nil {
			return nil, err
		}
		s.Badges = EvaluateRoomBadges(s)
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetRoomTimeline returns the latest journal entries for one room, oldest
// first.
func (q *Queries) GetRoomTimeline(roomID string, limit int) (*RoomTimeline, error) {
	rows, err := q.DB.Query(`
		SELECT kind, connection_id, stroke_id, reason, participants, occurred_at
		FROM (
			SELECT * FROM room_events
			WHERE room_id = $1
			ORDER BY occurred_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY occurred_at, id
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("getting room timeline: %w", err)
	}
	defer rows.Close()

	tl := &RoomTimeline{RoomID: roomID}
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.Kind, &e.ConnectionID, &e.StrokeID, &e.Reason, &e.Participants, &e.At); err != nil {
			return nil, err
		}
		tl.Entries = append(tl.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tl.Entries) == 0 {
		return nil, fmt.Errorf("no activity recorded for room %q: %w", roomID, sql.ErrNoRows)
	}
	return tl, nil
}

func (q *Queries) GetDropCounts() ([]DropCount, error) {
	rows, err := q.DB.Query(`
		SELECT reason, COUNT(*) as n
		FROM room_events
		WHERE kind = $1
		GROUP BY reason
		ORDER BY n DESC, reason
	`, string(events.MessageDropped))
	if err != nil {
		return nil, fmt.Errorf("getting drop counts: %w", err)
	}
	defer rows.Close()

	var list []DropCount
	for rows.Next() {
		var d DropCount
		if err := rows.Scan(&d.Reason, &d.Count); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}
