package analytics

import "time"

type RoomSummary struct {
	RoomID           string    `json:"roomId"`
	FirstSeen        time.Time `json:"firstSeen"`
	LastSeen         time.Time `json:"lastSeen"`
	Joins            int       `json:"joins"`
	PeakParticipants int       `json:"peakParticipants"`
	StrokesCommitted int       `json:"strokesCommitted"`
	StrokesRemoved   int       `json:"strokesRemoved"`
	RejectedUndos    int       `json:"rejectedUndos"`
	Dropped          int       `json:"dropped"`
	Badges           []Badge   `json:"badges,omitempty"`
}

// UndoRate is the percentage of committed strokes later undone.
func (s RoomSummary) UndoRate() float64 {
	if s.StrokesCommitted == 0 {
		return 0
	}
	return float64(s.StrokesRemoved) / float64(s.StrokesCommitted) * 100
}

type TimelineEntry struct {
	Kind         string    `json:"kind"`
	ConnectionID string    `json:"connectionId,omitempty"`
	StrokeID     string    `json:"strokeId,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Participants int       `json:"participants"`
	At           time.Time `json:"at"`
}

type RoomTimeline struct {
	RoomID  string          `json:"roomId"`
	Entries []TimelineEntry `json:"entries"`
}

type DropCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}
