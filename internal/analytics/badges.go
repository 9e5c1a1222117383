package analytics

type BadgeID string

const (
	BadgeBusy        BadgeID = "busy"
	BadgeCrowded     BadgeID = "crowded"
	BadgeRevisionist BadgeID = "revisionist"
	BadgeContested   BadgeID = "contested"
	BadgeMarathon    BadgeID = "marathon"
)

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

var AllBadges = map[BadgeID]Badge{
	BadgeBusy:        {ID: BadgeBusy, Name: "Busy", Description: "100+ strokes committed"},
	BadgeCrowded:     {ID: BadgeCrowded, Name: "Crowded", Description: "5+ participants at once"},
	BadgeRevisionist: {ID: BadgeRevisionist, Name: "Revisionist", Description: "Half or more of the strokes were undone"},
	BadgeContested:   {ID: BadgeContested, Name: "Contested", Description: "10+ undo attempts on strokes the requester did not own"},
	BadgeMarathon:    {ID: BadgeMarathon, Name: "Marathon", Description: "Open for an hour or more"},
}

// EvaluateRoomBadges checks which highlights a room's activity earned.
func EvaluateRoomBadges(s RoomSummary) []Badge {
	var earned []Badge

	if s.StrokesCommitted >= 100 {
		earned = append(earned, AllBadges[BadgeBusy])
	}

	if s.PeakParticipants >= 5 {
		earned = append(earned, AllBadges[BadgeCrowded])
	}

	// Small rooms undo everything while testing; ignore them
	if s.StrokesCommitted >= 10 && s.UndoRate() >= 50.0 {
		earned = append(earned, AllBadges[BadgeRevisionist])
	}

	if s.RejectedUndos >= 10 {
		earned = append(earned, AllBadges[BadgeContested])
	}

	if !s.FirstSeen.IsZero() && s.LastSeen.Sub(s.FirstSeen).Hours() >= 1 {
		earned = append(earned, AllBadges[BadgeMarathon])
	}

	return earned
}
