package participants

// Participant is a joined identity within a room, tied to one live connection.
type Participant struct {
	ConnectionID string `json:"id"`
	DisplayName  string `json:"displayName"`
	DisplayColor string `json:"displayColor"`
}
