// Package protocol defines the messages exchanged between canvas clients and
// the sync server. Every frame is a JSON object with a "type" field naming
// one of the message kinds below.
package protocol

import (
	"canvassync/internal/participants"
	"canvassync/internal/strokes"
)

const (
	TypeJoin  = "join"
	TypeDraw  = "draw"
	TypeUndo  = "undo"
	TypeLeave = "leave"

	TypeWelcome           = "welcome"
	TypeSnapshot          = "snapshot"
	TypeParticipantJoined = "participantJoined"
	TypeStrokeCommitted   = "strokeCommitted"
	TypeStrokeRemoved     = "strokeRemoved"
	TypeParticipantLeft   = "participantLeft"
)

// ClientMessage is one of Join, Draw, Undo or Leave.
type ClientMessage interface {
	Kind() string
	Room() string
}

type Join struct {
	RoomID       string `json:"roomId"`
	DisplayName  string `json:"displayName"`
	DisplayColor string `json:"displayColor"`
}

// Draw carries a stroke as the client drew it. Its userId is never trusted.
type Draw struct {
	RoomID string         `json:"roomId"`
	Stroke strokes.Stroke `json:"stroke"`
}

type Undo struct {
	RoomID   string `json:"roomId"`
	StrokeID string `json:"strokeId"`
}

type Leave struct {
	RoomID string `json:"roomId"`
}

func (Join) Kind() string  { return TypeJoin }
func (Draw) Kind() string  { return TypeDraw }
func (Undo) Kind() string  { return TypeUndo }
func (Leave) Kind() string { return TypeLeave }

func (m Join) Room() string  { return m.RoomID }
func (m Draw) Room() string  { return m.RoomID }
func (m Undo) Room() string  { return m.RoomID }
func (m Leave) Room() string { return m.RoomID }

// ServerMessage is one of the outbound notifications.
type ServerMessage interface {
	Kind() string
}

// Presence is the public identity of a participant as seen by one recipient.
type Presence struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	DisplayColor string `json:"displayColor"`
	IsSelf       bool   `json:"isSelf"`
}

func PresenceOf(p participants.Participant, self string) Presence {
	return Presence{
		ID:           p.ConnectionID,
		DisplayName:  p.DisplayName,
		DisplayColor: p.DisplayColor,
		IsSelf:       p.ConnectionID == self,
	}
}

type Welcome struct {
	ConnectionID string `json:"connectionId"`
}

type Snapshot struct {
	RoomID       string           `json:"roomId"`
	SelfID       string           `json:"selfId"`
	Strokes      []strokes.Stroke `json:"strokes"`
	Participants []Presence       `json:"participants"`
}

type ParticipantJoined struct {
	Participant Presence `json:"participant"`
}

type StrokeCommitted struct {
	Stroke strokes.Stroke `json:"stroke"`
}

type StrokeRemoved struct {
	StrokeID string `json:"strokeId"`
}

type ParticipantLeft struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

func (Welcome) Kind() string           { return TypeWelcome }
func (Snapshot) Kind() string          { return TypeSnapshot }
func (ParticipantJoined) Kind() string { return TypeParticipantJoined }
func (StrokeCommitted) Kind() string   { return TypeStrokeCommitted }
func (StrokeRemoved) Kind() string     { return TypeStrokeRemoved }
func (ParticipantLeft) Kind() string   { return TypeParticipantLeft }
