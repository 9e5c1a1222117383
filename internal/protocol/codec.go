package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownType = errors.New("unknown message type")

type envelope struct {
	Type string `json:"type"`
}

// DecodeClient parses one inbound frame.
func DecodeClient(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}

	var msg ClientMessage
	var err error
	switch env.Type {
	case TypeJoin:
		var m Join
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeDraw:
		var m Draw
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeUndo:
		var m Undo
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeLeave:
		var m Leave
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", env.Type, err)
	}
	return msg, nil
}

// Encode renders a message as a flat JSON object with its kind in "type".
func Encode(m interface{ Kind() string }) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.Kind(), err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.Kind(), err)
	}
	kind, _ := json.Marshal(m.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}

// DecodeServer parses one outbound frame. Clients and tests use it; the
// server never reads its own notifications back.
func DecodeServer(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}

	var msg ServerMessage
	var err error
	switch env.Type {
	case TypeWelcome:
		var m Welcome
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeSnapshot:
		var m Snapshot
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeParticipantJoined:
		var m ParticipantJoined
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeStrokeCommitted:
		var m StrokeCommitted
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeStrokeRemoved:
		var m StrokeRemoved
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeParticipantLeft:
		var m ParticipantLeft
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", env.Type, err)
	}
	return msg, nil
}
