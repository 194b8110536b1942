// Package protocol defines the closed set of action envelopes exchanged
// through the relay. Every message on the wire is an Envelope carrying a
// room code and one tagged Action; the relay forwards envelopes verbatim
// and never inspects payloads beyond the room code.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownAction = errors.New("unknown action type")

type ActionType string

const (
	// Welcome is transport-level: the relay assigns the connection its
	// participant id before forwarding anything else.
	Welcome ActionType = "WELCOME"

	JoinRequest    ActionType = "JOIN_REQUEST"
	PlayerUpdate   ActionType = "PLAYER_UPDATE"
	GameStart      ActionType = "GAME_START"
	UpdateMyStatus ActionType = "UPDATE_MY_STATUS"
	GlobalTick     ActionType = "GLOBAL_TICK"
	CastSpell      ActionType = "CAST_SPELL"
	RoundCountdown ActionType = "ROUND_COUNTDOWN"
	PlayerLeft     ActionType = "PLAYER_LEFT"
)

var knownActions = map[ActionType]bool{
	Welcome:        true,
	JoinRequest:    true,
	PlayerUpdate:   true,
	GameStart:      true,
	UpdateMyStatus: true,
	GlobalTick:     true,
	CastSpell:      true,
	RoundCountdown: true,
	PlayerLeft:     true,
}

type Action struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Envelope struct {
	RoomCode string `json:"roomCode"`
	Action   Action `json:"action"`
}

// NewAction marshals payload into a tagged action. It panics only on
// unmarshalable payloads, which would be a programming error.
func NewAction(t ActionType, payload any) Action {
	if payload == nil {
		return Action{Type: t}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("protocol: marshal %s payload: %v", t, err))
	}
	return Action{Type: t, Payload: raw}
}

// Decode unmarshals the action payload into v.
func (a Action) Decode(v any) error {
	if len(a.Payload) == 0 {
		return fmt.Errorf("protocol: %s has no payload", a.Type)
	}
	return json.Unmarshal(a.Payload, v)
}

// ParseEnvelope decodes one wire frame. Frames with an action type outside
// the closed set are rejected so dispatchers can drop them without
// switching on every variant themselves.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if !knownActions[env.Action.Type] {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action.Type)
	}
	return env, nil
}

// EncodeEnvelope is the inverse of ParseEnvelope.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
