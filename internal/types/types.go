package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DoyleJ11/secret-hitler-backend/internal/engine"
)

var ErrUnknownType = errors.New("unknown message type")
var ErrMissingField = errors.New("missing field")
var ErrBadVote = errors.New("vote must be ja or nein")

type ClientMessage struct {
	Type string      `json:"type"`
	Body MessageBody `json:"body"`
}

type MessageBody struct {
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name,omitempty"`
	Vote     string `json:"vote,omitempty"`
	PolicyID string `json:"policyId,omitempty"`
}

const (
	TypeStateSnapshot = "StateSnapshot"
	TypeWelcome       = "Welcome"
	TypeError         = "Error"
)

type ServerMessage struct {
	Type     string       `json:"type"` // "StateSnapshot" | "Welcome" | "Error"
	Version  int          `json:"version,omitempty"`
	PlayerID string       `json:"playerId,omitempty"`
	State    *engine.Game `json:"state,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// ToEngineMessage validates the shape of a client message. It says nothing
// about whether the move is legal right now; that is the engine's call.
func ToEngineMessage(m ClientMessage) (engine.Message, error) {
	switch engine.MessageType(m.Type) {
	case engine.MsgStartGame:
		return engine.StartGame{}, nil
	case engine.MsgClockTick:
		return engine.ClockTick{}, nil
	case engine.MsgPlayerJoin:
		if m.Body.PlayerID == "" {
			return nil, missing(m.Type, "playerId")
		}
		return engine.PlayerJoin{PlayerID: m.Body.PlayerID}, nil
	case engine.MsgUpdatePlayerName:
		if m.Body.PlayerID == "" {
			return nil, missing(m.Type, "playerId")
		}
		return engine.UpdatePlayerName{PlayerID: m.Body.PlayerID, Name: strings.TrimSpace(m.Body.Name)}, nil
	case engine.MsgRevealRole:
		if m.Body.PlayerID == "" {
			return nil, missing(m.Type, "playerId")
		}
		return engine.RevealRole{PlayerID: m.Body.PlayerID}, nil
	case engine.MsgSelectChancellorCandidate:
		if m.Body.PlayerID == "" {
			return nil, missing(m.Type, "playerId")
		}
		return engine.SelectChancellorCandidate{PlayerID: m.Body.PlayerID}, nil
	case engine.MsgVoteOnTicket:
		if m.Body.PlayerID == "" {
			return nil, missing(m.Type, "playerId")
		}
		vote, err := ParseVote(m.Body.Vote)
		if err != nil {
			return nil, err
		}
		return engine.VoteOnTicket{PlayerID: m.Body.PlayerID, Vote: vote}, nil
	case engine.MsgPresidentDiscardPolicy:
		if m.Body.PolicyID == "" {
			return nil, missing(m.Type, "policyId")
		}
		return engine.PresidentDiscardPolicy{PolicyID: m.Body.PolicyID}, nil
	case engine.MsgChancellorDiscardPolicy:
		if m.Body.PolicyID == "" {
			return nil, missing(m.Type, "policyId")
		}
		return engine.ChancellorDiscardPolicy{PolicyID: m.Body.PolicyID}, nil
	default:
		return nil, fmt.Errorf("%q: %w", m.Type, ErrUnknownType)
	}
}

func ParseVote(v string) (engine.Vote, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "ja":
		return engine.VoteJa, nil
	case "nein":
		return engine.VoteNein, nil
	default:
		return engine.VoteNone, fmt.Errorf("%q: %w", v, ErrBadVote)
	}
}

func missing(msgType, field string) error {
	return fmt.Errorf("%s: %s: %w", msgType, field, ErrMissingField)
}
