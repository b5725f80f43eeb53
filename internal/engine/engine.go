package engine

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrPlayerNotFound = errors.New("player not found")
var ErrPolicyNotFound = errors.New("policy not found")

// RevealTicketWindow is how long ticket results stay on screen before a
// CLOCK_TICK resolves the vote.
const RevealTicketWindow = 4 * time.Second

// PolicyDraw is the number of deck policies handed to an elected president.
const PolicyDraw = 3

type PhaseName string

const (
	PhaseUnstarted              PhaseName = ""
	PhaseViewRoles              PhaseName = "VIEW_ROLES"
	PhaseElectionStart          PhaseName = "ELECTION_START"
	PhaseVoteOnTicket           PhaseName = "VOTE_ON_TICKET"
	PhaseRevealTicketResults    PhaseName = "REVEAL_TICKET_RESULTS"
	PhaseLegislativeSession     PhaseName = "LEGISLATIVE_SESSION_START"
	PhaseChancellorPolicyTurn   PhaseName = "CHANCELLOR_POLICY_TURN"
	PhaseRevealNewPolicy        PhaseName = "REVEAL_NEW_POLICY"
	PhaseFascistsWinHitler      PhaseName = "FASCISTS_WIN_WITH_HITLER_CHANCELLOR"
	PhaseFascistsWinPolicy      PhaseName = "FASCISTS_WIN_BY_POLICY"
	PhaseLiberalsWinPolicy      PhaseName = "LIBERALS_WIN_BY_POLICY"
	PhaseLiberalsWinAssassinate PhaseName = "LIBERALS_WIN_BY_HITLER_ASSASSINATION"
)

type Phase struct {
	Name      PhaseName `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

type Role string

const (
	RoleNone    Role = ""
	RoleFascist Role = "fascist"
	RoleLiberal Role = "liberal"
)

type Vote string

const (
	VoteNone Vote = ""
	VoteJa   Vote = "ja"
	VoteNein Vote = "nein"
)

type PolicyType string

const (
	PolicyFascist PolicyType = "fascist"
	PolicyLiberal PolicyType = "liberal"
)

type Location string

const (
	LocationDeck       Location = "deck"
	LocationPresident  Location = "president"
	LocationChancellor Location = "chancellor"
	LocationFascist    Location = "fascist"
	LocationLiberal    Location = "liberal"
	LocationDiscard    Location = "discard"
)

type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role,omitempty"`
	RevealRole bool   `json:"revealRole"`
	SeenRole   bool   `json:"seenRole"`
	Vote       Vote   `json:"vote,omitempty"`
}

type Policy struct {
	ID        string     `json:"id"`
	Type      PolicyType `json:"type"`
	Location  Location   `json:"location"`
	Timestamp time.Time  `json:"timestamp"`
}

// Game is one immutable snapshot. Update never mutates the Game it is
// given; slices are copied before any change.
type Game struct {
	IsStarted           bool     `json:"isStarted"`
	Phase               Phase    `json:"phase"`
	Players             []Player `json:"players"`
	Policies            []Policy `json:"policies"`
	PresidentCandidate  string   `json:"presidentCandidate,omitempty"`
	ChancellorCandidate string   `json:"chancellorCandidate,omitempty"`
	ElectedPresident    string   `json:"electedPresident,omitempty"`
	ElectedChancellor   string   `json:"electedChancellor,omitempty"`
	Hitler              string   `json:"hitler,omitempty"`
	FailedVotes         int      `json:"failedVotes"`
}

type MessageType string

const (
	MsgStartGame                 MessageType = "START_GAME"
	MsgPlayerJoin                MessageType = "PLAYER_JOIN"
	MsgUpdatePlayerName          MessageType = "UPDATE_PLAYER_NAME"
	MsgRevealRole                MessageType = "REVEAL_ROLE"
	MsgSelectChancellorCandidate MessageType = "SELECT_CHANCELLOR_CANDIDATE"
	MsgVoteOnTicket              MessageType = "VOTE_ON_TICKET"
	MsgClockTick                 MessageType = "CLOCK_TICK"
	MsgPresidentDiscardPolicy    MessageType = "PRESIDENT_DISCARD_POLICY"
	MsgChancellorDiscardPolicy   MessageType = "CHANCELLOR_DISCARD_POLICY"
)

// Message is the closed set of inputs Update understands.
type Message interface {
	Type() MessageType
	isMessage()
}

type StartGame struct{}

type PlayerJoin struct{ PlayerID string }

type UpdatePlayerName struct {
	PlayerID string
	Name     string
}

type RevealRole struct{ PlayerID string }

type SelectChancellorCandidate struct{ PlayerID string }

type VoteOnTicket struct {
	PlayerID string
	Vote     Vote
}

type ClockTick struct{}

type PresidentDiscardPolicy struct{ PolicyID string }

type ChancellorDiscardPolicy struct{ PolicyID string }

func (StartGame) Type() MessageType                 { return MsgStartGame }
func (PlayerJoin) Type() MessageType                { return MsgPlayerJoin }
func (UpdatePlayerName) Type() MessageType          { return MsgUpdatePlayerName }
func (RevealRole) Type() MessageType                { return MsgRevealRole }
func (SelectChancellorCandidate) Type() MessageType { return MsgSelectChancellorCandidate }
func (VoteOnTicket) Type() MessageType              { return MsgVoteOnTicket }
func (ClockTick) Type() MessageType                 { return MsgClockTick }
func (PresidentDiscardPolicy) Type() MessageType    { return MsgPresidentDiscardPolicy }
func (ChancellorDiscardPolicy) Type() MessageType   { return MsgChancellorDiscardPolicy }

func (StartGame) isMessage()                 {}
func (PlayerJoin) isMessage()                {}
func (UpdatePlayerName) isMessage()          {}
func (RevealRole) isMessage()                {}
func (SelectChancellorCandidate) isMessage() {}
func (VoteOnTicket) isMessage()              {}
func (ClockTick) isMessage()                 {}
func (PresidentDiscardPolicy) isMessage()    {}
func (ChancellorDiscardPolicy) isMessage()   {}

/*
	START_GAME                  -> VIEW_ROLES (needs >= 5 players, not started)
	REVEAL_ROLE (last unseen)   -> ELECTION_START, president candidate picked if unset
	SELECT_CHANCELLOR_CANDIDATE -> VOTE_ON_TICKET
	VOTE_ON_TICKET (last vote)  -> REVEAL_TICKET_RESULTS
	CLOCK_TICK (after 4s)       -> LEGISLATIVE_SESSION_START on a ja majority, else VOTE_ON_TICKET
	PRESIDENT_DISCARD_POLICY    -> CHANCELLOR_POLICY_TURN
	CHANCELLOR_DISCARD_POLICY   -> REVEAL_NEW_POLICY
*/

// Update applies msg to g and returns the next snapshot. Invalid or
// premature actions are no-ops. The only errors are lookups of ids that
// the caller was expected to have validated; g is returned unchanged with
// them.
func Update(g Game, msg Message, now time.Time, rng RNG) (Game, error) {
	switch m := msg.(type) {
	case StartGame:
		if !canStart(g) {
			return g, nil
		}
		return startGame(g, now, rng), nil

	case PlayerJoin:
		if g.IsStarted || g.playerIndex(m.PlayerID) != -1 {
			return g, nil
		}
		next := g.clone()
		next.Players = append(next.Players, Player{
			ID:   m.PlayerID,
			Name: fmt.Sprintf("Player %d", len(g.Players)+1),
		})
		return next, nil

	case UpdatePlayerName:
		i := g.playerIndex(m.PlayerID)
		if i == -1 {
			return g, nil
		}
		next := g.clone()
		next.Players[i].Name = m.Name
		return next, nil

	case RevealRole:
		i := g.playerIndex(m.PlayerID)
		if i == -1 {
			return g, fmt.Errorf("reveal role %q: %w", m.PlayerID, ErrPlayerNotFound)
		}
		next := g.clone()
		p := &next.Players[i]
		p.RevealRole = !p.RevealRole
		p.SeenRole = true

		if next.Phase.Name == PhaseViewRoles && next.allSeen() {
			next.Phase = Phase{Name: PhaseElectionStart, Timestamp: now}
			if next.PresidentCandidate == "" {
				next.PresidentCandidate = randomPlayer(next.Players, rng).ID
			}
		}
		return next, nil

	case SelectChancellorCandidate:
		next := g.clone()
		next.ChancellorCandidate = m.PlayerID
		next.Phase = Phase{Name: PhaseVoteOnTicket, Timestamp: now}
		return next, nil

	case VoteOnTicket:
		i := g.playerIndex(m.PlayerID)
		if i == -1 {
			return g, fmt.Errorf("vote on ticket %q: %w", m.PlayerID, ErrPlayerNotFound)
		}
		next := g.clone()
		next.Players[i].Vote = m.Vote
		if next.allVoted() {
			next.Phase = Phase{Name: PhaseRevealTicketResults, Timestamp: now}
		}
		return next, nil

	case ClockTick:
		if g.Phase.Name != PhaseRevealTicketResults || now.Sub(g.Phase.Timestamp) < RevealTicketWindow {
			return g, nil
		}
		return resolveTicket(g, now), nil

	case PresidentDiscardPolicy:
		i := g.policyIndex(m.PolicyID)
		if i == -1 {
			return g, fmt.Errorf("president discard %q: %w", m.PolicyID, ErrPolicyNotFound)
		}
		next := g.clone()
		next.Policies = discard(next.Policies, i, func(p Policy) Policy {
			if p.Location == LocationPresident {
				p.Location = LocationChancellor
			}
			return p
		})
		next.Phase = Phase{Name: PhaseChancellorPolicyTurn, Timestamp: now}
		return next, nil

	case ChancellorDiscardPolicy:
		i := g.policyIndex(m.PolicyID)
		if i == -1 {
			return g, fmt.Errorf("chancellor discard %q: %w", m.PolicyID, ErrPolicyNotFound)
		}
		next := g.clone()
		next.Policies = discard(next.Policies, i, func(p Policy) Policy {
			if p.Location == LocationChancellor {
				p.Location = Location(p.Type)
				p.Timestamp = now
			}
			return p
		})
		next.Phase = Phase{Name: PhaseRevealNewPolicy, Timestamp: now}
		return next, nil

	default:
		return g, nil
	}
}

func resolveTicket(g Game, now time.Time) Game {
	next := g.clone()

	if ticketPassed(g.Players) {
		drawn := 0
		for i := range next.Policies {
			if drawn == PolicyDraw {
				break
			}
			if next.Policies[i].Location == LocationDeck {
				next.Policies[i].Location = LocationPresident
				drawn++
			}
		}
		next.ElectedPresident = g.PresidentCandidate
		next.ElectedChancellor = g.ChancellorCandidate
		next.PresidentCandidate = ""
		next.ChancellorCandidate = ""
		next.Phase = Phase{Name: PhaseLegislativeSession, Timestamp: now}
	} else {
		// Candidates stay nominated for the revote.
		next.Phase = Phase{Name: PhaseVoteOnTicket, Timestamp: now}
	}

	for i := range next.Players {
		next.Players[i].Vote = VoteNone
	}
	return next
}

// ticketPassed reports a strict ja majority; a tie fails.
func ticketPassed(players []Player) bool {
	jas := 0
	for _, p := range players {
		if p.Vote == VoteJa {
			jas++
		}
	}
	return 2*jas > len(players)
}

// discard moves policies[i] to the discard pile (appended last) and maps
// every other policy through move.
func discard(policies []Policy, i int, move func(Policy) Policy) []Policy {
	discarded, rest := Pluck(policies, i)
	for j := range rest {
		rest[j] = move(rest[j])
	}
	discarded.Location = LocationDiscard
	return append(rest, discarded)
}

func (g Game) clone() Game {
	next := g
	next.Players = slices.Clone(g.Players)
	next.Policies = slices.Clone(g.Policies)
	return next
}

func (g Game) playerIndex(id string) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (g Game) policyIndex(id string) int {
	for i, p := range g.Policies {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (g Game) allSeen() bool {
	for _, p := range g.Players {
		if !p.SeenRole {
			return false
		}
	}
	return true
}

func (g Game) allVoted() bool {
	for _, p := range g.Players {
		if p.Vote == VoteNone {
			return false
		}
	}
	return true
}
