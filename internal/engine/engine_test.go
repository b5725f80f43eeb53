package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/secret-hitler-backend/internal/rules"
)

var t0 = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

// fixedRNG always draws the same index, clamped to the range asked for.
type fixedRNG int

func (f fixedRNG) IntN(n int) int {
	if int(f) >= n {
		return n - 1
	}
	return int(f)
}

type unknownMsg struct{}

func (unknownMsg) Type() MessageType { return "SOMETHING_ELSE" }
func (unknownMsg) isMessage()        {}

func apply(t *testing.T, g Game, now time.Time, rng RNG, msgs ...Message) Game {
	t.Helper()
	for _, m := range msgs {
		var err error
		g, err = Update(g, m, now, rng)
		require.NoError(t, err, "applying %s", m.Type())
	}
	return g
}

func playerID(i int) string { return fmt.Sprintf("p%d", i) }

func gameWithPlayers(t *testing.T, n int, rng RNG) Game {
	t.Helper()
	g := FreshGame(t0, rng)
	for i := 1; i <= n; i++ {
		g = apply(t, g, t0, rng, PlayerJoin{PlayerID: playerID(i)})
	}
	return g
}

// electionGame is a started game where every player has seen their role.
func electionGame(t *testing.T, n int, rng RNG) Game {
	t.Helper()
	g := gameWithPlayers(t, n, rng)
	g = apply(t, g, t0, rng, StartGame{})
	for i := 1; i <= n; i++ {
		g = apply(t, g, t0, rng, RevealRole{PlayerID: playerID(i)})
	}
	require.Equal(t, PhaseElectionStart, g.Phase.Name)
	return g
}

func castVotes(t *testing.T, g Game, now time.Time, votes ...Vote) Game {
	t.Helper()
	for i, v := range votes {
		g = apply(t, g, now, nil, VoteOnTicket{PlayerID: playerID(i + 1), Vote: v})
	}
	return g
}

func policyByID(t *testing.T, g Game, id string) Policy {
	t.Helper()
	i := g.policyIndex(id)
	require.NotEqual(t, -1, i, "policy %s", id)
	return g.Policies[i]
}

func idsAt(g Game, loc Location) []string {
	var ids []string
	for _, p := range g.Policies {
		if p.Location == loc {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func TestStartGame_NeedsFivePlayers(t *testing.T) {
	rng := NewRNG(1)
	for n := 0; n < rules.MinPlayers; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			g := gameWithPlayers(t, n, rng)
			next := apply(t, g, t0.Add(time.Second), rng, StartGame{})
			assert.False(t, next.IsStarted)
			assert.Equal(t, g, next)
		})
	}
}

func TestStartGame_TooManyPlayers(t *testing.T) {
	rng := NewRNG(1)
	n := rules.MaxPlayers + 1
	g := gameWithPlayers(t, n, rng)
	require.Len(t, g.Players, n, "joins are not capped")
	require.Equal(t, fmt.Sprintf("Player %d", n), g.Players[n-1].Name)

	next := apply(t, g, t0.Add(time.Second), rng, StartGame{})
	assert.False(t, next.IsStarted)
	assert.Equal(t, g, next)
}

func TestStartGame_AssignsRoles(t *testing.T) {
	for n := rules.MinPlayers; n <= rules.MaxPlayers; n++ {
		for seed := uint64(0); seed < 20; seed++ {
			rng := NewRNG(seed)
			g := gameWithPlayers(t, n, rng)
			started := apply(t, g, t0.Add(time.Minute), rng, StartGame{})

			require.True(t, started.IsStarted)
			require.Equal(t, Phase{Name: PhaseViewRoles, Timestamp: t0.Add(time.Minute)}, started.Phase)

			setup, _ := rules.ForPlayers(n)
			fascists, liberals, hitlers := 0, 0, 0
			for i, p := range started.Players {
				require.Equal(t, g.Players[i].ID, p.ID, "seating order is kept")
				switch p.Role {
				case RoleFascist:
					fascists++
				case RoleLiberal:
					liberals++
				default:
					t.Fatalf("player %s has no role", p.ID)
				}
				if p.ID == started.Hitler {
					hitlers++
					require.Equal(t, RoleFascist, p.Role)
				}
			}
			require.Equal(t, 1, hitlers)
			require.Equal(t, setup.Fascists+1, fascists)
			require.Equal(t, n-setup.Fascists-1, liberals)
			require.NotEqual(t, -1, started.playerIndex(started.PresidentCandidate))
		}
	}
}

func TestStartGame_AlreadyStartedIsNoop(t *testing.T) {
	rng := NewRNG(7)
	g := apply(t, gameWithPlayers(t, 6, rng), t0, rng, StartGame{})
	again := apply(t, g, t0.Add(time.Hour), rng, StartGame{})
	assert.Equal(t, g, again)
}

func TestStartGame_SameSeedSameGame(t *testing.T) {
	a := apply(t, gameWithPlayers(t, 7, NewRNG(42)), t0, NewRNG(42), StartGame{})
	b := apply(t, gameWithPlayers(t, 7, NewRNG(42)), t0, NewRNG(42), StartGame{})
	assert.Equal(t, a, b)
}

func TestPlayerJoin(t *testing.T) {
	rng := NewRNG(1)
	g := FreshGame(t0, rng)

	once := apply(t, g, t0, rng, PlayerJoin{PlayerID: "a"})
	twice := apply(t, once, t0, rng, PlayerJoin{PlayerID: "a"})
	assert.Equal(t, once.Players, twice.Players)
	require.Len(t, once.Players, 1)
	assert.Equal(t, Player{ID: "a", Name: "Player 1"}, once.Players[0])

	two := apply(t, once, t0, rng, PlayerJoin{PlayerID: "b"})
	assert.Equal(t, "Player 2", two.Players[1].Name)
	assert.Len(t, g.Players, 0, "input snapshot must not change")

	started := apply(t, gameWithPlayers(t, 5, rng), t0, rng, StartGame{})
	late := apply(t, started, t0, rng, PlayerJoin{PlayerID: "late"})
	assert.Equal(t, started, late)
}

func TestUpdatePlayerName(t *testing.T) {
	rng := NewRNG(1)
	g := gameWithPlayers(t, 2, rng)

	renamed := apply(t, g, t0, rng, UpdatePlayerName{PlayerID: "p2", Name: "Ada"})
	assert.Equal(t, "Ada", renamed.Players[1].Name)
	assert.Equal(t, "Player 2", g.Players[1].Name)

	missing := apply(t, g, t0, rng, UpdatePlayerName{PlayerID: "nobody", Name: "x"})
	assert.Equal(t, g, missing)
}

func TestRevealRole(t *testing.T) {
	rng := NewRNG(3)
	g := apply(t, gameWithPlayers(t, 5, rng), t0, rng, StartGame{})
	president := g.PresidentCandidate

	g = apply(t, g, t0, rng, RevealRole{PlayerID: "p1"})
	require.True(t, g.Players[0].RevealRole)
	require.True(t, g.Players[0].SeenRole)

	g = apply(t, g, t0, rng, RevealRole{PlayerID: "p1"})
	require.False(t, g.Players[0].RevealRole)
	require.True(t, g.Players[0].SeenRole, "seenRole never resets")
	require.Equal(t, PhaseViewRoles, g.Phase.Name)

	for i := 2; i <= 4; i++ {
		g = apply(t, g, t0, rng, RevealRole{PlayerID: playerID(i)})
	}
	require.Equal(t, PhaseViewRoles, g.Phase.Name)

	last := t0.Add(30 * time.Second)
	g = apply(t, g, last, rng, RevealRole{PlayerID: "p5"})
	assert.Equal(t, Phase{Name: PhaseElectionStart, Timestamp: last}, g.Phase)
	assert.Equal(t, president, g.PresidentCandidate, "existing candidate is kept")
}

func TestRevealRole_PicksPresidentWhenUnset(t *testing.T) {
	g := Game{
		IsStarted: true,
		Phase:     Phase{Name: PhaseViewRoles, Timestamp: t0},
		Players: []Player{
			{ID: "a", SeenRole: true},
			{ID: "b", SeenRole: true},
			{ID: "c"},
		},
	}
	next, err := Update(g, RevealRole{PlayerID: "c"}, t0, fixedRNG(1))
	require.NoError(t, err)
	assert.Equal(t, PhaseElectionStart, next.Phase.Name)
	assert.Equal(t, "b", next.PresidentCandidate)
}

func TestRevealRole_UnknownPlayer(t *testing.T) {
	rng := NewRNG(3)
	g := apply(t, gameWithPlayers(t, 5, rng), t0, rng, StartGame{})

	next, err := Update(g, RevealRole{PlayerID: "ghost"}, t0, rng)
	require.True(t, errors.Is(err, ErrPlayerNotFound))
	assert.Equal(t, g, next)
}

func TestUnknownMessageIsNoop(t *testing.T) {
	rng := NewRNG(3)
	g := gameWithPlayers(t, 5, rng)
	next, err := Update(g, unknownMsg{}, t0, rng)
	require.NoError(t, err)
	assert.Equal(t, g, next)
}

func TestTicket_JaMajorityPasses(t *testing.T) {
	rng := NewRNG(11)
	g := electionGame(t, 5, rng)
	president := g.PresidentCandidate
	deck := idsAt(g, LocationDeck)

	g = apply(t, g, t0.Add(time.Second), rng, SelectChancellorCandidate{PlayerID: "p2"})
	require.Equal(t, PhaseVoteOnTicket, g.Phase.Name)
	require.Equal(t, "p2", g.ChancellorCandidate)

	voted := t0.Add(2 * time.Second)
	g = castVotes(t, g, voted, VoteJa, VoteJa, VoteJa, VoteNein)
	require.Equal(t, PhaseVoteOnTicket, g.Phase.Name, "one vote still missing")

	g = apply(t, g, voted, rng, VoteOnTicket{PlayerID: "p5", Vote: VoteNein})
	require.Equal(t, Phase{Name: PhaseRevealTicketResults, Timestamp: voted}, g.Phase)
	require.Equal(t, VoteJa, g.Players[0].Vote, "votes stay visible during the reveal")

	early := apply(t, g, voted.Add(RevealTicketWindow-time.Millisecond), rng, ClockTick{})
	require.Equal(t, g, early)

	tick := voted.Add(RevealTicketWindow)
	g = apply(t, g, tick, rng, ClockTick{})
	assert.Equal(t, Phase{Name: PhaseLegislativeSession, Timestamp: tick}, g.Phase)
	assert.Equal(t, president, g.ElectedPresident)
	assert.Equal(t, "p2", g.ElectedChancellor)
	assert.Empty(t, g.PresidentCandidate)
	assert.Empty(t, g.ChancellorCandidate)
	assert.Equal(t, deck[:PolicyDraw], idsAt(g, LocationPresident))
	for _, p := range g.Players {
		assert.Equal(t, VoteNone, p.Vote)
	}
}

func TestTicket_TieOrMinorityFails(t *testing.T) {
	cases := []struct {
		name    string
		players int
		votes   []Vote
	}{
		{"minority", 5, []Vote{VoteJa, VoteJa, VoteNein, VoteNein, VoteNein}},
		{"tie", 6, []Vote{VoteJa, VoteJa, VoteJa, VoteNein, VoteNein, VoteNein}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng := NewRNG(5)
			g := electionGame(t, tc.players, rng)
			president := g.PresidentCandidate

			g = apply(t, g, t0, rng, SelectChancellorCandidate{PlayerID: "p3"})
			g = castVotes(t, g, t0, tc.votes...)
			require.Equal(t, PhaseRevealTicketResults, g.Phase.Name)

			tick := t0.Add(5 * time.Second)
			g = apply(t, g, tick, rng, ClockTick{})
			assert.Equal(t, Phase{Name: PhaseVoteOnTicket, Timestamp: tick}, g.Phase)
			// A failed ticket leaves the nomination in place for the revote.
			assert.Equal(t, president, g.PresidentCandidate)
			assert.Equal(t, "p3", g.ChancellorCandidate)
			assert.Empty(t, g.ElectedChancellor)
			assert.Zero(t, g.FailedVotes)
			assert.Empty(t, idsAt(g, LocationPresident))
			for _, p := range g.Players {
				assert.Equal(t, VoteNone, p.Vote)
			}
		})
	}
}

func TestClockTick_OutsideRevealIsNoop(t *testing.T) {
	rng := NewRNG(5)
	g := electionGame(t, 5, rng)
	next := apply(t, g, t0.Add(time.Hour), rng, ClockTick{})
	assert.Equal(t, g, next)
}

func TestVoteOnTicket_UnknownPlayer(t *testing.T) {
	rng := NewRNG(5)
	g := electionGame(t, 5, rng)
	next, err := Update(g, VoteOnTicket{PlayerID: "ghost", Vote: VoteJa}, t0, rng)
	require.ErrorIs(t, err, ErrPlayerNotFound)
	assert.Equal(t, g, next)
}

func TestPolicyFlow(t *testing.T) {
	rng := NewRNG(21)
	g := electionGame(t, 5, rng)
	g = apply(t, g, t0, rng, SelectChancellorCandidate{PlayerID: "p4"})
	g = castVotes(t, g, t0, VoteJa, VoteJa, VoteJa, VoteJa, VoteJa)
	g = apply(t, g, t0.Add(RevealTicketWindow), rng, ClockTick{})
	require.Equal(t, PhaseLegislativeSession, g.Phase.Name)

	hand := idsAt(g, LocationPresident)
	require.Len(t, hand, 3)

	g = apply(t, g, t0.Add(10*time.Second), rng, PresidentDiscardPolicy{PolicyID: hand[0]})
	require.Equal(t, PhaseChancellorPolicyTurn, g.Phase.Name)
	assert.Equal(t, LocationDiscard, policyByID(t, g, hand[0]).Location)
	assert.ElementsMatch(t, hand[1:], idsAt(g, LocationChancellor))
	assert.Empty(t, idsAt(g, LocationPresident))
	assert.Len(t, g.Policies, 17)

	enactedAt := t0.Add(20 * time.Second)
	g = apply(t, g, enactedAt, rng, ChancellorDiscardPolicy{PolicyID: hand[1]})
	require.Equal(t, Phase{Name: PhaseRevealNewPolicy, Timestamp: enactedAt}, g.Phase)
	assert.Equal(t, LocationDiscard, policyByID(t, g, hand[1]).Location)
	assert.Empty(t, idsAt(g, LocationChancellor))

	enacted := policyByID(t, g, hand[2])
	assert.Equal(t, Location(enacted.Type), enacted.Location)
	assert.Equal(t, enactedAt, enacted.Timestamp)
	assert.Len(t, g.Policies, 17)

	latest, ok := LatestPolicy(g)
	require.True(t, ok)
	assert.Equal(t, enacted, latest)
}

func TestDiscard_UnknownPolicy(t *testing.T) {
	rng := NewRNG(21)
	g := FreshGame(t0, rng)
	for _, msg := range []Message{PresidentDiscardPolicy{PolicyID: "99"}, ChancellorDiscardPolicy{PolicyID: "99"}} {
		next, err := Update(g, msg, t0, rng)
		require.ErrorIs(t, err, ErrPolicyNotFound)
		assert.Equal(t, g, next)
	}
}

func TestUpdate_DoesNotMutateInput(t *testing.T) {
	rng := NewRNG(9)
	g := electionGame(t, 5, rng)
	g = apply(t, g, t0, rng, SelectChancellorCandidate{PlayerID: "p2"})
	g = castVotes(t, g, t0, VoteJa, VoteJa, VoteJa, VoteJa, VoteJa)

	before := g.clone()
	_ = apply(t, g, t0.Add(time.Minute), rng, ClockTick{})
	assert.Equal(t, before, g)
}

func TestFreshGame(t *testing.T) {
	g := FreshGame(t0, NewRNG(1))
	assert.False(t, g.IsStarted)
	assert.Equal(t, Phase{Name: PhaseUnstarted, Timestamp: t0}, g.Phase)
	assert.Empty(t, g.Players)
	assert.Zero(t, g.FailedVotes)
	require.Len(t, g.Policies, rules.Policies.Fascist+rules.Policies.Liberal)

	ids := map[string]bool{}
	fascist := 0
	for _, p := range g.Policies {
		assert.Equal(t, LocationDeck, p.Location)
		ids[p.ID] = true
		if p.Type == PolicyFascist {
			fascist++
		}
	}
	assert.Len(t, ids, len(g.Policies))
	assert.Equal(t, rules.Policies.Fascist, fascist)
}
