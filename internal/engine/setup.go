package engine

import (
	"strconv"
	"time"

	"github.com/DoyleJ11/secret-hitler-backend/internal/rules"
)

// FreshGame returns an unstarted game with a shuffled deck and no players.
func FreshGame(now time.Time, rng RNG) Game {
	return Game{
		Phase:    Phase{Name: PhaseUnstarted, Timestamp: now},
		Players:  []Player{},
		Policies: Shuffle(createPolicies(rules.Policies, now), rng),
	}
}

func createPolicies(deck rules.Deck, now time.Time) []Policy {
	cards := make([]Policy, 0, deck.Fascist+deck.Liberal)
	id := 0
	for i := 0; i < deck.Fascist; i++ {
		id++
		cards = append(cards, Policy{ID: strconv.Itoa(id), Type: PolicyFascist, Location: LocationDeck, Timestamp: now})
	}
	for i := 0; i < deck.Liberal; i++ {
		id++
		cards = append(cards, Policy{ID: strconv.Itoa(id), Type: PolicyLiberal, Location: LocationDeck, Timestamp: now})
	}
	return cards
}

func canStart(g Game) bool {
	if g.IsStarted || len(g.Players) < rules.MinPlayers {
		return false
	}
	_, ok := rules.ForPlayers(len(g.Players))
	return ok
}

// startGame deals roles: one Hitler, the table's number of extra fascists,
// liberals for everyone else. Seating order is left untouched. Callers
// check canStart first.
func startGame(g Game, now time.Time, rng RNG) Game {
	setup, _ := rules.ForPlayers(len(g.Players))

	unmatched := make([]int, len(g.Players))
	for i := range unmatched {
		unmatched[i] = i
	}

	next := g.clone()

	var hitler int
	hitler, unmatched = PluckRandom(unmatched, rng)
	next.Players[hitler].Role = RoleFascist
	next.Hitler = next.Players[hitler].ID

	var fascist int
	for i := 0; i < setup.Fascists; i++ {
		fascist, unmatched = PluckRandom(unmatched, rng)
		next.Players[fascist].Role = RoleFascist
	}
	for _, i := range unmatched {
		next.Players[i].Role = RoleLiberal
	}

	next.IsStarted = true
	next.Phase = Phase{Name: PhaseViewRoles, Timestamp: now}
	next.PresidentCandidate = randomPlayer(g.Players, rng).ID
	return next
}
