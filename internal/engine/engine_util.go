package engine

import (
	"fmt"
	"math/rand/v2"
)

// RNG is the single source of randomness for role assignment, the first
// president pick and deck shuffling. *rand.Rand satisfies it.
type RNG interface {
	IntN(n int) int
}

// NewRNG returns a deterministic generator for the given seed.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Pluck returns items[index] and a new slice holding everything else in
// order. It panics if index is out of range.
func Pluck[T any](items []T, index int) (T, []T) {
	if index < 0 || index >= len(items) {
		panic(fmt.Sprintf("pluck: index %d out of range [0:%d]", index, len(items)))
	}
	rest := make([]T, 0, len(items)-1)
	rest = append(rest, items[:index]...)
	rest = append(rest, items[index+1:]...)
	return items[index], rest
}

func PluckRandom[T any](items []T, rng RNG) (T, []T) {
	return Pluck(items, rng.IntN(len(items)))
}

// Shuffle builds a permutation by repeatedly plucking a random remaining
// element. items is not modified.
func Shuffle[T any](items []T, rng RNG) []T {
	out := make([]T, 0, len(items))
	rest := items
	var item T
	for len(rest) > 0 {
		item, rest = PluckRandom(rest, rng)
		out = append(out, item)
	}
	return out
}

func randomPlayer(players []Player, rng RNG) Player {
	return players[rng.IntN(len(players))]
}

// LatestPolicy returns the most recently enacted policy.
func LatestPolicy(g Game) (Policy, bool) {
	var latest Policy
	found := false
	for _, p := range g.Policies {
		if p.Location != LocationFascist && p.Location != LocationLiberal {
			continue
		}
		if !found || p.Timestamp.After(latest.Timestamp) {
			latest = p
			found = true
		}
	}
	return latest, found
}

func IsOver(g Game) bool {
	return FascistsWon(g) || LiberalsWon(g)
}

func FascistsWon(g Game) bool {
	switch g.Phase.Name {
	case PhaseFascistsWinHitler, PhaseFascistsWinPolicy:
		return true
	}
	return false
}

func LiberalsWon(g Game) bool {
	switch g.Phase.Name {
	case PhaseLiberalsWinPolicy, PhaseLiberalsWinAssassinate:
		return true
	}
	return false
}

// ExplainVictory is empty until the game is over.
func ExplainVictory(g Game) string {
	switch g.Phase.Name {
	case PhaseFascistsWinHitler:
		return "The Fascists won by electing Hitler to Chancellor"
	case PhaseFascistsWinPolicy:
		return "The Fascists won by getting 6 Fascist policies enacted"
	case PhaseLiberalsWinPolicy:
		return "The Liberals won by getting 5 Liberal policies enacted"
	case PhaseLiberalsWinAssassinate:
		return "The Liberals won by assassinating Hitler"
	}
	return ""
}

// PlayerRight returns the player seated after the first match, wrapping to
// the front. With no match it returns the first player. ok is false only
// for an empty roster.
func PlayerRight(players []Player, match func(Player) bool) (Player, bool) {
	if len(players) == 0 {
		return Player{}, false
	}
	for i, p := range players {
		if match(p) {
			return players[(i+1)%len(players)], true
		}
	}
	return players[0], true
}
