package rules

const (
	MinPlayers = 5
	MaxPlayers = 10
)

// Deck is the policy deck composition.
type Deck struct {
	Fascist int
	Liberal int
}

type Setup struct {
	// Fascists excludes Hitler.
	Fascists int
	Deck     Deck
}

var standardDeck = Deck{Fascist: 11, Liberal: 6}

var PlayerSetup = map[int]Setup{
	5:  {Fascists: 1, Deck: standardDeck},
	6:  {Fascists: 1, Deck: standardDeck},
	7:  {Fascists: 2, Deck: standardDeck},
	8:  {Fascists: 2, Deck: standardDeck},
	9:  {Fascists: 3, Deck: standardDeck},
	10: {Fascists: 3, Deck: standardDeck},
}

// Policies is the deck every fresh game is dealt, before any players join.
var Policies = standardDeck

// ForPlayers looks up the setup for a player count. ok is false for
// unsupported counts.
func ForPlayers(n int) (Setup, bool) {
	s, ok := PlayerSetup[n]
	return s, ok
}
