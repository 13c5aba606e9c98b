package state

import "fmt"

// Card is the wire-format card value (0..9). The numbering is externally
// observable (guesses, event payloads, discard piles) and must not change.
type Card uint8

const (
	CardSpy        Card = 0
	CardGuard      Card = 1
	CardPriest     Card = 2
	CardBaron      Card = 3
	CardHandmaid   Card = 4
	CardPrince     Card = 5
	CardChancellor Card = 6
	CardKing       Card = 7
	CardCountess   Card = 8
	CardPrincess   Card = 9
)

// Traits describes a card's static play requirements. Effects dispatch off this
// table, not off a type hierarchy, so the whole rule surface is auditable data.
type Traits struct {
	Name        string
	NeedsTarget bool
	AllowSelf   bool
	NeedsGuess  bool
}

var cardTraits = [10]Traits{
	CardSpy:        {Name: "Spy"},
	CardGuard:      {Name: "Guard", NeedsTarget: true, NeedsGuess: true},
	CardPriest:     {Name: "Priest", NeedsTarget: true},
	CardBaron:      {Name: "Baron", NeedsTarget: true},
	CardHandmaid:   {Name: "Handmaid"},
	CardPrince:     {Name: "Prince", NeedsTarget: true, AllowSelf: true},
	CardChancellor: {Name: "Chancellor"},
	CardKing:       {Name: "King", NeedsTarget: true},
	CardCountess:   {Name: "Countess"},
	CardPrincess:   {Name: "Princess"},
}

func (c Card) Valid() bool {
	return c <= CardPrincess
}

func (c Card) Traits() Traits {
	if !c.Valid() {
		return Traits{Name: "unknown"}
	}
	return cardTraits[c]
}

func (c Card) String() string {
	return c.Traits().Name
}

// Deck editions. Both use the same 0..9 value semantics; the classic deck just
// omits Spy and Chancellor and carries one fewer Guard.
const (
	EditionDeluxe21  = "deluxe21"
	EditionClassic16 = "classic16"
)

var editionCounts = map[string][10]uint8{
	// 0:2 1:6 2:2 3:2 4:2 5:2 6:2 7:1 8:1 9:1 = 21 cards
	EditionDeluxe21: {2, 6, 2, 2, 2, 2, 2, 1, 1, 1},
	// 1:5 2:2 3:2 4:2 5:2 7:1 8:1 9:1 = 16 cards
	EditionClassic16: {0, 5, 2, 2, 2, 2, 0, 1, 1, 1},
}

func ValidEdition(edition string) bool {
	_, ok := editionCounts[edition]
	return ok
}

// CanonicalComposition returns the full multiset of card values for an edition,
// ascending by value.
func CanonicalComposition(edition string) ([]Card, error) {
	counts, ok := editionCounts[edition]
	if !ok {
		return nil, fmt.Errorf("unknown edition %q", edition)
	}
	out := []Card{}
	for v := 0; v < len(counts); v++ {
		for i := uint8(0); i < counts[v]; i++ {
			out = append(out, Card(v))
		}
	}
	return out, nil
}

// DeckSize returns the number of cards in an edition's deck.
func DeckSize(edition string) int {
	counts, ok := editionCounts[edition]
	if !ok {
		return 0
	}
	n := 0
	for _, c := range counts {
		n += int(c)
	}
	return n
}
