package blackjack

import (
	"errors"
	"math/rand"
)

const (
	// DecksPerShoe is the number of standard decks in a shoe.
	DecksPerShoe = 8
	// ShoeSize is the full capacity of a freshly built shoe.
	ShoeSize = DecksPerShoe * 52
)

// ErrEmptyShoe is returned when drawing from a shoe with no cards left.
var ErrEmptyShoe = errors.New("blackjack: draw from empty shoe")

// Shoe is the multi-deck pool cards are dealt from. Cards are drawn from the
// front and never returned until the shoe is rebuilt.
type Shoe struct {
	cards []Card
	rng   *rand.Rand
}

// BuildShoe returns a freshly shuffled shoe of DecksPerShoe decks.
func BuildShoe(rng *rand.Rand) *Shoe {
	s := &Shoe{rng: rng}
	s.rebuild()
	return s
}

func (s *Shoe) rebuild() {
	cards := make([]Card, 0, ShoeSize)
	for i := 0; i < DecksPerShoe; i++ {
		cards = append(cards, NewDeck()...)
	}
	s.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	s.cards = cards
}

// Remaining returns the number of undealt cards.
func (s *Shoe) Remaining() int {
	return len(s.cards)
}

// NeedsReshuffle reports whether the shoe is at or below half capacity.
func (s *Shoe) NeedsReshuffle() bool {
	return len(s.cards) == 0 || len(s.cards) <= ShoeSize/2
}

// Draw removes and returns the front card.
func (s *Shoe) Draw() (Card, error) {
	if len(s.cards) == 0 {
		return Card{}, ErrEmptyShoe
	}
	c := s.cards[0]
	s.cards = s.cards[1:]
	return c, nil
}

// DecksRemaining is the number of undealt decks, rounded up so a partially
// used deck still counts as one.
func (s *Shoe) DecksRemaining() int {
	return (len(s.cards) + 51) / 52
}
