package blackjack

import "fmt"

// Suit is one of the four French suits.
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Rank is the face of a card ("2".."10", "J", "Q", "K", "A").
type Rank string

const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
	Ace   Rank = "A"
)

var (
	suits = []Suit{Spades, Hearts, Diamonds, Clubs}
	ranks = []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}
)

// Card represents a playing card. Cards carry no identity beyond rank and
// suit, so the copies from different decks of a shoe compare equal.
type Card struct {
	Rank Rank
	Suit Suit
}

func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// Value is the blackjack value of the card with an Ace counted as 11.
func (c Card) Value() int {
	switch c.Rank {
	case Ace:
		return 11
	case King, Queen, Jack, Ten:
		return 10
	case Two:
		return 2
	case Three:
		return 3
	case Four:
		return 4
	case Five:
		return 5
	case Six:
		return 6
	case Seven:
		return 7
	case Eight:
		return 8
	case Nine:
		return 9
	}
	return 0
}

// NewDeck creates a standard 52-card deck in suit/rank order.
func NewDeck() []Card {
	deck := make([]Card, 0, len(suits)*len(ranks))
	for _, s := range suits {
		for _, r := range ranks {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}
