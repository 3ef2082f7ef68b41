package blackjack

import "strings"

// Hand is the ordered cards held by a player or the dealer.
type Hand []Card

// HandTotal sums card values with Aces as 11, then demotes Aces to 1 one at
// a time while the total is over 21.
func HandTotal(cards []Card) int {
	total, _ := totalAndSoftAces(cards)
	return total
}

func totalAndSoftAces(cards []Card) (int, int) {
	total := 0
	aces := 0
	for _, c := range cards {
		total += c.Value()
		if c.Rank == Ace {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total, aces
}

func (h Hand) Total() int {
	return HandTotal(h)
}

// IsSoft reports whether an Ace is still counted as 11.
func (h Hand) IsSoft() bool {
	_, soft := totalAndSoftAces(h)
	return soft > 0
}

func (h Hand) IsBust() bool {
	return h.Total() > 21
}

// IsBlackjack reports a natural: 21 with the first two cards.
func (h Hand) IsBlackjack() bool {
	return len(h) == 2 && h.Total() == 21
}

func (h Hand) String() string {
	if len(h) == 0 {
		return "None"
	}
	s := make([]string, 0, len(h))
	for _, c := range h {
		s = append(s, "`"+c.String()+"`")
	}
	return strings.Join(s, " ")
}

// UpdateRunningCount applies the Hi-Lo delta for one card: +1 for 2–6,
// -1 for tens, faces and Aces, 0 for 7–9.
func UpdateRunningCount(count int, c Card) int {
	switch c.Rank {
	case Two, Three, Four, Five, Six:
		return count + 1
	case Ten, Jack, Queen, King, Ace:
		return count - 1
	}
	return count
}
