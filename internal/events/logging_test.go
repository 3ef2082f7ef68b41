package events

import (
	"testing"
	"time"

	"croupier/internal/blackjack"

	"github.com/stretchr/testify/assert"
)

func TestRoundEmbed(t *testing.T) {
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	sum := RoundSummary{
		GuildID:   "g1",
		ChannelID: "c1",
		RoundID:   "r-1",
		Dealer: blackjack.Hand{
			{Rank: blackjack.Ten, Suit: blackjack.Spades},
			{Rank: blackjack.Eight, Suit: blackjack.Hearts},
		},
		Results: []blackjack.Result{
			{ID: "u1", Total: 20, Wager: 10, Outcome: blackjack.Win, Delta: 10},
			{ID: "u2", Total: 23, Wager: 25, Outcome: blackjack.Loss, Delta: -25},
		},
		Names:        map[string]string{"u1": "alice"},
		Remaining:    300,
		RunningCount: -2,
		At:           at,
	}

	assert.Equal(t, 15, sum.HouseNet())

	e := RoundEmbed(sum)
	assert.Equal(t, 0x2ECC71, e.Color)
	assert.Equal(t, at.Format(time.RFC3339), e.Timestamp)
	assert.Contains(t, e.Description, "alice: **WIN** +10 (20) bet $10")
	assert.Contains(t, e.Description, "<@u2>: **LOSS** -25 (23) bet $25")
	assert.Equal(t, "(18) `10♠` `8♥`", e.Fields[0].Value)
	assert.Equal(t, "+15", e.Fields[1].Value)
	assert.Equal(t, "300 cards | running count -2", e.Fields[2].Value)
}

func TestRoundEmbedHouseDown(t *testing.T) {
	sum := RoundSummary{
		Results:    []blackjack.Result{{ID: "u1", Outcome: blackjack.Win, Delta: 50}},
		Reshuffled: true,
	}
	e := RoundEmbed(sum)
	assert.Equal(t, 0xE74C3C, e.Color)
	assert.Contains(t, e.Fields[2].Value, "reshuffled")
}

func TestOnRoundSettledWithoutChannel(t *testing.T) {
	var nilLogger *Logger
	assert.NotPanics(t, func() { nilLogger.OnRoundSettled(RoundSummary{}) })
	assert.NotPanics(t, func() { (&Logger{}).OnRoundSettled(RoundSummary{}) })
}
