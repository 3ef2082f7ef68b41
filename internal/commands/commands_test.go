package commands

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"croupier/internal/blackjack"
	"croupier/internal/database"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)

	prevDB, prevOwner := DB, OwnerID
	DB, OwnerID = db, "owner"
	t.Cleanup(func() {
		DB, OwnerID = prevDB, prevOwner
		db.Close()
	})
	return db
}

func TestHasPermission(t *testing.T) {
	db := withDB(t)

	assert.True(t, hasPermission("owner", "bj"))
	assert.True(t, hasPermission("owner", "unmapped"))

	assert.False(t, hasPermission("u1", "bj"))
	require.NoError(t, db.AddPermission("u1", "games.bj"))
	assert.True(t, hasPermission("u1", "bj"))
	assert.False(t, hasPermission("u1", "games.bj.shoe"))
	assert.False(t, hasPermission("u1", "unmapped"))

	DB = nil
	assert.False(t, hasPermission("u1", "bj"))
}

func TestResolveNodes(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"games.bj", []string{"games.bj"}},
		{" Games.BJ ", []string{"games.bj"}},
		{"games", []string{"games.bj", "games.bj.shoe"}},
		{"admin", []string{"admin.money", "admin.perm"}},
		{"voice", []string{"voice.sfx"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveNodes(tt.input))
		})
	}

	assert.Empty(t, resolveNodes("music"))
	assert.Empty(t, resolveNodes(""))
}

func TestEveryCommandHasANode(t *testing.T) {
	for _, cmd := range AllCommands() {
		_, ok := CommandPermissionMap[cmd.Name]
		assert.True(t, ok, cmd.Name)
	}
}

func TestParsePlayAgain(t *testing.T) {
	assert.Equal(t, 25, parsePlayAgain("game_bj_play_again:25"))
	assert.Equal(t, 0, parsePlayAgain("game_bj_play_again"))
	assert.Equal(t, 0, parsePlayAgain("game_bj_play_again:abc"))
	assert.Equal(t, 0, parsePlayAgain("game_bj_play_again:-5"))
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "It's not your turn.", errorText(blackjack.ErrNotYourTurn))
	assert.Equal(t, "Lobby is full.", errorText(blackjack.ErrTableFull))
}

func card(r blackjack.Rank, s blackjack.Suit) blackjack.Card {
	return blackjack.Card{Rank: r, Suit: s}
}

func TestOutcomeText(t *testing.T) {
	tests := []struct {
		name   string
		result blackjack.Result
		dealer int
		want   string
	}{
		{"natural", blackjack.Result{Outcome: blackjack.Win, Blackjack: true, Total: 21, Wager: 10, Delta: 10}, 20, "Blackjack! 🃏 (+10)"},
		{"dealer bust", blackjack.Result{Outcome: blackjack.Win, Total: 15}, 24, "Won (Dealer Bust) 🎉"},
		{"win", blackjack.Result{Outcome: blackjack.Win, Total: 20, Wager: 5, Delta: 5}, 18, "Won 🎉 (+5)"},
		{"push", blackjack.Result{Outcome: blackjack.Push, Total: 18, Wager: 5}, 18, "Push 🤝 (+0)"},
		{"bust", blackjack.Result{Outcome: blackjack.Loss, Total: 25, Wager: 5, Delta: -5}, 17, "Busted ❌ (-5)"},
		{"lost", blackjack.Result{Outcome: blackjack.Loss, Total: 16}, 17, "Lost ❌"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeText(tt.result, tt.dealer))
		})
	}
}

func TestToRoundResults(t *testing.T) {
	results := []blackjack.Result{
		{ID: "u1", Total: 20, Wager: 10, Outcome: blackjack.Win, Delta: 10},
		{ID: "u2", Total: 22, Wager: 10, Outcome: blackjack.Loss, Delta: -10},
	}
	got := toRoundResults(results, 19)
	assert.Equal(t, []database.RoundResult{
		{UserID: "u1", Wager: 10, Outcome: "WIN", Delta: 10, PlayerTotal: 20, DealerTotal: 19},
		{UserID: "u2", Wager: 10, Outcome: "LOSS", Delta: -10, PlayerTotal: 22, DealerTotal: 19},
	}, got)
}

func TestSettlementReachesBalances(t *testing.T) {
	db := withDB(t)
	require.NoError(t, db.SetBalance("g1", "u1", 100))
	require.NoError(t, db.SetBalance("g1", "u2", 100))

	short, err := dbEscrow{}.Reserve("g1", []blackjack.Seat{{ID: "u1", Wager: 10}, {ID: "u2", Wager: 30}})
	require.NoError(t, err)
	require.Empty(t, short)

	results := []blackjack.Result{
		{ID: "u1", Total: 20, Wager: 10, Outcome: blackjack.Win, Delta: 10},
		{ID: "u2", Total: 22, Wager: 30, Outcome: blackjack.Loss, Delta: -30},
	}
	require.NoError(t, db.SettleBlackjackRound("g1", "r1", time.Now(), toRoundResults(results, 19)))

	bal, err := db.GetBalance("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 110, bal)
	bal, err = db.GetBalance("g1", "u2")
	require.NoError(t, err)
	assert.Equal(t, 70, bal)
}

func TestResultsEmbed(t *testing.T) {
	dealer := blackjack.Hand{card(blackjack.Ten, blackjack.Spades), card(blackjack.Seven, blackjack.Hearts)}
	results := []blackjack.Result{
		{ID: "u1", Hand: blackjack.Hand{card(blackjack.Ten, blackjack.Clubs), card(blackjack.Nine, blackjack.Clubs)}, Total: 19, Wager: 10, Outcome: blackjack.Win, Delta: 10},
	}

	e := resultsEmbed(dealer, results, map[string]string{"u1": "alice"})
	assert.Equal(t, "**Dealer Finished!**\n- alice: Won 🎉 (+10)", e.Description)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "(17) `10♠` `7♥`", e.Fields[0].Value)
	assert.Equal(t, "alice's Hand (19)", e.Fields[1].Name)
	assert.Equal(t, "`10♣` `9♣`", e.Fields[1].Value)
}

func newTestGame(t *testing.T) *blackjack.Game {
	t.Helper()
	return blackjack.NewGame("g1", blackjack.NewTable(rand.New(rand.NewSource(7))), blackjack.GameConfig{
		MaxPlayers: 4,
		Clock:      quartz.NewMock(t),
	})
}

func TestLobbyAndTableEmbeds(t *testing.T) {
	g := newTestGame(t)
	_, err := g.Open(&blackjack.Player{UserID: "u1", Username: "alice", Bet: 20})
	require.NoError(t, err)
	_, err = g.Join(&blackjack.Player{UserID: "u2", Username: "bob", Bet: 20})
	require.NoError(t, err)

	lobby := lobbyEmbed(g)
	assert.Contains(t, lobby.Description, "**Players (2/4):**\n- alice 👑\n- bob")
	assert.Equal(t, "$20", lobby.Fields[0].Value)

	require.NoError(t, g.Start("u1"))
	table := tableEmbed(g)
	require.Len(t, table.Fields, 3)
	assert.Equal(t, "Dealer's Hand", table.Fields[0].Name)
	assert.Contains(t, table.Fields[0].Value, "`??`")
	assert.Contains(t, table.Fields[1].Name, "alice's Hand")
	assert.Contains(t, table.Fields[2].Name, "bob's Hand")
	if p := g.Current(); p != nil {
		assert.Contains(t, table.Description, "<@"+p.UserID+">")
	}
}

func TestSoundChoices(t *testing.T) {
	names := []string{"airhorn", "Shuffle", "shuffle2", "tada"}
	got := soundChoices(names, "SHUF")
	require.Len(t, got, 2)
	assert.Equal(t, "Shuffle", got[0].Name)
	assert.Equal(t, "shuffle2", got[1].Value)

	many := make([]string, 40)
	for i := range many {
		many[i] = fmt.Sprintf("clip%02d", i)
	}
	assert.Len(t, soundChoices(many, ""), maxChoices)
}

func TestInfoEmbeds(t *testing.T) {
	assert.Equal(t, "Nobody has any money yet.", leaderboardEmbed(nil).Description)
	assert.Equal(t, "**1.** <@u1> $50\n**2.** <@u2> $5",
		leaderboardEmbed([]database.Holding{{UserID: "u1", Balance: 50}, {UserID: "u2", Balance: 5}}).Description)

	st := statsEmbed("alice", database.BlackjackStats{Wins: 3, Losses: 1, Pushes: 0, Net: 20})
	assert.Equal(t, "4", st.Fields[0].Value)
	assert.Equal(t, "75.0%", st.Fields[2].Value)
	assert.Equal(t, "+20", st.Fields[3].Value)
	assert.Equal(t, "n/a", statsEmbed("bob", database.BlackjackStats{}).Fields[2].Value)

	shoe := shoeEmbed(208, -3, -1, 2)
	assert.Equal(t, "208 / 416", shoe.Fields[0].Value)
	assert.Equal(t, "4.0", shoe.Fields[1].Value)
	assert.Equal(t, "-3", shoe.Fields[2].Value)
}

func TestPermMessage(t *testing.T) {
	assert.Equal(t, "✅ Granted `games.bj` to **alice**.", permMessage(grant, []string{"games.bj"}, "alice"))
	assert.Equal(t, "🗑️ Revoked **2** permission(s) from **bob**.", permMessage(revoke, []string{"games.bj", "games.bj.shoe"}, "bob"))
}

func TestPermChangeAppliesToDB(t *testing.T) {
	withDB(t)
	for _, node := range resolveNodes("games") {
		require.NoError(t, grant.apply("u1", node))
	}
	assert.True(t, hasPermission("u1", "bj"))
	assert.True(t, hasPermission("u1", "games.bj.shoe"))

	require.NoError(t, revoke.apply("u1", "games.bj"))
	assert.False(t, hasPermission("u1", "bj"))
}

func TestEscrowTakesWagersAtStart(t *testing.T) {
	db := withDB(t)
	require.NoError(t, db.SetBalance("g1", "u1", 50))
	require.NoError(t, db.SetBalance("g1", "u2", 50))

	g := blackjack.NewGame("g1", blackjack.NewTable(rand.New(rand.NewSource(7))), blackjack.GameConfig{
		MaxPlayers: 4,
		Clock:      quartz.NewMock(t),
		Escrow:     dbEscrow{},
	})
	_, err := g.Open(&blackjack.Player{UserID: "u1", Username: "alice", Bet: 20})
	require.NoError(t, err)
	_, err = g.Join(&blackjack.Player{UserID: "u2", Username: "bob", Bet: 20})
	require.NoError(t, err)

	// bob moves the money away after joining.
	require.NoError(t, db.Transfer("g1", "u2", "alt", 50))
	require.NoError(t, g.Start("u1"))

	bal, err := db.GetBalance("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, bal)

	g.Lock()
	defer g.Unlock()
	require.Len(t, g.Players, 1)
	assert.Equal(t, "u1", g.Players[0].UserID)
	assert.Equal(t, "Unseated, could not cover the bet: bob", tableEmbed(g).Footer.Text)
}

func TestEscrowRefund(t *testing.T) {
	db := withDB(t)
	require.NoError(t, db.SetBalance("g1", "u1", 50))

	seats := []blackjack.Seat{{ID: "u1", Wager: 20}}
	_, err := dbEscrow{}.Reserve("g1", seats)
	require.NoError(t, err)
	require.NoError(t, dbEscrow{}.Refund("g1", seats))

	bal, err := db.GetBalance("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, bal)

	DB = nil
	_, err = dbEscrow{}.Reserve("g1", seats)
	assert.Error(t, err)
}
