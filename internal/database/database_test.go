package database

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.migrate())
}

func TestPermissions(t *testing.T) {
	db := newTestDB(t)

	has, err := db.HasPermission("u1", "games.bj")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, db.AddPermission("u1", "games.bj"))
	require.NoError(t, db.AddPermission("u1", "games.bj"))
	require.NoError(t, db.AddPermission("u1", "economy.money"))

	has, err = db.HasPermission("u1", "games.bj")
	require.NoError(t, err)
	assert.True(t, has)

	nodes, err := db.ListPermissions("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"economy.money", "games.bj"}, nodes)

	require.NoError(t, db.RemovePermission("u1", "games.bj"))
	has, err = db.HasPermission("u1", "games.bj")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestBalances(t *testing.T) {
	db := newTestDB(t)

	bal, err := db.GetBalance("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, bal)

	require.NoError(t, db.SetBalance("g1", "u1", 100))
	require.NoError(t, db.AddBalance("g1", "u1", 50))
	require.NoError(t, db.AddBalance("g2", "u1", 7))

	bal, err = db.GetBalance("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 150, bal)

	bal, err = db.GetBalance("g2", "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, bal, "balances are per guild")

	require.NoError(t, db.AddBalance("g1", "u1", -500))
	bal, err = db.GetBalance("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, bal, "balances floor at zero")
}

func TestTransfer(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetBalance("g", "alice", 100))

	require.NoError(t, db.Transfer("g", "alice", "bob", 40))

	alice, _ := db.GetBalance("g", "alice")
	bob, _ := db.GetBalance("g", "bob")
	assert.Equal(t, 60, alice)
	assert.Equal(t, 40, bob)

	err := db.Transfer("g", "alice", "bob", 61)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	err = db.Transfer("g", "nobody", "bob", 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	alice, _ = db.GetBalance("g", "alice")
	assert.Equal(t, 60, alice)
}

func TestTopBalances(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetBalance("g", "a", 10))
	require.NoError(t, db.SetBalance("g", "b", 30))
	require.NoError(t, db.SetBalance("g", "c", 20))
	require.NoError(t, db.SetBalance("g", "broke", 0))
	require.NoError(t, db.SetBalance("other", "d", 99))

	top, err := db.TopBalances("g", 2)
	require.NoError(t, err)
	assert.Equal(t, []Holding{{"b", 30}, {"c", 20}}, top)
}

func TestSettleBlackjackRound(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetBalance("g", "winner", 100))
	require.NoError(t, db.SetBalance("g", "loser", 100))
	require.NoError(t, db.SetBalance("g", "pusher", 100))

	short, err := db.ReserveWagers("g", []Stake{{"winner", 20}, {"loser", 30}, {"pusher", 10}})
	require.NoError(t, err)
	require.Empty(t, short)

	at := time.Unix(1_700_000_000, 0)
	err = db.SettleBlackjackRound("g", "round-1", at, []RoundResult{
		{UserID: "winner", Wager: 20, Outcome: "WIN", Delta: 20, PlayerTotal: 20, DealerTotal: 18},
		{UserID: "loser", Wager: 30, Outcome: "LOSS", Delta: -30, PlayerTotal: 22, DealerTotal: 18},
		{UserID: "pusher", Wager: 10, Outcome: "PUSH", Delta: 0, PlayerTotal: 18, DealerTotal: 18},
	})
	require.NoError(t, err)

	for user, want := range map[string]int{"winner": 120, "loser": 70, "pusher": 100} {
		bal, err := db.GetBalance("g", user)
		require.NoError(t, err)
		assert.Equal(t, want, bal, user)
	}

	stats, err := db.GetBlackjackStats("g", "winner")
	require.NoError(t, err)
	assert.Equal(t, BlackjackStats{Wins: 1, Net: 20}, stats)
	assert.Equal(t, 1, stats.Played())

	_, err = db.ReserveWagers("g", []Stake{{"winner", 5}})
	require.NoError(t, err)
	err = db.SettleBlackjackRound("g", "round-2", at.Add(time.Hour), []RoundResult{
		{UserID: "winner", Wager: 5, Outcome: "LOSS", Delta: -5, PlayerTotal: 17, DealerTotal: 19},
	})
	require.NoError(t, err)

	stats, err = db.GetBlackjackStats("g", "winner")
	require.NoError(t, err)
	assert.Equal(t, BlackjackStats{Wins: 1, Losses: 1, Net: 15}, stats)

	n, err := db.PruneBlackjackResults(at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	stats, err = db.GetBlackjackStats("g", "winner")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Played())
}

func TestSettleBlackjackRoundRollsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	db := &DB{conn: conn}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO economy").
		WithArgs("g", "u1", 20, 20).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO blackjack_results").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = db.SettleBlackjackRound("g", "r", time.Now(), []RoundResult{
		{UserID: "u1", Wager: 10, Outcome: "WIN", Delta: 10, PlayerTotal: 20, DealerTotal: 19},
	})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRollsBackOnShortBalance(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	db := &DB{conn: conn}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE economy SET balance").
		WithArgs(50, "g", "a", 50).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, db.Transfer("g", "a", "b", 50), ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveWagers(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetBalance("g", "rich", 100))
	require.NoError(t, db.SetBalance("g", "poor", 5))

	short, err := db.ReserveWagers("g", []Stake{{"rich", 40}, {"poor", 10}, {"nobody", 10}, {"free", 0}})
	require.NoError(t, err)
	assert.Equal(t, []string{"poor", "nobody"}, short)

	for user, want := range map[string]int{"rich": 60, "poor": 5, "nobody": 0} {
		bal, err := db.GetBalance("g", user)
		require.NoError(t, err)
		assert.Equal(t, want, bal, user)
	}

	require.NoError(t, db.RefundWagers("g", []Stake{{"rich", 40}}))
	bal, err := db.GetBalance("g", "rich")
	require.NoError(t, err)
	assert.Equal(t, 100, bal)
}

func TestLosingAfterTransferringAwayCostsTheWager(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetBalance("g", "p", 100))

	short, err := db.ReserveWagers("g", []Stake{{"p", 100}})
	require.NoError(t, err)
	require.Empty(t, short)

	// The wager is already gone, so there is nothing left to move.
	assert.ErrorIs(t, db.Transfer("g", "p", "alt", 100), ErrInsufficientFunds)

	require.NoError(t, db.SettleBlackjackRound("g", "r", time.Now(), []RoundResult{
		{UserID: "p", Wager: 100, Outcome: "LOSS", Delta: -100, PlayerTotal: 22, DealerTotal: 18},
	}))

	p, err := db.GetBalance("g", "p")
	require.NoError(t, err)
	alt, err := db.GetBalance("g", "alt")
	require.NoError(t, err)
	assert.Zero(t, p+alt)
}

func TestReserveAfterTransferringAwayIsShort(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetBalance("g", "p", 100))
	require.NoError(t, db.Transfer("g", "p", "alt", 100))

	short, err := db.ReserveWagers("g", []Stake{{"p", 100}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, short)

	alt, err := db.GetBalance("g", "alt")
	require.NoError(t, err)
	assert.Equal(t, 100, alt)
}

func TestReserveWagersRollsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	db := &DB{conn: conn}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE economy SET balance").
		WithArgs(10, "g", "a", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE economy SET balance").
		WithArgs(20, "g", "b", 20).
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err = db.ReserveWagers("g", []Stake{{"a", 10}, {"b", 20}})
	assert.ErrorContains(t, err, "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
