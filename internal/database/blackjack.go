package database

import (
	"fmt"
	"time"
)

// RoundResult is the settlement of one seat, as persisted.
type RoundResult struct {
	UserID      string
	Wager       int
	Outcome     string
	Delta       int
	PlayerTotal int
	DealerTotal int
}

// BlackjackStats aggregates a user's settled rounds in a guild.
type BlackjackStats struct {
	Wins   int
	Losses int
	Pushes int
	Net    int
}

func (s BlackjackStats) Played() int {
	return s.Wins + s.Losses + s.Pushes
}

// Stake is a wager held in escrow for one seat.
type Stake struct {
	UserID string
	Amount int
}

// ReserveWagers debits every stake in one transaction. A stake the user
// cannot cover is skipped and its user returned in short; the others stay
// debited until SettleBlackjackRound or RefundWagers.
func (d *DB) ReserveWagers(guildID string, stakes []Stake) (short []string, err error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback()

	for _, s := range stakes {
		if s.Amount <= 0 {
			continue
		}
		res, err := tx.Exec("UPDATE economy SET balance = balance - ? WHERE guild_id = ? AND user_id = ? AND balance >= ?",
			s.Amount, guildID, s.UserID, s.Amount)
		if err != nil {
			return nil, fmt.Errorf("debit %s: %w", s.UserID, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			short = append(short, s.UserID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return short, nil
}

// RefundWagers credits reserved stakes back in one transaction.
func (d *DB) RefundWagers(guildID string, stakes []Stake) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin refund: %w", err)
	}
	defer tx.Rollback()

	for _, s := range stakes {
		if s.Amount <= 0 {
			continue
		}
		if err := addBalance(tx, guildID, s.UserID, s.Amount); err != nil {
			return fmt.Errorf("refund %s: %w", s.UserID, err)
		}
	}
	return tx.Commit()
}

// SettleBlackjackRound pays out a round whose wagers were taken by
// ReserveWagers and records its history in one transaction. Each seat is
// credited Wager+Delta: twice the wager on a win, the wager on a push and
// nothing on a loss.
func (d *DB) SettleBlackjackRound(guildID, roundID string, at time.Time, results []RoundResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback()

	for _, r := range results {
		if payout := r.Wager + r.Delta; payout > 0 {
			if err := addBalance(tx, guildID, r.UserID, payout); err != nil {
				return fmt.Errorf("pay out %s: %w", r.UserID, err)
			}
		}
		_, err := tx.Exec(`
			INSERT INTO blackjack_results
			(round_id, guild_id, user_id, wager, outcome, delta, player_total, dealer_total, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			roundID, guildID, r.UserID, r.Wager, r.Outcome, r.Delta, r.PlayerTotal, r.DealerTotal, at.Unix())
		if err != nil {
			return fmt.Errorf("record result for %s: %w", r.UserID, err)
		}
	}

	return tx.Commit()
}

// GetBlackjackStats returns win/loss/push counts and net winnings.
func (d *DB) GetBlackjackStats(guildID, userID string) (BlackjackStats, error) {
	var stats BlackjackStats
	rows, err := d.conn.Query(`
		SELECT outcome, COUNT(*), COALESCE(SUM(delta), 0)
		FROM blackjack_results WHERE guild_id = ? AND user_id = ?
		GROUP BY outcome`, guildID, userID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var n, net int
		if err := rows.Scan(&outcome, &n, &net); err != nil {
			return stats, err
		}
		switch outcome {
		case "WIN":
			stats.Wins = n
		case "LOSS":
			stats.Losses = n
		case "PUSH":
			stats.Pushes = n
		}
		stats.Net += net
	}
	return stats, rows.Err()
}

// PruneBlackjackResults deletes history older than before.
func (d *DB) PruneBlackjackResults(before time.Time) (int64, error) {
	res, err := d.conn.Exec("DELETE FROM blackjack_results WHERE created_at < ?", before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
