package database

import (
	"database/sql"
	"errors"
)

// GetBalance returns the balance of a user in a guild.
func (d *DB) GetBalance(guildID, userID string) (int, error) {
	var balance int
	err := d.conn.QueryRow("SELECT balance FROM economy WHERE guild_id = ? AND user_id = ?", guildID, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// SetBalance sets the balance of a user.
func (d *DB) SetBalance(guildID, userID string, amount int) error {
	_, err := d.conn.Exec(`
		INSERT INTO economy (guild_id, user_id, balance) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET balance = excluded.balance`,
		guildID, userID, amount)
	return err
}

// AddBalance adds (or subtracts) an amount from a user's balance. Balances
// never drop below zero.
func (d *DB) AddBalance(guildID, userID string, amount int) error {
	return addBalance(d.conn, guildID, userID, amount)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func addBalance(e execer, guildID, userID string, amount int) error {
	_, err := e.Exec(`
		INSERT INTO economy (guild_id, user_id, balance) VALUES (?, ?, MAX(?, 0))
		ON CONFLICT(guild_id, user_id) DO UPDATE SET balance = MAX(balance + ?, 0)`,
		guildID, userID, amount, amount)
	return err
}

// Transfer moves money from one user to another.
func (d *DB) Transfer(guildID, fromID, toID string, amount int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE economy SET balance = balance - ? WHERE guild_id = ? AND user_id = ? AND balance >= ?",
		amount, guildID, fromID, amount)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Unknown sender and short balance look the same to the caller.
		return ErrInsufficientFunds
	}

	if err := addBalance(tx, guildID, toID, amount); err != nil {
		return err
	}

	return tx.Commit()
}

// Holding is one row of a guild leaderboard.
type Holding struct {
	UserID  string
	Balance int
}

// TopBalances returns the richest users of a guild.
func (d *DB) TopBalances(guildID string, limit int) ([]Holding, error) {
	rows, err := d.conn.Query(
		"SELECT user_id, balance FROM economy WHERE guild_id = ? AND balance > 0 ORDER BY balance DESC, user_id LIMIT ?",
		guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.UserID, &h.Balance); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
