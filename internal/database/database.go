package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

// ErrInsufficientFunds is returned when a debit would overdraw a balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

type DB struct {
	conn *sql.DB
}

// New initializes the database connection and creates the schema.
func New(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection keeps :memory: databases whole.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{conn: db}
	if err := d.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Infof("Database connected: %s", dsn)
	return d, nil
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS permissions (
			user_id TEXT NOT NULL,
			node TEXT NOT NULL,
			PRIMARY KEY (user_id, node)
		);`,
		`CREATE TABLE IF NOT EXISTS economy (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			balance INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (guild_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS blackjack_results (
			round_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			wager INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			delta INTEGER NOT NULL,
			player_total INTEGER NOT NULL,
			dealer_total INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (round_id, user_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_blackjack_results_user
			ON blackjack_results (guild_id, user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_blackjack_results_created
			ON blackjack_results (created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := d.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	log.Info("Database connection closing.")
	return d.conn.Close()
}

// AddPermission grants a permission node to a user.
func (d *DB) AddPermission(userID, node string) error {
	_, err := d.conn.Exec("INSERT OR IGNORE INTO permissions (user_id, node) VALUES (?, ?)", userID, node)
	return err
}

// RemovePermission revokes a permission node from a user.
func (d *DB) RemovePermission(userID, node string) error {
	_, err := d.conn.Exec("DELETE FROM permissions WHERE user_id = ? AND node = ?", userID, node)
	return err
}

// HasPermission checks if a user has a specific permission node.
func (d *DB) HasPermission(userID, node string) (bool, error) {
	var exists int
	err := d.conn.QueryRow("SELECT 1 FROM permissions WHERE user_id = ? AND node = ?", userID, node).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListPermissions returns all permission nodes for a user.
func (d *DB) ListPermissions(userID string) ([]string, error) {
	rows, err := d.conn.Query("SELECT node FROM permissions WHERE user_id = ? ORDER BY node", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []string
	for rows.Next() {
		var node string
		if err := rows.Scan(&node); err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}
