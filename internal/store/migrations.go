package store

import (
	"fmt"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of all migrations
// New migrations should be appended to the end with incrementing version numbers
var migrations = []Migration{
	{
		Version:     1,
		Description: "Users and sessions",
		SQL: `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			expires_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
		`,
	},
	{
		Version:     2,
		Description: "Token registry and balances",
		SQL: `
		CREATE TABLE IF NOT EXISTS tokens (
			symbol TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			total_supply TEXT NOT NULL DEFAULT '0',
			creator_id TEXT NOT NULL,
			creator_username TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS balances (
			user_id TEXT NOT NULL REFERENCES users(id),
			symbol TEXT NOT NULL,
			available TEXT NOT NULL DEFAULT '0',
			locked TEXT NOT NULL DEFAULT '0',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, symbol)
		);

		CREATE INDEX IF NOT EXISTS idx_balances_symbol ON balances(symbol);
		`,
	},
	{
		Version:     3,
		Description: "Marketplace orders",
		SQL: `
		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			order_type TEXT NOT NULL,
			token_symbol TEXT NOT NULL,
			pair_symbol TEXT NOT NULL,
			amount TEXT NOT NULL,
			price TEXT NOT NULL,
			total_value TEXT NOT NULL,
			creator_id TEXT NOT NULL REFERENCES users(id),
			creator_username TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			filled_amount TEXT NOT NULL DEFAULT '0',
			created_at DATETIME NOT NULL,
			filled_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_orders_token_status ON orders(token_symbol, status);
		CREATE INDEX IF NOT EXISTS idx_orders_creator ON orders(creator_id);
		`,
	},
	{
		Version:     4,
		Description: "Transaction log",
		SQL: `
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			token_symbol TEXT NOT NULL,
			amount TEXT NOT NULL,
			pair_symbol TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '0',
			total_value TEXT NOT NULL DEFAULT '0',
			from_id TEXT NOT NULL,
			from_username TEXT NOT NULL,
			to_id TEXT NOT NULL,
			to_username TEXT NOT NULL,
			order_id TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tx_token ON transactions(token_symbol, kind);
		CREATE INDEX IF NOT EXISTS idx_tx_from ON transactions(from_id);
		CREATE INDEX IF NOT EXISTS idx_tx_to ON transactions(to_id);
		`,
	},
}

// initMigrationsTable creates the migrations tracking table
func (s *Store) initMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// getCurrentVersion returns the highest applied migration version
func (s *Store) getCurrentVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Migrate runs all pending migrations
func (s *Store) Migrate() error {
	if err := s.initMigrationsTable(); err != nil {
		return fmt.Errorf("failed to init migrations table: %w", err)
	}

	currentVersion, err := s.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}

	return nil
}

// applyMigration runs a single migration in a transaction
func (s *Store) applyMigration(m Migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// MigrationStatus returns applied and pending migration versions
func (s *Store) MigrationStatus() (applied []int, pending []int, err error) {
	if err := s.initMigrationsTable(); err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	appliedSet := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, nil, err
		}
		applied = append(applied, v)
		appliedSet[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, m := range migrations {
		if !appliedSet[m.Version] {
			pending = append(pending, m.Version)
		}
	}

	return applied, pending, nil
}
