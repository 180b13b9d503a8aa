package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SystemUser is the identity recorded on ledger entries that have no
// human counterparty (welcome grants, token mints).
const SystemUser = "system"

// Config controls the ledger bootstrap behavior.
type Config struct {
	// ReferenceSymbol is the unit-of-account token. It exists from the
	// first startup and every price is quoted against it.
	ReferenceSymbol string
	// ReferenceName is the display name of the reference token.
	ReferenceName string
	// StartingGrant is the amount of the reference token credited to
	// every newly registered user.
	StartingGrant decimal.Decimal
}

// DefaultConfig returns the bootstrap settings used by the demo deployment.
func DefaultConfig() Config {
	return Config{
		ReferenceSymbol: "INF",
		ReferenceName:   "Infra Credit",
		StartingGrant:   decimal.NewFromInt(1000),
	}
}

// Store provides SQLite persistence for users, tokens, balances,
// marketplace orders and the transaction log.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New opens (or creates) the database at dbPath, runs pending
// migrations and makes sure the reference token exists.
func New(dbPath string, cfg Config) (*Store, error) {
	if cfg.ReferenceSymbol == "" {
		cfg = DefaultConfig()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL keeps readers unblocked while the engine writes.
	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.ensureReferenceToken(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReferenceSymbol returns the configured unit-of-account symbol.
func (s *Store) ReferenceSymbol() string {
	return s.cfg.ReferenceSymbol
}

// StartingGrant returns the reference amount granted at registration.
func (s *Store) StartingGrant() decimal.Decimal {
	return s.cfg.StartingGrant
}

// ensureReferenceToken registers the unit-of-account token. Its supply
// row tracks the total granted to users over time.
func (s *Store) ensureReferenceToken() error {
	_, err := s.db.Exec(`
		INSERT INTO tokens (symbol, name, total_supply, creator_id, creator_username)
		VALUES (?, ?, '0', ?, ?)
		ON CONFLICT(symbol) DO NOTHING`,
		s.cfg.ReferenceSymbol, s.cfg.ReferenceName, SystemUser, SystemUser,
	)
	return err
}

// User is a registered account holder.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Token is an entry in the token registry. Supply is fixed at mint
// time except for the reference token, whose supply grows with grants.
type Token struct {
	Symbol          string
	Name            string
	TotalSupply     decimal.Decimal
	CreatorID       string
	CreatorUsername string
	CreatedAt       time.Time
}

// Balance is one user's holding of one token. Available funds can be
// spent or escrowed; locked funds back the user's open orders.
type Balance struct {
	UserID    string
	Symbol    string
	Available decimal.Decimal
	Locked    decimal.Decimal
	UpdatedAt time.Time
}

// Total returns available plus locked holdings.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}
