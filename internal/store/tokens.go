package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTokenExists   = errors.New("token symbol already exists")
	ErrTokenNotFound = errors.New("token not found")
)

// MintToken registers a new token and credits its entire supply to the
// creator. The registry row, the creator's balance and the mint ledger
// entry commit together.
func (s *Store) MintToken(symbol, name string, supply decimal.Decimal, creatorID, creatorUsername string) (*Token, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM tokens WHERE symbol = ?)", symbol).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrTokenExists
	}

	_, err = tx.Exec(
		"INSERT INTO tokens (symbol, name, total_supply, creator_id, creator_username) VALUES (?, ?, ?, ?, ?)",
		symbol, name, supply, creatorID, creatorUsername,
	)
	if err != nil {
		return nil, err
	}

	if err := creditAvailableTx(tx, creatorID, symbol, supply); err != nil {
		return nil, err
	}

	if err := appendTransactionTx(tx, &Transaction{
		Kind:         TxKindMint,
		TokenSymbol:  symbol,
		Amount:       supply,
		FromID:       SystemUser,
		FromUsername: SystemUser,
		ToID:         creatorID,
		ToUsername:   creatorUsername,
		Note:         "token minted",
		CreatedAt:    time.Now(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetToken(symbol)
}

// GetToken retrieves a token by symbol
func (s *Store) GetToken(symbol string) (*Token, error) {
	t := &Token{}
	err := s.db.QueryRow(
		"SELECT symbol, name, total_supply, creator_id, creator_username, created_at FROM tokens WHERE symbol = ?",
		symbol,
	).Scan(&t.Symbol, &t.Name, &t.TotalSupply, &t.CreatorID, &t.CreatorUsername, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTokens returns every registered token, reference token first,
// then newest first.
func (s *Store) ListTokens() ([]*Token, error) {
	rows, err := s.db.Query(
		"SELECT symbol, name, total_supply, creator_id, creator_username, created_at FROM tokens ORDER BY creator_id = ? DESC, created_at DESC, symbol",
		SystemUser,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		t := &Token{}
		if err := rows.Scan(&t.Symbol, &t.Name, &t.TotalSupply, &t.CreatorID, &t.CreatorUsername, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// growSupplyTx bumps a token's recorded supply. Only the reference
// token grows after mint time, through registration grants.
func growSupplyTx(tx *sql.Tx, symbol string, amount decimal.Decimal) error {
	var supply decimal.Decimal
	err := tx.QueryRow("SELECT total_supply FROM tokens WHERE symbol = ?", symbol).Scan(&supply)
	if err == sql.ErrNoRows {
		return ErrTokenNotFound
	}
	if err != nil {
		return err
	}
	_, err = tx.Exec("UPDATE tokens SET total_supply = ? WHERE symbol = ?", supply.Add(amount), symbol)
	return err
}
