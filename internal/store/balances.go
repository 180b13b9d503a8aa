package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSameUser            = errors.New("sender and recipient are the same user")
)

// GetBalance retrieves one user's holding of one token. A user without
// a row holds zero; callers never see ErrNoRows.
func (s *Store) GetBalance(userID, symbol string) (*Balance, error) {
	b := &Balance{}
	err := s.db.QueryRow(
		"SELECT user_id, symbol, available, locked, updated_at FROM balances WHERE user_id = ? AND symbol = ?",
		userID, symbol,
	).Scan(&b.UserID, &b.Symbol, &b.Available, &b.Locked, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return &Balance{
			UserID:    userID,
			Symbol:    symbol,
			Available: decimal.Zero,
			Locked:    decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UserBalances returns all non-empty holdings of a user, ordered by symbol.
func (s *Store) UserBalances(userID string) ([]*Balance, error) {
	rows, err := s.db.Query(
		"SELECT user_id, symbol, available, locked, updated_at FROM balances WHERE user_id = ? ORDER BY symbol",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*Balance
	for rows.Next() {
		b := &Balance{}
		if err := rows.Scan(&b.UserID, &b.Symbol, &b.Available, &b.Locked, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// TransferAvailable moves available funds directly between two users
// and appends the transfer to the ledger, all in one transaction.
func (s *Store) TransferAvailable(fromID, fromUsername, toID, toUsername, symbol string, amount decimal.Decimal, note string) (*Transaction, error) {
	if fromID == toID {
		return nil, ErrSameUser
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := debitAvailableTx(tx, fromID, symbol, amount); err != nil {
		return nil, err
	}
	if err := creditAvailableTx(tx, toID, symbol, amount); err != nil {
		return nil, err
	}

	rec := &Transaction{
		Kind:         TxKindTransfer,
		TokenSymbol:  symbol,
		Amount:       amount,
		FromID:       fromID,
		FromUsername: fromUsername,
		ToID:         toID,
		ToUsername:   toUsername,
		Note:         note,
		CreatedAt:    time.Now(),
	}
	if err := appendTransactionTx(tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// balanceForUpdate reads a balance row inside a transaction. found
// reports whether the row exists yet.
func balanceForUpdate(tx *sql.Tx, userID, symbol string) (available, locked decimal.Decimal, found bool, err error) {
	err = tx.QueryRow(
		"SELECT available, locked FROM balances WHERE user_id = ? AND symbol = ?",
		userID, symbol,
	).Scan(&available, &locked)
	if err == sql.ErrNoRows {
		return decimal.Zero, decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, false, err
	}
	return available, locked, true, nil
}

func writeBalance(tx *sql.Tx, userID, symbol string, available, locked decimal.Decimal, found bool) error {
	var err error
	if found {
		_, err = tx.Exec(
			"UPDATE balances SET available = ?, locked = ?, updated_at = ? WHERE user_id = ? AND symbol = ?",
			available, locked, time.Now(), userID, symbol,
		)
	} else {
		_, err = tx.Exec(
			"INSERT INTO balances (user_id, symbol, available, locked) VALUES (?, ?, ?, ?)",
			userID, symbol, available, locked,
		)
	}
	return err
}

// creditAvailableTx adds to a user's spendable holding.
func creditAvailableTx(tx *sql.Tx, userID, symbol string, amount decimal.Decimal) error {
	available, locked, found, err := balanceForUpdate(tx, userID, symbol)
	if err != nil {
		return err
	}
	return writeBalance(tx, userID, symbol, available.Add(amount), locked, found)
}

// debitAvailableTx removes from a user's spendable holding, failing
// with ErrInsufficientBalance when it would go negative.
func debitAvailableTx(tx *sql.Tx, userID, symbol string, amount decimal.Decimal) error {
	available, locked, found, err := balanceForUpdate(tx, userID, symbol)
	if err != nil {
		return err
	}
	if available.LessThan(amount) {
		return fmt.Errorf("%w: %s %s available, %s required", ErrInsufficientBalance, available, symbol, amount)
	}
	return writeBalance(tx, userID, symbol, available.Sub(amount), locked, found)
}

// lockAvailableTx escrows spendable funds against an open order.
func lockAvailableTx(tx *sql.Tx, userID, symbol string, amount decimal.Decimal) error {
	available, locked, found, err := balanceForUpdate(tx, userID, symbol)
	if err != nil {
		return err
	}
	if available.LessThan(amount) {
		return fmt.Errorf("%w: %s %s available, %s required", ErrInsufficientBalance, available, symbol, amount)
	}
	return writeBalance(tx, userID, symbol, available.Sub(amount), locked.Add(amount), found)
}

// releaseLockedTx returns escrowed funds to the spendable holding.
func releaseLockedTx(tx *sql.Tx, userID, symbol string, amount decimal.Decimal) error {
	available, locked, found, err := balanceForUpdate(tx, userID, symbol)
	if err != nil {
		return err
	}
	if locked.LessThan(amount) {
		return fmt.Errorf("escrow underflow for %s/%s: %s locked, %s to release", userID, symbol, locked, amount)
	}
	return writeBalance(tx, userID, symbol, available.Add(amount), locked.Sub(amount), found)
}

// spendLockedTx consumes escrowed funds when the order they back settles.
func spendLockedTx(tx *sql.Tx, userID, symbol string, amount decimal.Decimal) error {
	available, locked, found, err := balanceForUpdate(tx, userID, symbol)
	if err != nil {
		return err
	}
	if locked.LessThan(amount) {
		return fmt.Errorf("escrow underflow for %s/%s: %s locked, %s to spend", userID, symbol, locked, amount)
	}
	return writeBalance(tx, userID, symbol, available, locked.Sub(amount), found)
}
