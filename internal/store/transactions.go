package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxKind classifies a ledger entry.
type TxKind string

const (
	TxKindTrade    TxKind = "trade"
	TxKindTransfer TxKind = "transfer"
	TxKindMint     TxKind = "mint"
	TxKindGrant    TxKind = "grant"
)

// Transaction is an append-only ledger entry. Amount is denominated in
// TokenSymbol and flows from From to To. Trades also carry the quote
// leg (PairSymbol, Price, TotalValue) and the order they settled.
type Transaction struct {
	ID           string
	Kind         TxKind
	TokenSymbol  string
	Amount       decimal.Decimal
	PairSymbol   string
	Price        decimal.Decimal
	TotalValue   decimal.Decimal
	FromID       string
	FromUsername string
	ToID         string
	ToUsername   string
	OrderID      string
	Note         string
	CreatedAt    time.Time
}

// appendTransactionTx writes a ledger entry inside an open transaction.
// The ledger is append-only; nothing in the store updates or deletes
// these rows.
func appendTransactionTx(tx *sql.Tx, rec *Transaction) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := tx.Exec(`
		INSERT INTO transactions (id, kind, token_symbol, amount, pair_symbol, price, total_value,
			from_id, from_username, to_id, to_username, order_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.TokenSymbol, rec.Amount, rec.PairSymbol, rec.Price, rec.TotalValue,
		rec.FromID, rec.FromUsername, rec.ToID, rec.ToUsername, rec.OrderID, rec.Note, rec.CreatedAt,
	)
	return err
}

const txColumns = `id, kind, token_symbol, amount, pair_symbol, price, total_value,
	from_id, from_username, to_id, to_username, order_id, note, created_at`

func scanTransaction(row rowScanner) (*Transaction, error) {
	rec := &Transaction{}
	err := row.Scan(&rec.ID, &rec.Kind, &rec.TokenSymbol, &rec.Amount, &rec.PairSymbol, &rec.Price, &rec.TotalValue,
		&rec.FromID, &rec.FromUsername, &rec.ToID, &rec.ToUsername, &rec.OrderID, &rec.Note, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) queryTransactions(query string, args ...any) ([]*Transaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Transaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// TransactionsByUser returns ledger entries a user sent or received,
// newest first.
func (s *Store) TransactionsByUser(userID string, limit int) ([]*Transaction, error) {
	return s.queryTransactions(
		"SELECT "+txColumns+" FROM transactions WHERE from_id = ? OR to_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		userID, userID, limit,
	)
}

// TradesForToken returns settled trades of a token, newest first.
func (s *Store) TradesForToken(symbol string, limit int) ([]*Transaction, error) {
	return s.queryTransactions(
		"SELECT "+txColumns+" FROM transactions WHERE token_symbol = ? AND kind = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		symbol, string(TxKindTrade), limit,
	)
}

// RecentTrades returns the latest settled trades across all tokens.
func (s *Store) RecentTrades(limit int) ([]*Transaction, error) {
	return s.queryTransactions(
		"SELECT "+txColumns+" FROM transactions WHERE kind = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		string(TxKindTrade), limit,
	)
}

// RecentTransactions returns the latest ledger entries of every kind.
func (s *Store) RecentTransactions(limit int) ([]*Transaction, error) {
	return s.queryTransactions(
		"SELECT "+txColumns+" FROM transactions ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
}
