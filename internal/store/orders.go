package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderNotOpen  = errors.New("order is not open")
)

// OrderType says which side of the pair the creator is offering.
type OrderType string

const (
	OrderTypeBuy  OrderType = "buy"
	OrderTypeSell OrderType = "sell"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusPartial is reserved for partial fills. Fills are
	// currently all-or-nothing, so no order ever carries it.
	OrderStatusPartial OrderStatus = "partial"
)

// Order is a resting offer to trade Amount of TokenSymbol at Price
// (quoted in PairSymbol per token). TotalValue = Amount * Price.
// FilledAmount stays zero until settlement; fills are all-or-nothing,
// so it only ever lands on Amount.
type Order struct {
	ID              string
	Type            OrderType
	TokenSymbol     string
	PairSymbol      string
	Amount          decimal.Decimal
	Price           decimal.Decimal
	TotalValue      decimal.Decimal
	CreatorID       string
	CreatorUsername string
	Status          OrderStatus
	FilledAmount    decimal.Decimal
	CreatedAt       time.Time
	FilledAt        time.Time
}

// escrowLeg names the holding an open order keeps locked: sellers
// escrow the tokens on offer, buyers escrow the quote they will pay.
func (o *Order) escrowLeg() (symbol string, amount decimal.Decimal) {
	if o.Type == OrderTypeSell {
		return o.TokenSymbol, o.Amount
	}
	return o.PairSymbol, o.TotalValue
}

// InsertOrderWithHold escrows the creator's funds and records the open
// order in one transaction. Either both happen or neither does.
func (s *Store) InsertOrderWithHold(o *Order) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	holdSymbol, holdAmount := o.escrowLeg()
	if err := lockAvailableTx(tx, o.CreatorID, holdSymbol, holdAmount); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO orders (id, order_type, token_symbol, pair_symbol, amount, price, total_value,
			creator_id, creator_username, status, filled_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Type), o.TokenSymbol, o.PairSymbol, o.Amount, o.Price, o.TotalValue,
		o.CreatorID, o.CreatorUsername, string(o.Status), o.FilledAmount, o.CreatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const orderColumns = `id, order_type, token_symbol, pair_symbol, amount, price, total_value,
	creator_id, creator_username, status, filled_amount, created_at, filled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	o := &Order{}
	var filledAt sql.NullTime
	err := row.Scan(&o.ID, &o.Type, &o.TokenSymbol, &o.PairSymbol, &o.Amount, &o.Price, &o.TotalValue,
		&o.CreatorID, &o.CreatorUsername, &o.Status, &o.FilledAmount, &o.CreatedAt, &filledAt)
	if err != nil {
		return nil, err
	}
	if filledAt.Valid {
		o.FilledAt = filledAt.Time
	}
	return o, nil
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(id string) (*Order, error) {
	o, err := scanOrder(s.db.QueryRow(
		"SELECT "+orderColumns+" FROM orders WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func getOrderTx(tx *sql.Tx, id string) (*Order, error) {
	o, err := scanOrder(tx.QueryRow(
		"SELECT "+orderColumns+" FROM orders WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// OpenOrders returns open orders for a token, oldest first. An empty
// symbol returns the open orders of every token.
func (s *Store) OpenOrders(tokenSymbol string) ([]*Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE status = ?"
	args := []any{string(OrderStatusOpen)}
	if tokenSymbol != "" {
		query += " AND token_symbol = ?"
		args = append(args, tokenSymbol)
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// OrdersByUser returns every order a user has created, newest first.
func (s *Store) OrdersByUser(userID string) ([]*Order, error) {
	rows, err := s.db.Query(
		"SELECT "+orderColumns+" FROM orders WHERE creator_id = ? ORDER BY created_at DESC, rowid DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SettleFill executes an open order against the taker in one
// transaction: both balance legs move, the order flips to filled and
// the trade lands on the ledger, or none of it happens. The order is
// re-read inside the transaction so a racing fill or cancel loses
// cleanly with ErrOrderNotOpen.
func (s *Store) SettleFill(orderID, takerID, takerUsername string) (*Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	o, err := getOrderTx(tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != OrderStatusOpen {
		return nil, ErrOrderNotOpen
	}

	now := time.Now()
	rec := &Transaction{
		Kind:        TxKindTrade,
		TokenSymbol: o.TokenSymbol,
		Amount:      o.Amount,
		PairSymbol:  o.PairSymbol,
		Price:       o.Price,
		TotalValue:  o.TotalValue,
		OrderID:     o.ID,
		Note:        fmt.Sprintf("%s %s at %s %s each", o.Amount, o.TokenSymbol, o.Price, o.PairSymbol),
		CreatedAt:   now,
	}

	switch o.Type {
	case OrderTypeSell:
		// Taker pays the quote leg and receives the escrowed tokens.
		if err := debitAvailableTx(tx, takerID, o.PairSymbol, o.TotalValue); err != nil {
			return nil, err
		}
		if err := creditAvailableTx(tx, o.CreatorID, o.PairSymbol, o.TotalValue); err != nil {
			return nil, err
		}
		if err := spendLockedTx(tx, o.CreatorID, o.TokenSymbol, o.Amount); err != nil {
			return nil, err
		}
		if err := creditAvailableTx(tx, takerID, o.TokenSymbol, o.Amount); err != nil {
			return nil, err
		}
		rec.FromID, rec.FromUsername = o.CreatorID, o.CreatorUsername
		rec.ToID, rec.ToUsername = takerID, takerUsername
	case OrderTypeBuy:
		// Taker supplies the tokens and receives the escrowed quote.
		if err := debitAvailableTx(tx, takerID, o.TokenSymbol, o.Amount); err != nil {
			return nil, err
		}
		if err := creditAvailableTx(tx, o.CreatorID, o.TokenSymbol, o.Amount); err != nil {
			return nil, err
		}
		if err := spendLockedTx(tx, o.CreatorID, o.PairSymbol, o.TotalValue); err != nil {
			return nil, err
		}
		if err := creditAvailableTx(tx, takerID, o.PairSymbol, o.TotalValue); err != nil {
			return nil, err
		}
		rec.FromID, rec.FromUsername = takerID, takerUsername
		rec.ToID, rec.ToUsername = o.CreatorID, o.CreatorUsername
	default:
		return nil, fmt.Errorf("order %s has unknown type %q", o.ID, o.Type)
	}

	if _, err := tx.Exec(
		"UPDATE orders SET status = ?, filled_amount = ?, filled_at = ? WHERE id = ?",
		string(OrderStatusFilled), o.Amount, now, o.ID,
	); err != nil {
		return nil, err
	}

	if err := appendTransactionTx(tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return rec, nil
}

// CancelOrderRelease flips an open order to cancelled and returns its
// escrowed funds, in one transaction.
func (s *Store) CancelOrderRelease(orderID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	o, err := getOrderTx(tx, orderID)
	if err != nil {
		return err
	}
	if o.Status != OrderStatusOpen {
		return ErrOrderNotOpen
	}

	holdSymbol, holdAmount := o.escrowLeg()
	if err := releaseLockedTx(tx, o.CreatorID, holdSymbol, holdAmount); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"UPDATE orders SET status = ? WHERE id = ?",
		string(OrderStatusCancelled), o.ID,
	); err != nil {
		return err
	}

	return tx.Commit()
}
