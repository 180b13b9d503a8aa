package exchange

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tokenmart/internal/store"
)

// CreateOrderRequest carries the raw order fields as submitted.
// Amounts arrive as strings and are parsed here, never by callers.
type CreateOrderRequest struct {
	Type        string
	TokenSymbol string
	PairSymbol  string
	Amount      string
	Price       string
}

// CreateOrder validates and escrows a new resting order. Checks run in
// a fixed sequence so a request that fails several ways reports the
// first: missing fields, then numeric parsing, then pair sanity, then
// balance. The escrow hold and the order row commit together, which is
// what keeps a later fill from ever overdrawing the creator.
func (e *Engine) CreateOrder(actor Identity, req CreateOrderRequest) (*store.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if actor.ID == "" {
		return nil, fmt.Errorf("%w: user", ErrMissingField)
	}
	if strings.TrimSpace(req.Type) == "" {
		return nil, fmt.Errorf("%w: order_type", ErrMissingField)
	}
	if strings.TrimSpace(req.TokenSymbol) == "" {
		return nil, fmt.Errorf("%w: token_symbol", ErrMissingField)
	}
	if strings.TrimSpace(req.PairSymbol) == "" {
		return nil, fmt.Errorf("%w: pair_symbol", ErrMissingField)
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, fmt.Errorf("%w: amount", ErrMissingField)
	}
	if strings.TrimSpace(req.Price) == "" {
		return nil, fmt.Errorf("%w: price", ErrMissingField)
	}

	typ := store.OrderType(strings.ToLower(strings.TrimSpace(req.Type)))
	if typ != store.OrderTypeBuy && typ != store.OrderTypeSell {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrderType, req.Type)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, req.Amount)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, req.Price)
	}

	token := normalizeSymbol(req.TokenSymbol)
	pair := normalizeSymbol(req.PairSymbol)
	if token == pair {
		return nil, fmt.Errorf("%w: token and pair are both %s", ErrInvalidPair, token)
	}
	for _, sym := range []string{token, pair} {
		if _, err := e.st.GetToken(sym); err != nil {
			if errors.Is(err, store.ErrTokenNotFound) {
				return nil, fmt.Errorf("%w: unknown token %s", ErrInvalidPair, sym)
			}
			return nil, err
		}
	}

	o := &store.Order{
		ID:              uuid.NewString(),
		Type:            typ,
		TokenSymbol:     token,
		PairSymbol:      pair,
		Amount:          amount,
		Price:           price,
		TotalValue:      amount.Mul(price),
		CreatorID:       actor.ID,
		CreatorUsername: actor.Username,
		Status:          store.OrderStatusOpen,
		FilledAmount:    decimal.Zero,
		CreatedAt:       time.Now(),
	}

	// The store enforces the balance requirement while taking the
	// escrow, so a short balance rejects with nothing written.
	if err := e.st.InsertOrderWithHold(o); err != nil {
		return nil, err
	}
	return o, nil
}

// FillOrder executes an open order in full with the actor as taker.
// Both balance legs, the status flip and the trade record settle in
// one store transaction.
func (e *Engine) FillOrder(actor Identity, orderID string) (*store.Order, *store.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.st.GetOrder(orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.Status != store.OrderStatusOpen {
		return nil, nil, ErrOrderNotOpen
	}
	if o.CreatorID == actor.ID {
		return nil, nil, ErrSelfTrade
	}

	rec, err := e.st.SettleFill(o.ID, actor.ID, actor.Username)
	if err != nil {
		return nil, nil, err
	}

	filled, err := e.st.GetOrder(o.ID)
	if err != nil {
		return nil, nil, err
	}
	return filled, rec, nil
}

// CancelOrder voids an open order and releases its escrow. Only the
// creator may cancel, and only while the order is still open.
func (e *Engine) CancelOrder(actor Identity, orderID string) (*store.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.st.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if o.CreatorID != actor.ID {
		return nil, ErrNotOrderOwner
	}
	if o.Status != store.OrderStatusOpen {
		return nil, ErrOrderNotOpen
	}

	if err := e.st.CancelOrderRelease(o.ID); err != nil {
		return nil, err
	}
	return e.st.GetOrder(o.ID)
}
