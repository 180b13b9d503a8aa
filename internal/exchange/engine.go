package exchange

import (
	"errors"
	"strings"
	"sync"

	"tokenmart/internal/orderbook"
	"tokenmart/internal/store"
)

// Validation failures, one sentinel per distinct cause. Handlers map
// these onto HTTP statuses with errors.Is.
var (
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidOrderType = errors.New("invalid order type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidPair      = errors.New("invalid trading pair")
	ErrInvalidSymbol    = errors.New("invalid token symbol")
	ErrSelfTrade        = errors.New("cannot fill your own order")
	ErrNotOrderOwner    = errors.New("not the order owner")
)

// Failures the store detects inside its transactions surface as the
// same values here, so callers match one error set no matter which
// layer rejected the request.
var (
	ErrInsufficientBalance = store.ErrInsufficientBalance
	ErrOrderNotFound       = store.ErrOrderNotFound
	ErrOrderNotOpen        = store.ErrOrderNotOpen
)

// Identity names the acting user on a mutation.
type Identity struct {
	ID       string
	Username string
}

// Engine is the only component that mutates orders and balances. Every
// mutation runs under one mutex and commits as a single store
// transaction, so a racing fill or cancel loses cleanly with a typed
// error instead of double-spending.
type Engine struct {
	mu sync.Mutex
	st *store.Store
}

func New(st *store.Store) *Engine {
	return &Engine{st: st}
}

// Book builds the current depth snapshot for a token.
func (e *Engine) Book(symbol string) (orderbook.Book, error) {
	symbol = normalizeSymbol(symbol)
	if _, err := e.st.GetToken(symbol); err != nil {
		return orderbook.Book{}, err
	}
	open, err := e.st.OpenOrders(symbol)
	if err != nil {
		return orderbook.Book{}, err
	}
	return orderbook.Build(symbol, open), nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
