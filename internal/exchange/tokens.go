package exchange

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tokenmart/internal/store"
)

// Mint registers a new token and credits its full supply to the
// creator. Symbols normalize to upper case before hitting the
// registry, so "wid" and "WID" are the same token.
func (e *Engine) Mint(actor Identity, symbol, name, supply string) (*store.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbol = normalizeSymbol(symbol)
	name = strings.TrimSpace(name)

	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol", ErrMissingField)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}
	if strings.TrimSpace(supply) == "" {
		return nil, fmt.Errorf("%w: total_supply", ErrMissingField)
	}
	if !validSymbol(symbol) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	sup, err := decimal.NewFromString(strings.TrimSpace(supply))
	if err != nil || !sup.IsPositive() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, supply)
	}

	return e.st.MintToken(symbol, name, sup, actor.ID, actor.Username)
}

// Transfer sends available funds directly to another user by name.
func (e *Engine) Transfer(actor Identity, toUsername, symbol, amount, note string) (*store.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	toUsername = strings.TrimSpace(toUsername)
	if toUsername == "" {
		return nil, fmt.Errorf("%w: to", ErrMissingField)
	}
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("%w: token_symbol", ErrMissingField)
	}
	if strings.TrimSpace(amount) == "" {
		return nil, fmt.Errorf("%w: amount", ErrMissingField)
	}

	amt, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !amt.IsPositive() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	to, err := e.st.GetUserByUsername(toUsername)
	if err != nil {
		return nil, err
	}

	return e.st.TransferAvailable(actor.ID, actor.Username, to.ID, to.Username, normalizeSymbol(symbol), amt, note)
}

// validSymbol accepts 2 to 12 upper-case letters or digits.
func validSymbol(s string) bool {
	if len(s) < 2 || len(s) > 12 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
