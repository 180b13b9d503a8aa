package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"tokenmart/internal/store"
)

// Wire views of store records. Decimals marshal as quoted strings, so
// quantities survive the trip through JavaScript untouched.

type balanceView struct {
	Symbol    string          `json:"symbol"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	Total     decimal.Decimal `json:"total"`
}

type tokenView struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	Creator     string          `json:"creator"`
	CreatedAt   time.Time       `json:"created_at"`
}

type orderView struct {
	ID           string          `json:"id"`
	Type         string          `json:"order_type"`
	TokenSymbol  string          `json:"token_symbol"`
	PairSymbol   string          `json:"pair_symbol"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Creator      string          `json:"creator"`
	Status       string          `json:"status"`
	FilledAmount decimal.Decimal `json:"filled_amount"`
	CreatedAt    time.Time       `json:"created_at"`
	FilledAt     *time.Time      `json:"filled_at,omitempty"`
}

type txView struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	TokenSymbol string          `json:"token_symbol"`
	Amount      decimal.Decimal `json:"amount"`
	PairSymbol  string          `json:"pair_symbol,omitempty"`
	Price       decimal.Decimal `json:"price"`
	TotalValue  decimal.Decimal `json:"total_value"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	OrderID     string          `json:"order_id,omitempty"`
	Note        string          `json:"note,omitempty"`
	// Status is constant: the log is append-only, so a written record
	// is a completed one.
	Status string `json:"status"`
	// Direction is send or receive from the requesting user's side.
	// Only personal history views set it.
	Direction string    `json:"direction,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toBalanceViews(balances []*store.Balance) []balanceView {
	views := make([]balanceView, 0, len(balances))
	for _, b := range balances {
		views = append(views, balanceView{
			Symbol:    b.Symbol,
			Available: b.Available,
			Locked:    b.Locked,
			Total:     b.Total(),
		})
	}
	return views
}

func toTokenView(tok *store.Token) tokenView {
	return tokenView{
		Symbol:      tok.Symbol,
		Name:        tok.Name,
		TotalSupply: tok.TotalSupply,
		Creator:     tok.CreatorUsername,
		CreatedAt:   tok.CreatedAt,
	}
}

func toTokenViews(tokens []*store.Token) []tokenView {
	views := make([]tokenView, 0, len(tokens))
	for _, tok := range tokens {
		views = append(views, toTokenView(tok))
	}
	return views
}

func toOrderView(o *store.Order) orderView {
	view := orderView{
		ID:           o.ID,
		Type:         string(o.Type),
		TokenSymbol:  o.TokenSymbol,
		PairSymbol:   o.PairSymbol,
		Amount:       o.Amount,
		Price:        o.Price,
		TotalValue:   o.TotalValue,
		Creator:      o.CreatorUsername,
		Status:       string(o.Status),
		FilledAmount: o.FilledAmount,
		CreatedAt:    o.CreatedAt,
	}
	if !o.FilledAt.IsZero() {
		filledAt := o.FilledAt
		view.FilledAt = &filledAt
	}
	return view
}

func toOrderViews(orders []*store.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}
	return views
}

func toTxView(rec *store.Transaction) txView {
	return txView{
		ID:          rec.ID,
		Kind:        string(rec.Kind),
		TokenSymbol: rec.TokenSymbol,
		Amount:      rec.Amount,
		PairSymbol:  rec.PairSymbol,
		Price:       rec.Price,
		TotalValue:  rec.TotalValue,
		From:        rec.FromUsername,
		To:          rec.ToUsername,
		OrderID:     rec.OrderID,
		Note:        rec.Note,
		Status:      "completed",
		CreatedAt:   rec.CreatedAt,
	}
}

// toPersonalTxView adds the viewer's perspective to a ledger record.
func toPersonalTxView(rec *store.Transaction, viewerID string) txView {
	view := toTxView(rec)
	switch viewerID {
	case rec.FromID:
		view.Direction = "send"
	case rec.ToID:
		view.Direction = "receive"
	}
	return view
}

func toTxViews(recs []*store.Transaction) []txView {
	views := make([]txView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toTxView(rec))
	}
	return views
}

// numericString accepts both a JSON string and a bare JSON number, and
// carries the raw text through to the engine's parser. A JSON null
// stays empty so it reports as a missing field.
type numericString string

func (n *numericString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numericString(s)
		return nil
	}
	*n = numericString(data)
	return nil
}
