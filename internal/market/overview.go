package market

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"tokenmart/internal/store"
)

// TokenStats summarizes one token's trading activity for the market
// overview. All figures come from the settled trade log; tokens that
// have never traded report zeroes.
type TokenStats struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	LastPrice   decimal.Decimal `json:"last_price"`
	Change      decimal.Decimal `json:"change"` // percent, first to last trade in the window
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Volume      decimal.Decimal `json:"volume"`       // token units traded
	QuoteVolume decimal.Decimal `json:"quote_volume"` // quote units traded
	Trades      int             `json:"trades"`
}

// Overview computes per-token statistics from a window of ledger
// entries. Non-trade entries are skipped, token order is preserved,
// and the inputs are never modified.
func Overview(tokens []*store.Token, ledger []*store.Transaction) []TokenStats {
	trades := lo.Filter(ledger, func(rec *store.Transaction, _ int) bool {
		return rec.Kind == store.TxKindTrade
	})
	bySymbol := lo.GroupBy(trades, func(rec *store.Transaction) string {
		return rec.TokenSymbol
	})

	return lo.Map(tokens, func(tok *store.Token, _ int) TokenStats {
		stats := TokenStats{
			Symbol:      tok.Symbol,
			Name:        tok.Name,
			TotalSupply: tok.TotalSupply,
		}

		group := bySymbol[tok.Symbol]
		if len(group) == 0 {
			return stats
		}

		// Oldest first, so first/last give the window change.
		group = append([]*store.Transaction(nil), group...)
		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})

		first, last := group[0], group[len(group)-1]
		stats.LastPrice = last.Price
		if first.Price.IsPositive() {
			stats.Change = last.Price.Sub(first.Price).Div(first.Price).Mul(decimal.NewFromInt(100))
		}

		stats.High = lo.MaxBy(group, func(a, b *store.Transaction) bool {
			return a.Price.GreaterThan(b.Price)
		}).Price
		stats.Low = lo.MinBy(group, func(a, b *store.Transaction) bool {
			return a.Price.LessThan(b.Price)
		}).Price

		stats.Volume = lo.Reduce(group, func(sum decimal.Decimal, rec *store.Transaction, _ int) decimal.Decimal {
			return sum.Add(rec.Amount)
		}, decimal.Zero)
		stats.QuoteVolume = lo.Reduce(group, func(sum decimal.Decimal, rec *store.Transaction, _ int) decimal.Decimal {
			return sum.Add(rec.TotalValue)
		}, decimal.Zero)
		stats.Trades = len(group)

		return stats
	})
}
