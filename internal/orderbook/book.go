package orderbook

import (
	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/shopspring/decimal"

	"tokenmart/internal/store"
)

// Level is one aggregated price point on a side of the book
type Level struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Total  decimal.Decimal `json:"total"`
	Orders int             `json:"orders"`
}

// Book is a point-in-time depth snapshot for a single token
type Book struct {
	TokenSymbol string  `json:"token_symbol"`
	Bids        []Level `json:"bids"` // Sorted descending by price (best bid first)
	Asks        []Level `json:"asks"` // Sorted ascending by price (best ask first)
}

// bidComparator orders prices descending so tree iteration yields the
// best bid first.
func bidComparator(a, b interface{}) int {
	aPrice := a.(decimal.Decimal)
	bPrice := b.(decimal.Decimal)

	if aPrice.GreaterThan(bPrice) {
		return -1
	}
	if aPrice.LessThan(bPrice) {
		return 1
	}
	return 0
}

// askComparator orders prices ascending so tree iteration yields the
// best ask first.
func askComparator(a, b interface{}) int {
	aPrice := a.(decimal.Decimal)
	bPrice := b.(decimal.Decimal)

	if aPrice.LessThan(bPrice) {
		return -1
	}
	if aPrice.GreaterThan(bPrice) {
		return 1
	}
	return 0
}

// Build aggregates the open orders for symbol into a depth snapshot.
// Orders for other tokens or in a non-open status are skipped, the
// input is never modified, and grouping is by exact price value, so
// 5 and 5.0 land on the same level.
func Build(symbol string, open []*store.Order) Book {
	bids := rbt.NewWith(bidComparator)
	asks := rbt.NewWith(askComparator)

	for _, o := range open {
		if o.TokenSymbol != symbol || o.Status != store.OrderStatusOpen {
			continue
		}
		switch o.Type {
		case store.OrderTypeBuy:
			accumulate(bids, o)
		case store.OrderTypeSell:
			accumulate(asks, o)
		}
	}

	return Book{
		TokenSymbol: symbol,
		Bids:        flatten(bids),
		Asks:        flatten(asks),
	}
}

// accumulate folds one order into the level at its price. Lookups go
// through the tree comparator, so equal prices with different decimal
// representations share a level.
func accumulate(tree *rbt.Tree, o *store.Order) {
	if v, found := tree.Get(o.Price); found {
		lvl := v.(*Level)
		lvl.Amount = lvl.Amount.Add(o.Amount)
		lvl.Total = lvl.Total.Add(o.TotalValue)
		lvl.Orders++
		return
	}
	tree.Put(o.Price, &Level{
		Price:  o.Price,
		Amount: o.Amount,
		Total:  o.TotalValue,
		Orders: 1,
	})
}

func flatten(tree *rbt.Tree) []Level {
	levels := make([]Level, 0, tree.Size())
	it := tree.Iterator()
	for it.Next() {
		levels = append(levels, *it.Value().(*Level))
	}
	return levels
}

// BestBid returns the highest buy level, if any.
func (b Book) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest sell level, if any.
func (b Book) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Spread is best ask minus best bid. The bool is false when either
// side is empty.
func (b Book) Spread() (decimal.Decimal, bool) {
	bid, haveBid := b.BestBid()
	ask, haveAsk := b.BestAsk()
	if !haveBid || !haveAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}
