package market

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one sample on a token's chart.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// SeriesGenerator draws synthetic price histories. Tokens trade far
// too rarely to plot real candles, so the chart shows an invented path
// that still lands exactly on the latest trade price.
type SeriesGenerator struct {
	rng *rand.Rand
}

// NewSeriesGenerator seeds the walk from the symbol, so every request
// for the same token draws the same history instead of repainting the
// chart on each poll.
func NewSeriesGenerator(symbol string) *SeriesGenerator {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return NewSeriesGeneratorWithSeed(int64(h.Sum64()))
}

// NewSeriesGeneratorWithSeed creates a generator with a specific seed (for testing)
func NewSeriesGeneratorWithSeed(seed int64) *SeriesGenerator {
	return &SeriesGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Series returns hourly samples ending now, mean-reverting around
// anchor and eased onto it at the end. A non-positive anchor falls
// back to a unit price.
func (g *SeriesGenerator) Series(anchor decimal.Decimal, points int) []PricePoint {
	if points <= 0 {
		return nil
	}

	target := anchor.InexactFloat64()
	if target <= 0 {
		target = 1
	}

	closes := g.walk(target, points)
	g.pullToTarget(closes, target)

	end := time.Now().Truncate(time.Hour)
	series := make([]PricePoint, points)
	for i, c := range closes {
		series[i] = PricePoint{
			Time:  end.Add(-time.Duration(points-1-i) * time.Hour),
			Price: decimal.NewFromFloat(c).Round(6),
		}
	}
	if anchor.IsPositive() {
		series[points-1].Price = anchor
	}
	return series
}

// walk runs a mean-reverting random walk around target. The floor at
// a tenth of target keeps the path positive through bad draws.
func (g *SeriesGenerator) walk(target float64, points int) []float64 {
	closes := make([]float64, points)
	price := target * (0.9 + g.rng.Float64()*0.2)

	reversion := 0.05
	stepVol := 0.04 / math.Sqrt(float64(points))

	for i := range closes {
		drift := reversion * (target - price)
		noise := g.rng.NormFloat64() * stepVol * price

		price += drift + noise
		if price < target*0.1 {
			price = target * 0.1
		}
		closes[i] = price
	}
	return closes
}

// pullToTarget eases the tail of the walk onto the target so the chart
// meets the latest trade price instead of jumping to it.
func (g *SeriesGenerator) pullToTarget(closes []float64, target float64) {
	n := len(closes)
	pull := n / 3
	if pull < 2 {
		closes[n-1] = target
		return
	}

	diff := target - closes[n-1]
	start := n - pull
	for i := start; i < n; i++ {
		// Ease-in curve
		progress := float64(i-start+1) / float64(pull)
		closes[i] += diff * progress * progress
	}
}
