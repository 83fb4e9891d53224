// Package analyzer derives positions, realized earnings, and behavioral
// analytics from a wallet's accumulated trade set. Everything here is a pure
// function over trades already in the cache; no I/O.
package analyzer

import (
	"sort"

	"github.com/Eyali1001/harpoon/models"
)

// PositionKey identifies one (market, outcome) exposure.
type PositionKey struct {
	MarketID string
	Outcome  string
}

// AccountedTrade pairs a trade with the realized earnings it locked in
// during replay. Realized is true only for non-degenerate sells and redeems.
type AccountedTrade struct {
	models.Trade
	RealizedDelta float64
	Realized      bool
}

// Accounting is the result of replaying a wallet's trades.
type Accounting struct {
	Positions map[PositionKey]*models.Position
	Realized  *float64 // nil when no sell or redeem qualified
	Trades    []AccountedTrade
}

type book struct {
	shares   float64
	cost     float64
	realized float64
}

// AccountPositions replays trades in chronological order and reconstructs
// net share positions per (market, outcome) along with realized earnings.
//
// Input order does not matter: trades are sorted by timestamp, then block
// number, then tx hash before replay, so the output is deterministic for any
// permutation of the same set.
func AccountPositions(trades []models.Trade) *Accounting {
	ordered := make([]models.Trade, len(trades))
	copy(ordered, trades)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		if ordered[i].BlockNumber != ordered[j].BlockNumber {
			return ordered[i].BlockNumber < ordered[j].BlockNumber
		}
		return ordered[i].TxHash < ordered[j].TxHash
	})

	// Redeems come off-chain without an outcome label; attribute them to the
	// outcome this wallet bought in the same market.
	outcomeByMarket := make(map[string]string)
	for _, t := range ordered {
		if t.Side == models.SideBuy && t.MarketID != "" && t.Outcome != "" {
			outcomeByMarket[t.MarketID] = t.Outcome
		}
	}

	books := make(map[PositionKey]*book)
	titles := make(map[PositionKey]string)
	acc := &Accounting{
		Positions: make(map[PositionKey]*models.Position),
		Trades:    make([]AccountedTrade, 0, len(ordered)),
	}

	var realized float64
	anyRealized := false

	for _, t := range ordered {
		at := AccountedTrade{Trade: t}

		outcome := t.Outcome
		if outcome == "" && t.Side == models.SideRedeem {
			outcome = outcomeByMarket[t.MarketID]
		}
		key := PositionKey{MarketID: t.MarketID, Outcome: outcome}
		if t.MarketTitle != "" {
			titles[key] = t.MarketTitle
		}

		b, ok := books[key]
		if !ok {
			b = &book{}
			books[key] = b
		}

		price := t.PriceValue()

		switch {
		case t.Amount <= 0:
			// degenerate, contributes nothing
		case t.Side == models.SideBuy:
			if price > 0 {
				b.shares += t.Amount / price
				b.cost += t.Amount
			}
		case t.Side == models.SideSell:
			if price > 0 {
				removed := t.Amount / price
				if removed > b.shares {
					removed = b.shares
				}
				var costRemoved float64
				if b.shares > 0 {
					costRemoved = b.cost * (removed / b.shares)
				}
				b.shares -= removed
				b.cost -= costRemoved

				at.RealizedDelta = t.Amount - costRemoved
				at.Realized = true
				b.realized += at.RealizedDelta
				realized += at.RealizedDelta
				anyRealized = true
			}
		case t.Side == models.SideRedeem:
			at.RealizedDelta = t.Amount - b.cost
			at.Realized = true
			b.realized += at.RealizedDelta
			realized += at.RealizedDelta
			anyRealized = true

			b.shares = 0
			b.cost = 0
		}

		acc.Trades = append(acc.Trades, at)
	}

	for key, b := range books {
		acc.Positions[key] = &models.Position{
			MarketID:    key.MarketID,
			MarketTitle: titles[key],
			Outcome:     key.Outcome,
			Shares:      b.shares,
			CostBasis:   b.cost,
			Realized:    b.realized,
		}
	}
	if anyRealized {
		acc.Realized = &realized
	}
	return acc
}

// TotalEarnings is the naive cash-flow view served alongside trade pages:
// everything that came in via sells and redeems minus everything spent on
// buys. Nil when the wallet has no trades.
func TotalEarnings(trades []models.Trade) *float64 {
	if len(trades) == 0 {
		return nil
	}
	var total float64
	for _, t := range trades {
		switch t.Side {
		case models.SideBuy:
			total -= t.Amount
		case models.SideSell, models.SideRedeem:
			total += t.Amount
		}
	}
	return &total
}
