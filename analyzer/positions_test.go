package analyzer

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eyali1001/harpoon/models"
)

func fptr(v float64) *float64 { return &v }

func tradeAt(tx string, ts time.Time, block int64, side models.Side, market, outcome string, amount float64, price *float64) models.Trade {
	return models.Trade{
		TxHash:      tx,
		Wallet:      "0xabc",
		Timestamp:   ts,
		MarketID:    market,
		Outcome:     outcome,
		Side:        side,
		Amount:      amount,
		Price:       price,
		BlockNumber: block,
	}
}

func TestAccountPositionsBuyThenRedeem(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// 100 USDC at 0.50 buys 200 shares; redeeming for 60 realizes -40.
	acc := AccountPositions([]models.Trade{
		tradeAt("0x1", base, 100, models.SideBuy, "m1", "Yes", 100, fptr(0.5)),
		tradeAt("0x2", base.Add(time.Hour), 200, models.SideRedeem, "m1", "", 60, nil),
	})

	require.NotNil(t, acc.Realized)
	assert.InDelta(t, -40, *acc.Realized, 1e-9)

	pos, ok := acc.Positions[PositionKey{MarketID: "m1", Outcome: "Yes"}]
	require.True(t, ok, "redeem should inherit the bought outcome")
	assert.Zero(t, pos.Shares)
	assert.Zero(t, pos.CostBasis)
	assert.InDelta(t, -40, pos.Realized, 1e-9)
}

func TestAccountPositionsSellBeyondBasisClamps(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Buy 50 shares, then sell an amount that would remove 100 shares.
	acc := AccountPositions([]models.Trade{
		tradeAt("0x1", base, 100, models.SideBuy, "m1", "Yes", 25, fptr(0.5)),
		tradeAt("0x2", base.Add(time.Hour), 200, models.SideSell, "m1", "Yes", 60, fptr(0.6)),
	})

	pos := acc.Positions[PositionKey{MarketID: "m1", Outcome: "Yes"}]
	require.NotNil(t, pos)
	assert.Zero(t, pos.Shares, "shares floor at zero")
	assert.Zero(t, pos.CostBasis)

	// Only the 50 held shares carry basis out: realized = 60 - 25.
	require.NotNil(t, acc.Realized)
	assert.InDelta(t, 35, *acc.Realized, 1e-9)
}

func TestAccountPositionsProportionalSell(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Buy 100 shares for 40, sell half for 30.
	acc := AccountPositions([]models.Trade{
		tradeAt("0x1", base, 100, models.SideBuy, "m1", "Yes", 40, fptr(0.4)),
		tradeAt("0x2", base.Add(time.Hour), 200, models.SideSell, "m1", "Yes", 30, fptr(0.6)),
	})

	pos := acc.Positions[PositionKey{MarketID: "m1", Outcome: "Yes"}]
	require.NotNil(t, pos)
	assert.InDelta(t, 50, pos.Shares, 1e-9)
	assert.InDelta(t, 20, pos.CostBasis, 1e-9)
	require.NotNil(t, acc.Realized)
	assert.InDelta(t, 10, *acc.Realized, 1e-9)
}

func TestAccountPositionsPermutationInvariant(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	trades := []models.Trade{
		tradeAt("0x1", base, 1, models.SideBuy, "m1", "Yes", 100, fptr(0.5)),
		tradeAt("0x2", base.Add(1*time.Hour), 2, models.SideSell, "m1", "Yes", 60, fptr(0.6)),
		tradeAt("0x3", base.Add(2*time.Hour), 3, models.SideBuy, "m2", "No", 30, fptr(0.3)),
		tradeAt("0x4", base.Add(3*time.Hour), 4, models.SideRedeem, "m2", "", 90, nil),
		tradeAt("0x5", base.Add(3*time.Hour), 5, models.SideBuy, "m1", "Yes", 20, fptr(0.8)),
	}

	want := AccountPositions(trades)
	require.NotNil(t, want.Realized)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.Trade, len(trades))
		copy(shuffled, trades)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := AccountPositions(shuffled)
		require.NotNil(t, got.Realized)
		assert.InDelta(t, *want.Realized, *got.Realized, 1e-9)
		require.Len(t, got.Positions, len(want.Positions))
		for key, wp := range want.Positions {
			gp, ok := got.Positions[key]
			require.True(t, ok)
			assert.InDelta(t, wp.Shares, gp.Shares, 1e-9)
			assert.InDelta(t, wp.CostBasis, gp.CostBasis, 1e-9)
			assert.InDelta(t, wp.Realized, gp.Realized, 1e-9)
		}
	}
}

func TestAccountPositionsDegenerateTrades(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	acc := AccountPositions([]models.Trade{
		tradeAt("0x1", base, 1, models.SideBuy, "m1", "Yes", 0, fptr(0.5)),
		tradeAt("0x2", base, 2, models.SideBuy, "m1", "Yes", 50, nil),
		tradeAt("0x3", base, 3, models.SideSell, "m1", "Yes", 50, fptr(0)),
	})

	assert.Nil(t, acc.Realized, "no qualified sell or redeem")
	pos := acc.Positions[PositionKey{MarketID: "m1", Outcome: "Yes"}]
	require.NotNil(t, pos)
	assert.Zero(t, pos.Shares)
	assert.Zero(t, pos.CostBasis)
}

func TestAccountPositionsEmpty(t *testing.T) {
	acc := AccountPositions(nil)
	assert.Nil(t, acc.Realized)
	assert.Empty(t, acc.Positions)
	assert.Empty(t, acc.Trades)
}

func TestTotalEarnings(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, TotalEarnings(nil))

	got := TotalEarnings([]models.Trade{
		tradeAt("0x1", base, 1, models.SideBuy, "m1", "Yes", 100, fptr(0.5)),
		tradeAt("0x2", base, 2, models.SideSell, "m1", "Yes", 30, fptr(0.6)),
		tradeAt("0x3", base, 3, models.SideRedeem, "m1", "", 50, nil),
	})
	require.NotNil(t, got)
	assert.InDelta(t, -20, *got, 1e-9)
}
