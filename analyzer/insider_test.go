package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eyali1001/harpoon/config"
	"github.com/Eyali1001/harpoon/models"
)

func TestComputeInsiderMetricsNoResolvedMarkets(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	trades := []models.Trade{
		tradeAt("0x1", base, 1, models.SideBuy, "m1", "Yes", 50, fptr(0.4)),
		tradeAt("0x2", base, 2, models.SideBuy, "m2", "No", 50, fptr(0.7)),
	}

	m := ComputeInsiderMetrics(trades, map[string]models.Resolution{}, config.Default().Analytics)

	assert.Equal(t, 2, m.TotalTrades)
	assert.Zero(t, m.ResolvedTrades)
	assert.Nil(t, m.WinRate)
	assert.Nil(t, m.ExpectedWinRate)
	assert.Nil(t, m.WinRateEdge)
	assert.Nil(t, m.ContrarianWinRate)
	assert.Nil(t, m.AvgHoursToClose)
}

func TestComputeInsiderMetricsWinRates(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	trades := []models.Trade{
		// winner bought cheap: contrarian win
		tradeAt("0x1", base, 1, models.SideBuy, "m1", "Yes", 50, fptr(0.3)),
		// loser bought as favorite
		tradeAt("0x2", base, 2, models.SideBuy, "m2", "Yes", 50, fptr(0.8)),
		// unresolved market, excluded from rates
		tradeAt("0x3", base, 3, models.SideBuy, "m3", "Yes", 50, fptr(0.5)),
		// no outcome label, excluded
		tradeAt("0x4", base, 4, models.SideRedeem, "m1", "", 50, nil),
	}

	resolutions := map[string]models.Resolution{
		"m1": {Resolved: true, WinningOutcome: "Yes", ClosedAt: base.Add(12 * time.Hour)},
		"m2": {Resolved: true, WinningOutcome: "No", ClosedAt: base.Add(30 * time.Minute)},
	}

	m := ComputeInsiderMetrics(trades, resolutions, config.Default().Analytics)

	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.ResolvedTrades)
	assert.Equal(t, 1, m.Wins)

	require.NotNil(t, m.WinRate)
	assert.InDelta(t, 50, *m.WinRate, 1e-9)
	require.NotNil(t, m.ExpectedWinRate)
	assert.InDelta(t, 55, *m.ExpectedWinRate, 1e-9) // mean of 0.3 and 0.8
	require.NotNil(t, m.WinRateEdge)
	assert.InDelta(t, -5, *m.WinRateEdge, 1e-9)

	assert.Equal(t, 1, m.ContrarianTrades)
	assert.Equal(t, 1, m.ContrarianWins)
	require.NotNil(t, m.ContrarianWinRate)
	assert.InDelta(t, 100, *m.ContrarianWinRate, 1e-9)

	require.NotNil(t, m.AvgHoursToClose)
	assert.InDelta(t, 6.25, *m.AvgHoursToClose, 1e-9) // mean of 12h and 0.5h
	assert.Equal(t, 2, m.TradesWithin24h)
	assert.Equal(t, 1, m.TradesWithin1h)
}

func TestComputeInsiderMetricsThresholdIsExclusive(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	trades := []models.Trade{
		tradeAt("0x1", base, 1, models.SideBuy, "m1", "Yes", 50, fptr(0.5)),
	}
	resolutions := map[string]models.Resolution{
		"m1": {Resolved: true, WinningOutcome: "Yes"},
	}

	m := ComputeInsiderMetrics(trades, resolutions, config.Default().Analytics)

	// Exactly at the threshold is not a bet against the favorite.
	assert.Zero(t, m.ContrarianTrades)
	assert.Nil(t, m.ContrarianWinRate)
	// Resolution without a close time contributes nothing to timing.
	assert.Nil(t, m.AvgHoursToClose)
}

func TestComputeInsiderMetricsEmpty(t *testing.T) {
	m := ComputeInsiderMetrics(nil, nil, config.Default().Analytics)

	assert.Zero(t, m.TotalTrades)
	assert.Nil(t, m.WinRate)
	assert.Nil(t, m.ExpectedWinRate)
	assert.Nil(t, m.WinRateEdge)
	assert.Nil(t, m.ContrarianWinRate)
	assert.Nil(t, m.AvgHoursToClose)
}
