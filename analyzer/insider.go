package analyzer

import (
	"github.com/Eyali1001/harpoon/config"
	"github.com/Eyali1001/harpoon/models"
)

// ComputeInsiderMetrics measures whether a trader beats the prices they pay.
//
// Only trades in resolved markets enter the rate computations; everything
// else still counts toward TotalTrades. The entry price is a calibrated
// probability, so its mean is the win rate a zero-edge trader would have —
// the gap between observed and expected win rate is the trader's edge.
// Trades below the contrarian threshold bet against the market-implied
// favorite and are tracked separately. Every rate is nil when its
// denominator is zero.
func ComputeInsiderMetrics(trades []models.Trade, resolutions map[string]models.Resolution, cfg config.AnalyticsConfig) models.InsiderMetrics {
	m := models.InsiderMetrics{TotalTrades: len(trades)}

	var priceSum float64
	var hoursSum float64
	timed := 0

	for _, t := range trades {
		if t.Outcome == "" || t.Price == nil {
			continue
		}
		res, ok := resolutions[t.MarketID]
		if !ok || !res.Resolved {
			continue
		}

		m.ResolvedTrades++
		price := *t.Price
		priceSum += price

		won := t.Outcome == res.WinningOutcome
		if won {
			m.Wins++
		}

		if price < cfg.ContrarianThreshold {
			m.ContrarianTrades++
			if won {
				m.ContrarianWins++
			}
		}

		if !res.ClosedAt.IsZero() && res.ClosedAt.After(t.Timestamp) {
			hours := res.ClosedAt.Sub(t.Timestamp).Hours()
			hoursSum += hours
			timed++
			if hours <= 24 {
				m.TradesWithin24h++
			}
			if hours <= 1 {
				m.TradesWithin1h++
			}
		}
	}

	if m.ResolvedTrades > 0 {
		winRate := float64(m.Wins) / float64(m.ResolvedTrades) * 100
		expected := priceSum / float64(m.ResolvedTrades) * 100
		edge := winRate - expected
		m.WinRate = &winRate
		m.ExpectedWinRate = &expected
		m.WinRateEdge = &edge
	}
	if m.ContrarianTrades > 0 {
		rate := float64(m.ContrarianWins) / float64(m.ContrarianTrades) * 100
		m.ContrarianWinRate = &rate
	}
	if timed > 0 {
		avg := hoursSum / float64(timed)
		m.AvgHoursToClose = &avg
	}
	return m
}
