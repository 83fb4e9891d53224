package analyzer

import (
	"sort"

	"github.com/Eyali1001/harpoon/models"
)

// AggregateCategories groups accounted trades by category label. Unlabelled
// trades are excluded from the view but stay in the share denominator, which
// is the full trade count. Categories with no realized component report a
// nil P&L. The result covers every category, sorted by count descending with
// name ascending as the deterministic tie-break; callers expose only their
// configured top N.
func AggregateCategories(trades []AccountedTrade) []models.CategoryStat {
	type agg struct {
		count       int
		pnl         float64
		hasRealized bool
	}

	byCategory := make(map[string]*agg)
	for _, t := range trades {
		if t.Category == "" {
			continue
		}
		a, ok := byCategory[t.Category]
		if !ok {
			a = &agg{}
			byCategory[t.Category] = a
		}
		a.count++
		if t.Realized {
			a.pnl += t.RealizedDelta
			a.hasRealized = true
		}
	}

	total := len(trades)
	stats := make([]models.CategoryStat, 0, len(byCategory))
	for name, a := range byCategory {
		stat := models.CategoryStat{
			Category: name,
			Trades:   a.count,
		}
		if total > 0 {
			stat.Share = float64(a.count) / float64(total) * 100
		}
		if a.hasRealized {
			pnl := a.pnl
			stat.PnL = &pnl
		}
		stats = append(stats, stat)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Trades != stats[j].Trades {
			return stats[i].Trades > stats[j].Trades
		}
		return stats[i].Category < stats[j].Category
	})
	return stats
}
