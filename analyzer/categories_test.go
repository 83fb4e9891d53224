package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eyali1001/harpoon/models"
)

func accounted(category string, realized bool, delta float64) AccountedTrade {
	return AccountedTrade{
		Trade: models.Trade{
			Wallet:    "0xabc",
			Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Category:  category,
			Side:      models.SideBuy,
			Amount:    10,
		},
		RealizedDelta: delta,
		Realized:      realized,
	}
}

func TestAggregateCategoriesTieBreaksByName(t *testing.T) {
	trades := []AccountedTrade{
		accounted("Sports", false, 0),
		accounted("Sports", false, 0),
		accounted("Sports", false, 0),
		accounted("Crypto", false, 0),
		accounted("Crypto", false, 0),
		accounted("Crypto", false, 0),
		accounted("Politics", false, 0),
	}

	stats := AggregateCategories(trades)
	require.Len(t, stats, 3)

	// Crypto and Sports both have 3 trades; names break the tie.
	assert.Equal(t, "Crypto", stats[0].Category)
	assert.Equal(t, 3, stats[0].Trades)
	assert.Equal(t, "Sports", stats[1].Category)
	assert.Equal(t, 3, stats[1].Trades)
	assert.Equal(t, "Politics", stats[2].Category)
	assert.Equal(t, 1, stats[2].Trades)
}

func TestAggregateCategoriesShareAndPnL(t *testing.T) {
	trades := []AccountedTrade{
		accounted("Sports", true, 25),
		accounted("Sports", true, -10),
		accounted("Crypto", false, 0),
		accounted("", false, 0), // unlabelled, counts only in the denominator
	}

	stats := AggregateCategories(trades)
	require.Len(t, stats, 2)

	assert.Equal(t, "Sports", stats[0].Category)
	assert.InDelta(t, 50, stats[0].Share, 1e-9)
	require.NotNil(t, stats[0].PnL)
	assert.InDelta(t, 15, *stats[0].PnL, 1e-9)

	assert.Equal(t, "Crypto", stats[1].Category)
	assert.InDelta(t, 25, stats[1].Share, 1e-9)
	assert.Nil(t, stats[1].PnL, "nothing realized in the category")
}

func TestAggregateCategoriesEmpty(t *testing.T) {
	assert.Empty(t, AggregateCategories(nil))
}
