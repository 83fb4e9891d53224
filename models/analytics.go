package models

// Position is the net outstanding exposure to one (market, outcome) pair
// after replaying a wallet's trades. Derived, never persisted.
type Position struct {
	MarketID    string  `json:"market_id"`
	MarketTitle string  `json:"market_title,omitempty"`
	Outcome     string  `json:"outcome,omitempty"`
	Shares      float64 `json:"shares"`
	CostBasis   float64 `json:"cost_basis"`
	Realized    float64 `json:"realized"`
}

// TimezoneAnalysis is the inferred trading timezone for a wallet.
// All pointer fields are nil when the wallet has no trades.
type TimezoneAnalysis struct {
	HourlyHistogram   [24]int  `json:"hourly_histogram"`
	TotalTrades       int      `json:"total_trades"`
	ActivityCenterUTC *float64 `json:"activity_center_utc"`
	UTCOffset         *int     `json:"utc_offset"`
	TimezoneName      *string  `json:"timezone_name"`
}

// InsiderMetrics aggregates trades in resolved markets. Rate fields are nil
// whenever their denominator is zero.
type InsiderMetrics struct {
	TotalTrades       int      `json:"total_trades"`
	ResolvedTrades    int      `json:"resolved_trades"`
	Wins              int      `json:"wins"`
	WinRate           *float64 `json:"win_rate"`            // percent
	ExpectedWinRate   *float64 `json:"expected_win_rate"`   // percent, mean entry price
	WinRateEdge       *float64 `json:"win_rate_edge"`       // percent
	ContrarianTrades  int      `json:"contrarian_trades"`
	ContrarianWins    int      `json:"contrarian_wins"`
	ContrarianWinRate *float64 `json:"contrarian_win_rate"` // percent
	AvgHoursToClose   *float64 `json:"avg_hours_to_close"`
	TradesWithin24h   int      `json:"trades_within_24h"`
	TradesWithin1h    int      `json:"trades_within_1h"`
}

// CategoryStat aggregates trades sharing one category label.
type CategoryStat struct {
	Category string   `json:"category"`
	Trades   int      `json:"trades"`
	Share    float64  `json:"share"` // percent of the wallet's trades
	PnL      *float64 `json:"pnl"`   // nil when nothing realized in the category
}

// AnalyticsSummary is the full derived view served for one wallet.
type AnalyticsSummary struct {
	Wallet        string           `json:"wallet_address"`
	TotalTrades   int              `json:"total_trades"`
	TotalEarnings *float64         `json:"total_earnings"`
	Timezone      TimezoneAnalysis `json:"timezone_analysis"`
	TopCategories []CategoryStat   `json:"top_categories"`
	Insider       InsiderMetrics   `json:"insider_metrics"`
}
