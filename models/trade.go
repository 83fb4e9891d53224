package models

import "time"

// Side classifies what a trade event did with collateral.
type Side string

const (
	SideBuy    Side = "buy"
	SideSell   Side = "sell"
	SideRedeem Side = "redeem"
)

// Trade is one on-chain buy/sell/redeem event for a wallet. Records are
// immutable once stored; the (TxHash, Side, MarketID, Outcome) combination is
// the identity key within a wallet's record set.
type Trade struct {
	TxHash      string    `json:"tx_hash"`
	Wallet      string    `json:"wallet_address"`
	Timestamp   time.Time `json:"timestamp"`
	MarketID    string    `json:"market_id,omitempty"`
	MarketTitle string    `json:"market_title,omitempty"`
	Category    string    `json:"category,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Side        Side      `json:"side"`
	Amount      float64   `json:"amount"` // collateral units (USDC)
	Price       *float64  `json:"price"`  // in [0,1]; nil for redeems
	TokenID     string    `json:"token_id,omitempty"`
	BlockNumber int64     `json:"block_number"`
}

// Key returns the identity key a re-sync must be idempotent under.
func (t Trade) Key() string {
	return t.TxHash + "|" + string(t.Side) + "|" + t.MarketID + "|" + t.Outcome
}

// PriceValue returns the entry price, or 0 when the event carries none.
func (t Trade) PriceValue() float64 {
	if t.Price == nil {
		return 0
	}
	return *t.Price
}

// SyncCheckpoint records per-wallet sync freshness. LastBlock never regresses
// across updates for the same wallet.
type SyncCheckpoint struct {
	Wallet       string    `json:"wallet_address"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	LastBlock    int64     `json:"last_block_number"`
}

// SyncResult summarizes one sync attempt.
type SyncResult struct {
	Wallet   string `json:"wallet_address"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Skipped  bool   `json:"skipped"` // checkpoint was fresh, source not contacted
	LastBlock int64 `json:"last_block_number"`
}

// Resolution is the outcome of a resolved market as reported by the
// resolution source.
type Resolution struct {
	Resolved       bool      `json:"resolved"`
	WinningOutcome string    `json:"winning_outcome,omitempty"`
	ClosedAt       time.Time `json:"closed_at,omitzero"`
}

// ProfileInfo is the public Polymarket profile attached to trade pages.
type ProfileInfo struct {
	Name         string `json:"name,omitempty"`
	Pseudonym    string `json:"pseudonym,omitempty"`
	Bio          string `json:"bio,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
	ProfileURL   string `json:"profile_url,omitempty"`
}
