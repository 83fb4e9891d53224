package api

import (
	"context"
	"errors"

	"github.com/Eyali1001/harpoon/models"
)

// ErrSourceUnavailable wraps every transport, decode, or upstream failure so
// callers can tell an unreachable source from an empty result set.
var ErrSourceUnavailable = errors.New("source unavailable")

// TradeSource fetches a wallet's trade events from an external indexer,
// paginated via an opaque token. Pages are ordered by block ascending and the
// final page carries an empty next token.
type TradeSource interface {
	FetchTrades(ctx context.Context, wallet string, sinceBlock int64, pageToken string) ([]models.Trade, string, error)
}

// ResolutionSource reports whether a market has resolved, which outcome won,
// and when the market closed.
type ResolutionSource interface {
	GetResolution(ctx context.Context, marketID, outcome string) (*models.Resolution, error)
}

// ProfileResolver turns a wallet address, profile URL, or username into a
// canonical lowercase wallet address and exposes public profile metadata.
type ProfileResolver interface {
	ResolveAddress(ctx context.Context, input string) (string, error)
	FetchProfile(ctx context.Context, address string) (*models.ProfileInfo, error)
}
