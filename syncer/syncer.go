// Package syncer keeps the local trade cache consistent with the external
// trade source. Merging is idempotent under the trade identity key and the
// per-wallet checkpoint only advances after a full fetch has merged, so a
// failed or abandoned sync never leaves partial state behind.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Eyali1001/harpoon/api"
	"github.com/Eyali1001/harpoon/config"
	"github.com/Eyali1001/harpoon/models"
	"github.com/Eyali1001/harpoon/storage"
)

// Engine performs incremental per-wallet trade syncs.
type Engine struct {
	source api.TradeSource
	store  storage.DataStore
	cfg    config.SyncConfig
	locks  *walletLocks

	now func() time.Time
}

// New creates a sync engine.
func New(source api.TradeSource, store storage.DataStore, cfg config.SyncConfig) *Engine {
	return &Engine{
		source: source,
		store:  store,
		cfg:    cfg,
		locks:  newWalletLocks(),
		now:    time.Now,
	}
}

// Sync brings a wallet's trade cache up to date with the source.
//
// When the checkpoint is younger than the freshness TTL the source is not
// contacted at all. Otherwise the engine pages through events at or after the
// last observed block, merges each page idempotently, and commits the
// checkpoint once the whole fetch has merged. A source failure mid-fetch
// leaves the checkpoint untouched; pages merged before the failure stay, and
// re-merging them on retry is a no-op.
//
// Attempts for the same wallet are serialized; different wallets run
// concurrently.
func (e *Engine) Sync(ctx context.Context, wallet string) (*models.SyncResult, error) {
	release := e.locks.acquire(wallet)
	defer release()

	now := e.now().UTC()

	cp, err := e.store.GetCheckpoint(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	ttl := time.Duration(e.cfg.FreshnessTTLMins) * time.Minute
	if cp != nil && now.Sub(cp.LastSyncedAt) < ttl {
		return &models.SyncResult{Wallet: wallet, Skipped: true, LastBlock: cp.LastBlock}, nil
	}

	var sinceBlock int64
	if cp != nil {
		sinceBlock = cp.LastBlock
	}

	result := &models.SyncResult{Wallet: wallet, LastBlock: sinceBlock}

	pageToken := ""
	for {
		events, next, err := e.source.FetchTrades(ctx, wallet, sinceBlock, pageToken)
		if err != nil {
			return nil, fmt.Errorf("fetch trades for %s: %w", wallet, err)
		}

		if len(events) > 0 {
			inserted, err := e.store.UpsertTrades(ctx, events)
			if err != nil {
				return nil, fmt.Errorf("merge trades for %s: %w", wallet, err)
			}
			result.Fetched += len(events)
			result.Inserted += inserted

			for _, ev := range events {
				if ev.BlockNumber > result.LastBlock {
					result.LastBlock = ev.BlockNumber
				}
			}
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	if err := e.store.SaveCheckpoint(ctx, models.SyncCheckpoint{
		Wallet:       wallet,
		LastSyncedAt: now,
		LastBlock:    result.LastBlock,
	}); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	if result.Inserted > 0 {
		if err := e.store.InvalidateAnalyticsCache(ctx, wallet); err != nil {
			log.Warn().Err(err).Str("wallet", wallet).Msg("failed to invalidate analytics cache")
		}
	}

	log.Info().Str("wallet", wallet).
		Int("fetched", result.Fetched).
		Int("inserted", result.Inserted).
		Int64("last_block", result.LastBlock).
		Msg("sync complete")
	return result, nil
}
