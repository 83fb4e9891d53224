// Package service composes the sync engine, trade store, and analytics into
// the views served to callers. Within one call the analytics always observe a
// snapshot at least as fresh as the sync that just completed.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Eyali1001/harpoon/analyzer"
	"github.com/Eyali1001/harpoon/api"
	"github.com/Eyali1001/harpoon/config"
	"github.com/Eyali1001/harpoon/models"
	"github.com/Eyali1001/harpoon/storage"
	"github.com/Eyali1001/harpoon/syncer"
)

// Service handles business logic and coordinates between the sync engine,
// storage, and analyzer.
type Service struct {
	store      storage.DataStore
	engine     *syncer.Engine
	resolution api.ResolutionSource
	profiles   api.ProfileResolver
	cfg        *config.Config
}

// TradeView is one served trade with its explorer link.
type TradeView struct {
	models.Trade
	PolygonscanURL string `json:"polygonscan_url"`
}

// TradePage is one page of a wallet's trade history, newest first.
type TradePage struct {
	Address       string              `json:"address"`
	Profile       *models.ProfileInfo `json:"profile,omitempty"`
	Trades        []TradeView         `json:"trades"`
	TotalCount    int                 `json:"total_count"`
	Page          int                 `json:"page"`
	Limit         int                 `json:"limit"`
	TotalEarnings *float64            `json:"total_earnings"`
}

// NewService creates a new service.
func NewService(store storage.DataStore, engine *syncer.Engine, resolution api.ResolutionSource, profiles api.ProfileResolver, cfg *config.Config) *Service {
	return &Service{
		store:      store,
		engine:     engine,
		resolution: resolution,
		profiles:   profiles,
		cfg:        cfg,
	}
}

// ResolveWallet turns user input (address, profile URL, or username) into a
// canonical wallet address.
func (s *Service) ResolveWallet(ctx context.Context, input string) (string, error) {
	return s.profiles.ResolveAddress(ctx, input)
}

// GetTradesPage syncs the wallet and returns one page of its history,
// chronologically descending, with profile info and the cash-flow earnings
// total (sells plus redeems minus buys).
func (s *Service) GetTradesPage(ctx context.Context, wallet string, page, limit int) (*TradePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > s.cfg.Pagination.MaxPageSize {
		limit = s.cfg.Pagination.DefaultPageSize
	}

	if _, err := s.engine.Sync(ctx, wallet); err != nil {
		return nil, err
	}

	total, err := s.store.CountTrades(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("count trades: %w", err)
	}

	trades, err := s.store.ListTradesPage(ctx, wallet, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	all, err := s.store.ListTrades(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	views := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, TradeView{
			Trade:          t,
			PolygonscanURL: "https://polygonscan.com/tx/" + t.TxHash,
		})
	}

	profile, err := s.profiles.FetchProfile(ctx, wallet)
	if err != nil {
		log.Debug().Err(err).Str("wallet", wallet).Msg("profile lookup failed")
	}

	return &TradePage{
		Address:       wallet,
		Profile:       profile,
		Trades:        views,
		TotalCount:    total,
		Page:          page,
		Limit:         limit,
		TotalEarnings: analyzer.TotalEarnings(all),
	}, nil
}

// GetAnalyticsSummary syncs the wallet and returns its derived analytics.
// Results are cached and validated against the trade count, so unchanged
// wallets are served without recomputation.
func (s *Service) GetAnalyticsSummary(ctx context.Context, wallet string) (*models.AnalyticsSummary, error) {
	if _, err := s.engine.Sync(ctx, wallet); err != nil {
		return nil, err
	}

	total, err := s.store.CountTrades(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("count trades: %w", err)
	}

	if cached, cachedCount, err := s.store.GetAnalyticsCache(ctx, wallet); err == nil && cached != "" && cachedCount == total {
		var summary models.AnalyticsSummary
		if err := json.Unmarshal([]byte(cached), &summary); err == nil {
			log.Debug().Str("wallet", wallet).Int("trades", total).Msg("analytics cache hit")
			return &summary, nil
		}
	}

	trades, err := s.store.ListTrades(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	resolutions, err := s.lookupResolutions(ctx, trades)
	if err != nil {
		return nil, err
	}

	acc := analyzer.AccountPositions(trades)

	categories := analyzer.AggregateCategories(acc.Trades)
	if len(categories) > s.cfg.Analytics.TopCategories {
		categories = categories[:s.cfg.Analytics.TopCategories]
	}

	summary := &models.AnalyticsSummary{
		Wallet:        wallet,
		TotalTrades:   len(trades),
		TotalEarnings: acc.Realized,
		Timezone:      analyzer.InferTimezone(trades, s.cfg.Analytics),
		TopCategories: categories,
		Insider:       analyzer.ComputeInsiderMetrics(trades, resolutions, s.cfg.Analytics),
	}

	if raw, err := json.Marshal(summary); err == nil {
		if err := s.store.SaveAnalyticsCache(ctx, wallet, string(raw), total); err != nil {
			log.Warn().Err(err).Str("wallet", wallet).Msg("failed to cache analytics")
		}
	}
	return summary, nil
}

// lookupResolutions queries the resolution source once per distinct market.
func (s *Service) lookupResolutions(ctx context.Context, trades []models.Trade) (map[string]models.Resolution, error) {
	resolutions := make(map[string]models.Resolution)
	for _, t := range trades {
		if t.MarketID == "" || t.Outcome == "" {
			continue
		}
		if _, ok := resolutions[t.MarketID]; ok {
			continue
		}
		res, err := s.resolution.GetResolution(ctx, t.MarketID, t.Outcome)
		if err != nil {
			return nil, fmt.Errorf("resolve market %s: %w", t.MarketID, err)
		}
		if res != nil {
			resolutions[t.MarketID] = *res
		}
	}
	return resolutions, nil
}

// InvalidateCache drops every stored record for the wallet; the next query
// re-syncs from genesis. Returns the number of trades deleted.
func (s *Service) InvalidateCache(ctx context.Context, wallet string) (int, error) {
	deleted, err := s.store.DeleteTrades(ctx, wallet)
	if err != nil {
		return 0, fmt.Errorf("invalidate cache: %w", err)
	}
	log.Info().Str("wallet", wallet).Int("deleted", deleted).Msg("cache invalidated")
	return deleted, nil
}

// IsSourceUnavailable reports whether an error from the service is the
// external source failing, as opposed to bad input or internal state.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, api.ErrSourceUnavailable)
}
