package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Eyali1001/harpoon/models"
)

// MemoryStore is an in-memory DataStore. It backs tests and local development
// without Postgres or Redis, and enforces the same invariants as the Postgres
// implementation.
type MemoryStore struct {
	mu sync.Mutex

	trades      map[string]map[string]models.Trade // wallet -> identity key -> trade
	checkpoints map[string]models.SyncCheckpoint
	analytics   map[string]analyticsEntry

	// Calls counts invocations per method, ErrorOnNext injects one error for
	// a method. Both are for test assertions.
	Calls       map[string]int
	ErrorOnNext map[string]error
}

type analyticsEntry struct {
	JSON       string
	TradeCount int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades:      make(map[string]map[string]models.Trade),
		checkpoints: make(map[string]models.SyncCheckpoint),
		analytics:   make(map[string]analyticsEntry),
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) track(method string) error {
	s.Calls[method]++
	if err, ok := s.ErrorOnNext[method]; ok {
		delete(s.ErrorOnNext, method)
		return err
	}
	return nil
}

// UpsertTrades inserts trades by identity key; existing records win over
// conflicting incoming data.
func (s *MemoryStore) UpsertTrades(_ context.Context, trades []models.Trade) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("UpsertTrades"); err != nil {
		return 0, err
	}

	inserted := 0
	for _, t := range trades {
		byKey, ok := s.trades[t.Wallet]
		if !ok {
			byKey = make(map[string]models.Trade)
			s.trades[t.Wallet] = byKey
		}
		key := t.Key()
		if existing, ok := byKey[key]; ok {
			if existing.Amount != t.Amount || !existing.Timestamp.Equal(t.Timestamp) {
				log.Warn().Str("wallet", t.Wallet).Str("key", key).
					Msg("conflicting record for stored identity key, keeping stored row")
			}
			continue
		}
		byKey[key] = t
		inserted++
	}
	return inserted, nil
}

// ListTrades returns a wallet's trades sorted by timestamp, block number,
// then tx hash ascending.
func (s *MemoryStore) ListTrades(_ context.Context, wallet string) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("ListTrades"); err != nil {
		return nil, err
	}

	trades := s.walletTrades(wallet)
	sortTradesAsc(trades)
	return trades, nil
}

// ListTradesPage returns one page of a wallet's trades, newest first.
func (s *MemoryStore) ListTradesPage(_ context.Context, wallet string, offset, limit int) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("ListTradesPage"); err != nil {
		return nil, err
	}

	trades := s.walletTrades(wallet)
	sortTradesAsc(trades)
	// reverse for newest-first
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}

	if offset >= len(trades) {
		return nil, nil
	}
	end := offset + limit
	if end > len(trades) {
		end = len(trades)
	}
	return trades[offset:end], nil
}

func (s *MemoryStore) walletTrades(wallet string) []models.Trade {
	byKey := s.trades[wallet]
	trades := make([]models.Trade, 0, len(byKey))
	for _, t := range byKey {
		trades = append(trades, t)
	}
	return trades
}

func sortTradesAsc(trades []models.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].Timestamp.Equal(trades[j].Timestamp) {
			return trades[i].Timestamp.Before(trades[j].Timestamp)
		}
		if trades[i].BlockNumber != trades[j].BlockNumber {
			return trades[i].BlockNumber < trades[j].BlockNumber
		}
		return trades[i].TxHash < trades[j].TxHash
	})
}

// CountTrades returns the number of stored trades for a wallet.
func (s *MemoryStore) CountTrades(_ context.Context, wallet string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("CountTrades"); err != nil {
		return 0, err
	}
	return len(s.trades[wallet]), nil
}

// DeleteTrades drops all records, the checkpoint, and cached analytics for a
// wallet.
func (s *MemoryStore) DeleteTrades(_ context.Context, wallet string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("DeleteTrades"); err != nil {
		return 0, err
	}

	deleted := len(s.trades[wallet])
	delete(s.trades, wallet)
	delete(s.checkpoints, wallet)
	delete(s.analytics, wallet)
	return deleted, nil
}

// GetCheckpoint returns the wallet's checkpoint, or nil if never synced.
func (s *MemoryStore) GetCheckpoint(_ context.Context, wallet string) (*models.SyncCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("GetCheckpoint"); err != nil {
		return nil, err
	}

	cp, ok := s.checkpoints[wallet]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

// SaveCheckpoint upserts the checkpoint, never regressing the block number.
func (s *MemoryStore) SaveCheckpoint(_ context.Context, cp models.SyncCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("SaveCheckpoint"); err != nil {
		return err
	}

	if existing, ok := s.checkpoints[cp.Wallet]; ok && existing.LastBlock > cp.LastBlock {
		cp.LastBlock = existing.LastBlock
	}
	s.checkpoints[cp.Wallet] = cp
	return nil
}

// GetAnalyticsCache returns cached analytics JSON and its trade count.
func (s *MemoryStore) GetAnalyticsCache(_ context.Context, wallet string) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("GetAnalyticsCache"); err != nil {
		return "", 0, err
	}

	entry, ok := s.analytics[wallet]
	if !ok {
		return "", 0, nil
	}
	return entry.JSON, entry.TradeCount, nil
}

// SaveAnalyticsCache stores analytics JSON with its trade count.
func (s *MemoryStore) SaveAnalyticsCache(_ context.Context, wallet, summaryJSON string, tradeCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("SaveAnalyticsCache"); err != nil {
		return err
	}

	s.analytics[wallet] = analyticsEntry{JSON: summaryJSON, TradeCount: tradeCount}
	return nil
}

// InvalidateAnalyticsCache drops the cached analytics for a wallet.
func (s *MemoryStore) InvalidateAnalyticsCache(_ context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track("InvalidateAnalyticsCache"); err != nil {
		return err
	}

	delete(s.analytics, wallet)
	return nil
}
