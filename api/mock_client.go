package api

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/Eyali1001/harpoon/models"
)

// MockTradeSource is an in-memory TradeSource for testing. Events are served
// in fixed-size pages filtered by sinceBlock, mirroring the subgraph client's
// contract.
type MockTradeSource struct {
	mu sync.Mutex

	Events   []models.Trade
	PageSize int

	// Err is returned on every fetch when set. ErrAfterPages returns Err only
	// once that many pages have been served, to simulate mid-fetch failures.
	Err           error
	ErrAfterPages int

	Fetches int
}

var _ TradeSource = (*MockTradeSource)(nil)

// NewMockTradeSource creates a mock source serving the given events.
func NewMockTradeSource(pageSize int, events ...models.Trade) *MockTradeSource {
	return &MockTradeSource{Events: events, PageSize: pageSize, ErrAfterPages: -1}
}

// FetchTrades serves one page of events at or after sinceBlock.
func (m *MockTradeSource) FetchTrades(_ context.Context, wallet string, sinceBlock int64, pageToken string) ([]models.Trade, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil && (m.ErrAfterPages < 0 || m.Fetches >= m.ErrAfterPages) {
		return nil, "", m.Err
	}
	m.Fetches++

	var eligible []models.Trade
	for _, ev := range m.Events {
		if ev.Wallet == wallet && ev.BlockNumber >= sinceBlock {
			eligible = append(eligible, ev)
		}
	}

	skip := 0
	if pageToken != "" {
		parsed, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, "", err
		}
		skip = parsed
	}

	if skip >= len(eligible) {
		return nil, "", nil
	}
	end := skip + m.PageSize
	if end > len(eligible) {
		end = len(eligible)
	}

	page := eligible[skip:end]
	next := ""
	if len(page) == m.PageSize && end < len(eligible) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

// MockResolutionSource serves canned resolutions keyed by market ID.
type MockResolutionSource struct {
	mu          sync.RWMutex
	Resolutions map[string]models.Resolution
}

var _ ResolutionSource = (*MockResolutionSource)(nil)

// NewMockResolutionSource creates an empty mock resolution source.
func NewMockResolutionSource() *MockResolutionSource {
	return &MockResolutionSource{Resolutions: make(map[string]models.Resolution)}
}

// SetResolution records a resolution for a market.
func (m *MockResolutionSource) SetResolution(marketID string, res models.Resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resolutions[marketID] = res
}

// GetResolution returns the canned resolution, or an unresolved zero value.
func (m *MockResolutionSource) GetResolution(_ context.Context, marketID, _ string) (*models.Resolution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if res, ok := m.Resolutions[marketID]; ok {
		return &res, nil
	}
	return &models.Resolution{}, nil
}

// MockProfileResolver resolves addresses without touching the network.
type MockProfileResolver struct {
	Profiles map[string]*models.ProfileInfo
}

var _ ProfileResolver = (*MockProfileResolver)(nil)

// ResolveAddress lowercases and returns the input unchanged.
func (m *MockProfileResolver) ResolveAddress(_ context.Context, input string) (string, error) {
	return strings.ToLower(strings.TrimSpace(input)), nil
}

// FetchProfile returns the canned profile for an address, if any.
func (m *MockProfileResolver) FetchProfile(_ context.Context, address string) (*models.ProfileInfo, error) {
	if m.Profiles == nil {
		return nil, nil
	}
	return m.Profiles[strings.ToLower(address)], nil
}
