package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Eyali1001/harpoon/models"
)

// GammaAPIURL is the public Polymarket market-metadata API.
const GammaAPIURL = "https://gamma-api.polymarket.com"

// MarketInfo is the metadata Gamma reports for one outcome token or market.
type MarketInfo struct {
	ConditionID    string
	Question       string
	Outcome        string
	Category       string
	Closed         bool
	ClosedAt       time.Time
	WinningOutcome string
}

// GammaClient queries the Gamma API for market metadata and resolutions.
// Lookups are cached for the life of the client; market metadata is
// effectively immutable once a market closes.
type GammaClient struct {
	httpClient *http.Client
	baseURL    string

	mu             sync.RWMutex
	tokenCache     map[string]*MarketInfo
	conditionCache map[string]*MarketInfo
}

// NewGammaClient creates a Gamma metadata client.
func NewGammaClient() *GammaClient {
	return &GammaClient{
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		baseURL:        GammaAPIURL,
		tokenCache:     make(map[string]*MarketInfo),
		conditionCache: make(map[string]*MarketInfo),
	}
}

var _ ResolutionSource = (*GammaClient)(nil)

// gammaMarket mirrors the Gamma /markets response. The outcomes, token IDs,
// and outcome prices are parallel arrays encoded as JSON strings.
type gammaMarket struct {
	ConditionID   string `json:"conditionId"`
	Question      string `json:"question"`
	Outcomes      string `json:"outcomes"`
	ClobTokenIDs  string `json:"clobTokenIds"`
	OutcomePrices string `json:"outcomePrices"`
	Closed        bool   `json:"closed"`
	ClosedTime    string `json:"closedTime"`
	Events        []struct {
		ID   string `json:"id"`
		Tags []struct {
			Label string `json:"label"`
		} `json:"tags"`
	} `json:"events"`
}

// MarketsByToken resolves outcome-token IDs to market metadata.
func (c *GammaClient) MarketsByToken(ctx context.Context, tokenIDs []string) (map[string]*MarketInfo, error) {
	out := make(map[string]*MarketInfo, len(tokenIDs))
	var misses []string

	c.mu.RLock()
	for _, id := range tokenIDs {
		if info, ok := c.tokenCache[id]; ok {
			out[id] = info
		} else {
			misses = append(misses, id)
		}
	}
	c.mu.RUnlock()

	for _, id := range misses {
		info, err := c.fetchMarket(ctx, url.Values{"clob_token_ids": {id}}, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tokenCache[id] = info
		c.mu.Unlock()
		if info != nil {
			out[id] = info
		}
	}
	return out, nil
}

// MarketsByCondition resolves condition IDs to market metadata.
func (c *GammaClient) MarketsByCondition(ctx context.Context, conditionIDs []string) (map[string]*MarketInfo, error) {
	out := make(map[string]*MarketInfo, len(conditionIDs))
	var misses []string

	c.mu.RLock()
	for _, id := range conditionIDs {
		if info, ok := c.conditionCache[id]; ok {
			out[id] = info
		} else {
			misses = append(misses, id)
		}
	}
	c.mu.RUnlock()

	for _, id := range misses {
		info, err := c.fetchMarket(ctx, url.Values{"condition_ids": {id}}, "")
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.conditionCache[id] = info
		c.mu.Unlock()
		if info != nil {
			out[id] = info
		}
	}
	return out, nil
}

// GetResolution reports whether a market resolved and which outcome won.
func (c *GammaClient) GetResolution(ctx context.Context, marketID, outcome string) (*models.Resolution, error) {
	markets, err := c.MarketsByCondition(ctx, []string{marketID})
	if err != nil {
		return nil, err
	}
	info, ok := markets[marketID]
	if !ok || info == nil {
		return &models.Resolution{}, nil
	}
	return &models.Resolution{
		Resolved:       info.Closed && info.WinningOutcome != "",
		WinningOutcome: info.WinningOutcome,
		ClosedAt:       info.ClosedAt,
	}, nil
}

// fetchMarket fetches a single market. tokenID selects which outcome of the
// market the caller is asking about; empty means market-level metadata only.
// A nil result with nil error means Gamma knows nothing about the market.
func (c *GammaClient) fetchMarket(ctx context.Context, params url.Values, tokenID string) (*MarketInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/markets?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: gamma request: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read gamma response: %v", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gamma status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var markets []gammaMarket
	if err := json.Unmarshal(raw, &markets); err != nil {
		return nil, fmt.Errorf("%w: unmarshal gamma response: %v", ErrSourceUnavailable, err)
	}
	if len(markets) == 0 {
		return nil, nil
	}

	return buildMarketInfo(markets[0], tokenID), nil
}

// buildMarketInfo decodes the parallel JSON-string arrays Gamma uses for
// outcomes, token IDs, and prices.
func buildMarketInfo(m gammaMarket, tokenID string) *MarketInfo {
	info := &MarketInfo{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Closed:      m.Closed,
	}

	var outcomes, tokens, prices []string
	_ = json.Unmarshal([]byte(m.Outcomes), &outcomes)
	_ = json.Unmarshal([]byte(m.ClobTokenIDs), &tokens)
	_ = json.Unmarshal([]byte(m.OutcomePrices), &prices)

	if tokenID != "" {
		for i, id := range tokens {
			if id == tokenID && i < len(outcomes) {
				info.Outcome = outcomes[i]
			}
		}
	}

	// a resolved outcome trades at exactly 1
	if m.Closed {
		for i, p := range prices {
			if v, err := strconv.ParseFloat(p, 64); err == nil && v == 1.0 && i < len(outcomes) {
				info.WinningOutcome = outcomes[i]
			}
		}
	}

	if len(m.Events) > 0 && len(m.Events[0].Tags) > 0 {
		info.Category = m.Events[0].Tags[0].Label
	}

	if m.ClosedTime != "" {
		info.ClosedAt = parseGammaTime(m.ClosedTime)
	}
	return info
}

// parseGammaTime handles the two timestamp layouts Gamma has been seen to
// return.
func parseGammaTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
