package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Eyali1001/harpoon/models"
)

const (
	// Goldsky-hosted Polymarket subgraphs (free, no API key needed)
	OrdersSubgraphURL   = "https://api.goldsky.com/api/public/project_cl6mb8i9h0003e201j6li0diw/subgraphs/orderbook-subgraph/prod/gn"
	ActivitySubgraphURL = "https://api.goldsky.com/api/public/project_cl6mb8i9h0003e201j6li0diw/subgraphs/activity-subgraph/0.0.4/gn"

	usdcDecimals = 1e6
)

// Pagination phases encoded into the opaque page token. Fills come first,
// then on-chain activity (splits, merges, redemptions).
const (
	phaseFills    = "fills"
	phaseActivity = "activity"
)

// SubgraphClient implements TradeSource against the Polymarket orderbook and
// activity subgraphs, enriching events with market metadata from Gamma.
type SubgraphClient struct {
	httpClient  *http.Client
	ordersURL   string
	activityURL string
	gamma       *GammaClient
	pageSize    int
}

// NewSubgraphClient creates a trade source backed by the public Goldsky
// subgraphs. pageSize bounds how many events one page may return.
func NewSubgraphClient(gamma *GammaClient, pageSize int, timeout time.Duration) *SubgraphClient {
	if pageSize <= 0 {
		pageSize = 100
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SubgraphClient{
		httpClient:  &http.Client{Timeout: timeout},
		ordersURL:   OrdersSubgraphURL,
		activityURL: ActivitySubgraphURL,
		gamma:       gamma,
		pageSize:    pageSize,
	}
}

var _ TradeSource = (*SubgraphClient)(nil)

type orderFilledEvent struct {
	ID                string `json:"id"`
	TransactionHash   string `json:"transactionHash"`
	Timestamp         string `json:"timestamp"`
	BlockNumber       string `json:"blockNumber"`
	Maker             string `json:"maker"`
	Taker             string `json:"taker"`
	MakerAssetID      string `json:"makerAssetId"`
	TakerAssetID      string `json:"takerAssetId"`
	MakerAmountFilled string `json:"makerAmountFilled"`
	TakerAmountFilled string `json:"takerAmountFilled"`
}

type activityEvent struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	BlockNumber string `json:"blockNumber"`
	Amount      string `json:"amount"`
	Payout      string `json:"payout"`
	Condition   string `json:"condition"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchTrades returns one page of trade events at or after sinceBlock,
// ordered by block ascending, plus the token for the next page. An empty
// next token means the stream is exhausted.
func (c *SubgraphClient) FetchTrades(ctx context.Context, wallet string, sinceBlock int64, pageToken string) ([]models.Trade, string, error) {
	wallet = strings.ToLower(wallet)

	phase, skip, err := parsePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}

	var trades []models.Trade
	var short bool

	switch phase {
	case phaseFills:
		trades, short, err = c.fetchFillsPage(ctx, wallet, sinceBlock, skip)
	case phaseActivity:
		trades, short, err = c.fetchActivityPage(ctx, wallet, sinceBlock, skip)
	default:
		return nil, "", fmt.Errorf("unknown page token phase %q", phase)
	}
	if err != nil {
		return nil, "", err
	}

	sort.Slice(trades, func(i, j int) bool {
		return trades[i].BlockNumber < trades[j].BlockNumber
	})

	next := ""
	if !short {
		next = phase + ":" + strconv.Itoa(skip+c.pageSize)
	} else if phase == phaseFills {
		next = phaseActivity + ":0"
	}
	return trades, next, nil
}

func parsePageToken(token string) (phase string, skip int, err error) {
	if token == "" {
		return phaseFills, 0, nil
	}
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed page token %q", token)
	}
	skip, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("malformed page token %q: %w", token, err)
	}
	return parts[0], skip, nil
}

// fetchFillsPage fetches CLOB order fills where the wallet was maker or taker.
// short reports whether both role queries came back under the page size.
func (c *SubgraphClient) fetchFillsPage(ctx context.Context, wallet string, sinceBlock int64, skip int) ([]models.Trade, bool, error) {
	query := fmt.Sprintf(`{
		makerFills: orderFilledEvents(
			where: {maker: "%s", blockNumber_gte: %d},
			orderBy: blockNumber, orderDirection: asc,
			first: %d, skip: %d
		) { id transactionHash timestamp blockNumber maker taker makerAssetId takerAssetId makerAmountFilled takerAmountFilled }
		takerFills: orderFilledEvents(
			where: {taker: "%s", blockNumber_gte: %d},
			orderBy: blockNumber, orderDirection: asc,
			first: %d, skip: %d
		) { id transactionHash timestamp blockNumber maker taker makerAssetId takerAssetId makerAmountFilled takerAmountFilled }
	}`, wallet, sinceBlock, c.pageSize, skip, wallet, sinceBlock, c.pageSize, skip)

	var payload struct {
		MakerFills []orderFilledEvent `json:"makerFills"`
		TakerFills []orderFilledEvent `json:"takerFills"`
	}
	if err := c.executeQuery(ctx, c.ordersURL, query, &payload); err != nil {
		return nil, false, err
	}

	seen := make(map[string]bool)
	var trades []models.Trade
	tokenIDs := make([]string, 0)

	for _, fill := range append(payload.MakerFills, payload.TakerFills...) {
		if seen[fill.ID] {
			continue
		}
		seen[fill.ID] = true

		trade := decodeFill(fill, wallet)
		if trade.TokenID != "" {
			tokenIDs = append(tokenIDs, trade.TokenID)
		}
		trades = append(trades, trade)
	}

	if err := c.enrichByToken(ctx, trades, tokenIDs); err != nil {
		return nil, false, err
	}

	short := len(payload.MakerFills) < c.pageSize && len(payload.TakerFills) < c.pageSize
	return trades, short, nil
}

// decodeFill converts a raw order fill into a trade from the wallet's
// perspective. Asset ID "0" is USDC; the non-zero side is the outcome token.
func decodeFill(fill orderFilledEvent, wallet string) models.Trade {
	isMaker := strings.ToLower(fill.Maker) == wallet

	makerAmt, _ := strconv.ParseFloat(fill.MakerAmountFilled, 64)
	takerAmt, _ := strconv.ParseFloat(fill.TakerAmountFilled, 64)

	var side models.Side
	var tokenID string
	var amount, tokens float64

	if isMaker {
		if fill.MakerAssetID == "0" {
			// maker gives USDC, receives outcome tokens
			side = models.SideBuy
			tokenID = fill.TakerAssetID
			amount = makerAmt / usdcDecimals
			tokens = takerAmt / usdcDecimals
		} else {
			side = models.SideSell
			tokenID = fill.MakerAssetID
			tokens = makerAmt / usdcDecimals
			amount = takerAmt / usdcDecimals
		}
	} else {
		if fill.TakerAssetID == "0" {
			side = models.SideBuy
			tokenID = fill.MakerAssetID
			amount = takerAmt / usdcDecimals
			tokens = makerAmt / usdcDecimals
		} else {
			side = models.SideSell
			tokenID = fill.TakerAssetID
			tokens = takerAmt / usdcDecimals
			amount = makerAmt / usdcDecimals
		}
	}

	var price *float64
	if tokens > 0 {
		p := math.Round(amount/tokens*1e4) / 1e4
		price = &p
	}

	ts, _ := strconv.ParseInt(fill.Timestamp, 10, 64)
	block, _ := strconv.ParseInt(fill.BlockNumber, 10, 64)

	return models.Trade{
		TxHash:      fill.TransactionHash,
		Wallet:      wallet,
		Timestamp:   time.Unix(ts, 0).UTC(),
		Side:        side,
		Amount:      math.Round(amount*100) / 100,
		Price:       price,
		TokenID:     tokenID,
		BlockNumber: block,
	}
}

// fetchActivityPage fetches splits (buys), merges (sells), and redemptions.
func (c *SubgraphClient) fetchActivityPage(ctx context.Context, wallet string, sinceBlock int64, skip int) ([]models.Trade, bool, error) {
	fields := "id timestamp blockNumber amount condition"
	query := fmt.Sprintf(`{
		splits(where: {stakeholder: "%s", blockNumber_gte: %d}, orderBy: blockNumber, orderDirection: asc, first: %d, skip: %d) { %s }
		merges(where: {stakeholder: "%s", blockNumber_gte: %d}, orderBy: blockNumber, orderDirection: asc, first: %d, skip: %d) { %s }
		redemptions(where: {redeemer: "%s", blockNumber_gte: %d}, orderBy: blockNumber, orderDirection: asc, first: %d, skip: %d) { id timestamp blockNumber payout condition }
	}`, wallet, sinceBlock, c.pageSize, skip, fields,
		wallet, sinceBlock, c.pageSize, skip, fields,
		wallet, sinceBlock, c.pageSize, skip)

	var payload struct {
		Splits      []activityEvent `json:"splits"`
		Merges      []activityEvent `json:"merges"`
		Redemptions []activityEvent `json:"redemptions"`
	}
	if err := c.executeQuery(ctx, c.activityURL, query, &payload); err != nil {
		return nil, false, err
	}

	var trades []models.Trade
	conditionIDs := make([]string, 0)

	appendActivity := func(events []activityEvent, side models.Side) {
		for _, ev := range events {
			// activity IDs are txhash_logindex
			txHash, _, _ := strings.Cut(ev.ID, "_")

			raw := ev.Amount
			if side == models.SideRedeem {
				raw = ev.Payout
			}
			amt, _ := strconv.ParseFloat(raw, 64)

			ts, _ := strconv.ParseInt(ev.Timestamp, 10, 64)
			block, _ := strconv.ParseInt(ev.BlockNumber, 10, 64)

			if ev.Condition != "" {
				conditionIDs = append(conditionIDs, ev.Condition)
			}

			trades = append(trades, models.Trade{
				TxHash:      txHash,
				Wallet:      wallet,
				Timestamp:   time.Unix(ts, 0).UTC(),
				MarketID:    ev.Condition,
				Side:        side,
				Amount:      math.Round(amt/usdcDecimals*100) / 100,
				BlockNumber: block,
			})
		}
	}

	appendActivity(payload.Splits, models.SideBuy)
	appendActivity(payload.Merges, models.SideSell)
	appendActivity(payload.Redemptions, models.SideRedeem)

	if err := c.enrichByCondition(ctx, trades, conditionIDs); err != nil {
		return nil, false, err
	}

	short := len(payload.Splits) < c.pageSize &&
		len(payload.Merges) < c.pageSize &&
		len(payload.Redemptions) < c.pageSize
	return trades, short, nil
}

// enrichByToken fills in market metadata for fills keyed by outcome token.
func (c *SubgraphClient) enrichByToken(ctx context.Context, trades []models.Trade, tokenIDs []string) error {
	if c.gamma == nil || len(tokenIDs) == 0 {
		return nil
	}
	markets, err := c.gamma.MarketsByToken(ctx, tokenIDs)
	if err != nil {
		return err
	}
	for i := range trades {
		info, ok := markets[trades[i].TokenID]
		if !ok {
			continue
		}
		trades[i].MarketID = info.ConditionID
		trades[i].MarketTitle = info.Question
		trades[i].Outcome = info.Outcome
		trades[i].Category = info.Category
	}
	return nil
}

// enrichByCondition fills in market titles for activity events keyed by
// condition ID.
func (c *SubgraphClient) enrichByCondition(ctx context.Context, trades []models.Trade, conditionIDs []string) error {
	if c.gamma == nil || len(conditionIDs) == 0 {
		return nil
	}
	markets, err := c.gamma.MarketsByCondition(ctx, conditionIDs)
	if err != nil {
		return err
	}
	for i := range trades {
		info, ok := markets[trades[i].MarketID]
		if !ok {
			continue
		}
		trades[i].MarketTitle = info.Question
		if trades[i].Category == "" {
			trades[i].Category = info.Category
		}
	}
	return nil
}

// executeQuery posts a GraphQL query and decodes the data payload into out.
func (c *SubgraphClient) executeQuery(ctx context.Context, url, query string, out any) error {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: execute request: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrSourceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("subgraph returned non-200")
		return fmt.Errorf("%w: subgraph status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", ErrSourceUnavailable, err)
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("%w: subgraph error: %s", ErrSourceUnavailable, gqlResp.Errors[0].Message)
	}

	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("%w: unmarshal data: %v", ErrSourceUnavailable, err)
	}
	return nil
}
