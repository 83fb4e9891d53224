package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eyali1001/harpoon/models"
)

func TestParsePageToken(t *testing.T) {
	tests := []struct {
		token     string
		wantPhase string
		wantSkip  int
		wantErr   bool
	}{
		{token: "", wantPhase: phaseFills, wantSkip: 0},
		{token: "fills:100", wantPhase: phaseFills, wantSkip: 100},
		{token: "activity:0", wantPhase: phaseActivity, wantSkip: 0},
		{token: "garbage", wantErr: true},
		{token: "fills:abc", wantErr: true},
	}

	for _, tt := range tests {
		phase, skip, err := parsePageToken(tt.token)
		if tt.wantErr {
			assert.Error(t, err, tt.token)
			continue
		}
		require.NoError(t, err, tt.token)
		assert.Equal(t, tt.wantPhase, phase, tt.token)
		assert.Equal(t, tt.wantSkip, skip, tt.token)
	}
}

func TestDecodeFill(t *testing.T) {
	const wallet = "0xaaaa"

	tests := []struct {
		name       string
		fill       orderFilledEvent
		wantSide   models.Side
		wantAmount float64
		wantPrice  float64
		wantToken  string
	}{
		{
			name: "maker pays USDC for tokens",
			fill: orderFilledEvent{
				TransactionHash:   "0xtx1",
				Timestamp:         "1714564800",
				BlockNumber:       "100",
				Maker:             "0xAAAA",
				Taker:             "0xbbbb",
				MakerAssetID:      "0",
				TakerAssetID:      "777",
				MakerAmountFilled: "50000000",  // 50 USDC out
				TakerAmountFilled: "100000000", // 100 tokens in
			},
			wantSide:   models.SideBuy,
			wantAmount: 50,
			wantPrice:  0.5,
			wantToken:  "777",
		},
		{
			name: "maker sells tokens for USDC",
			fill: orderFilledEvent{
				TransactionHash:   "0xtx2",
				Timestamp:         "1714564800",
				BlockNumber:       "101",
				Maker:             "0xaaaa",
				Taker:             "0xbbbb",
				MakerAssetID:      "777",
				TakerAssetID:      "0",
				MakerAmountFilled: "100000000", // 100 tokens out
				TakerAmountFilled: "60000000",  // 60 USDC in
			},
			wantSide:   models.SideSell,
			wantAmount: 60,
			wantPrice:  0.6,
			wantToken:  "777",
		},
		{
			name: "taker pays USDC for tokens",
			fill: orderFilledEvent{
				TransactionHash:   "0xtx3",
				Timestamp:         "1714564800",
				BlockNumber:       "102",
				Maker:             "0xbbbb",
				Taker:             "0xaaaa",
				MakerAssetID:      "888",
				TakerAssetID:      "0",
				MakerAmountFilled: "30000000", // 30 tokens in
				TakerAmountFilled: "9000000",  // 9 USDC out
			},
			wantSide:   models.SideBuy,
			wantAmount: 9,
			wantPrice:  0.3,
			wantToken:  "888",
		},
		{
			name: "taker sells tokens for USDC",
			fill: orderFilledEvent{
				TransactionHash:   "0xtx4",
				Timestamp:         "1714564800",
				BlockNumber:       "103",
				Maker:             "0xbbbb",
				Taker:             "0xaaaa",
				MakerAssetID:      "0",
				TakerAssetID:      "888",
				MakerAmountFilled: "21000000", // 21 USDC in
				TakerAmountFilled: "30000000", // 30 tokens out
			},
			wantSide:   models.SideSell,
			wantAmount: 21,
			wantPrice:  0.7,
			wantToken:  "888",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := decodeFill(tt.fill, wallet)

			assert.Equal(t, tt.wantSide, trade.Side)
			assert.InDelta(t, tt.wantAmount, trade.Amount, 1e-9)
			require.NotNil(t, trade.Price)
			assert.InDelta(t, tt.wantPrice, *trade.Price, 1e-9)
			assert.Equal(t, tt.wantToken, trade.TokenID)
			assert.Equal(t, wallet, trade.Wallet)
			assert.Equal(t, time.Unix(1714564800, 0).UTC(), trade.Timestamp)
		})
	}
}

func TestFetchTradesPhaseTransition(t *testing.T) {
	ordersSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": {"makerFills": [
			{"id": "f1", "transactionHash": "0xtx1", "timestamp": "1714564800", "blockNumber": "100",
			 "maker": "0xaaaa", "taker": "0xbbbb", "makerAssetId": "0", "takerAssetId": "777",
			 "makerAmountFilled": "50000000", "takerAmountFilled": "100000000"}
		], "takerFills": []}}`))
	}))
	defer ordersSrv.Close()

	activitySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": {"splits": [], "merges": [], "redemptions": [
			{"id": "0xtx2_5", "timestamp": "1714568400", "blockNumber": "200",
			 "payout": "60000000", "condition": "0xcond1"}
		]}}`))
	}))
	defer activitySrv.Close()

	client := NewSubgraphClient(nil, 10, 0)
	client.ordersURL = ordersSrv.URL
	client.activityURL = activitySrv.URL

	// Phase one: a short fills page hands off to the activity phase.
	trades, next, err := client.FetchTrades(context.Background(), "0xAAAA", 0, "")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.SideBuy, trades[0].Side)
	assert.Equal(t, "activity:0", next)

	// Phase two: a short activity page exhausts the stream.
	trades, next, err = client.FetchTrades(context.Background(), "0xaaaa", 0, next)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.SideRedeem, trades[0].Side)
	assert.Equal(t, "0xtx2", trades[0].TxHash, "log index stripped from the activity ID")
	assert.InDelta(t, 60, trades[0].Amount, 1e-9)
	assert.Equal(t, "0xcond1", trades[0].MarketID)
	assert.Empty(t, next)
}

func TestFetchTradesFullPageContinuesPhase(t *testing.T) {
	ordersSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": {"makerFills": [
			{"id": "f1", "transactionHash": "0xtx1", "timestamp": "1714564800", "blockNumber": "100",
			 "maker": "0xaaaa", "taker": "0xbbbb", "makerAssetId": "0", "takerAssetId": "777",
			 "makerAmountFilled": "50000000", "takerAmountFilled": "100000000"}
		], "takerFills": []}}`))
	}))
	defer ordersSrv.Close()

	client := NewSubgraphClient(nil, 1, 0)
	client.ordersURL = ordersSrv.URL

	_, next, err := client.FetchTrades(context.Background(), "0xaaaa", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "fills:1", next)
}

func TestFetchTradesSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewSubgraphClient(nil, 10, 0)
	client.ordersURL = srv.URL

	_, _, err := client.FetchTrades(context.Background(), "0xaaaa", 0, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchTradesGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"errors": [{"message": "rate limited"}]}`))
	}))
	defer srv.Close()

	client := NewSubgraphClient(nil, 10, 0)
	client.ordersURL = srv.URL

	_, _, err := client.FetchTrades(context.Background(), "0xaaaa", 0, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
