package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Eyali1001/harpoon/models"
)

// PostgresStore wraps PostgreSQL persistence with Redis-backed analytics
// caching.
type PostgresStore struct {
	pool     *pgxpool.Pool
	redis    *redis.Client
	cacheTTL time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id BIGSERIAL PRIMARY KEY,
	tx_hash VARCHAR(66) NOT NULL,
	wallet_address VARCHAR(42) NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	market_id TEXT NOT NULL DEFAULT '',
	market_title TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL DEFAULT '',
	side VARCHAR(10) NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	price DOUBLE PRECISION,
	token_id TEXT NOT NULL DEFAULT '',
	block_number BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (wallet_address, tx_hash, side, market_id, outcome)
);
CREATE INDEX IF NOT EXISTS idx_trades_wallet_ts ON trades (wallet_address, timestamp DESC);

CREATE TABLE IF NOT EXISTS cache_metadata (
	wallet_address VARCHAR(42) PRIMARY KEY,
	last_synced_at TIMESTAMPTZ NOT NULL,
	last_block_number BIGINT NOT NULL DEFAULT 0
);
`

// NewPostgres creates a PostgreSQL store with connection pooling and a Redis
// client for the analytics cache. Connection details come from the
// environment.
func NewPostgres(ctx context.Context, cacheTTL time.Duration) (*PostgresStore, error) {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "harpoon")
	password := getEnv("POSTGRES_PASSWORD", "harpoon")
	dbname := getEnv("POSTGRES_DB", "harpoon")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, password, host, port, dbname)

	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = "30000"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", getEnv("REDIS_HOST", "localhost"), getEnv("REDIS_PORT", "6379")),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	log.Info().Str("host", host).Str("db", dbname).Msg("postgres store ready")
	return &PostgresStore{pool: pool, redis: rdb, cacheTTL: cacheTTL}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Close releases database connections.
func (s *PostgresStore) Close() error {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// UpsertTrades inserts trades by identity key. Conflicting rows are left
// untouched (DO NOTHING), so the stored record always wins over a re-fetch.
func (s *PostgresStore) UpsertTrades(ctx context.Context, trades []models.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(`
			INSERT INTO trades (
				tx_hash, wallet_address, timestamp, market_id, market_title,
				category, outcome, side, amount, price, token_id, block_number
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (wallet_address, tx_hash, side, market_id, outcome) DO NOTHING
		`,
			t.TxHash, t.Wallet, t.Timestamp, t.MarketID, t.MarketTitle,
			t.Category, t.Outcome, string(t.Side), t.Amount, t.Price, t.TokenID, t.BlockNumber,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch exec %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListTrades returns all of a wallet's trades ordered by timestamp ascending,
// with block number and tx hash as deterministic tie-breaks.
func (s *PostgresStore) ListTrades(ctx context.Context, wallet string) ([]models.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tx_hash, wallet_address, timestamp, market_id, market_title,
		       category, outcome, side, amount, price, token_id, block_number
		FROM trades
		WHERE wallet_address = $1
		ORDER BY timestamp ASC, block_number ASC, tx_hash ASC
	`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

// ListTradesPage returns one page of a wallet's trades, newest first.
func (s *PostgresStore) ListTradesPage(ctx context.Context, wallet string, offset, limit int) ([]models.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tx_hash, wallet_address, timestamp, market_id, market_title,
		       category, outcome, side, amount, price, token_id, block_number
		FROM trades
		WHERE wallet_address = $1
		ORDER BY timestamp DESC, block_number DESC, tx_hash DESC
		OFFSET $2 LIMIT $3
	`, wallet, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows pgx.Rows) ([]models.Trade, error) {
	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var side string
		if err := rows.Scan(&t.TxHash, &t.Wallet, &t.Timestamp, &t.MarketID, &t.MarketTitle,
			&t.Category, &t.Outcome, &side, &t.Amount, &t.Price, &t.TokenID, &t.BlockNumber); err != nil {
			return nil, err
		}
		t.Side = models.Side(side)
		t.Timestamp = t.Timestamp.UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// CountTrades returns the number of stored trades for a wallet.
func (s *PostgresStore) CountTrades(ctx context.Context, wallet string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE wallet_address = $1`, wallet).Scan(&count)
	return count, err
}

// DeleteTrades removes all records for a wallet along with its checkpoint and
// cached analytics. Returns the number of trades deleted.
func (s *PostgresStore) DeleteTrades(ctx context.Context, wallet string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM trades WHERE wallet_address = $1`, wallet)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cache_metadata WHERE wallet_address = $1`, wallet); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	s.redis.Del(ctx, analyticsCacheKey(wallet))
	return int(tag.RowsAffected()), nil
}

// GetCheckpoint returns the wallet's sync checkpoint, or nil if it has never
// been synced.
func (s *PostgresStore) GetCheckpoint(ctx context.Context, wallet string) (*models.SyncCheckpoint, error) {
	var cp models.SyncCheckpoint
	err := s.pool.QueryRow(ctx, `
		SELECT wallet_address, last_synced_at, last_block_number
		FROM cache_metadata WHERE wallet_address = $1
	`, wallet).Scan(&cp.Wallet, &cp.LastSyncedAt, &cp.LastBlock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cp.LastSyncedAt = cp.LastSyncedAt.UTC()
	return &cp, nil
}

// SaveCheckpoint upserts the checkpoint. GREATEST keeps the block number
// monotonic even if callers race.
func (s *PostgresStore) SaveCheckpoint(ctx context.Context, cp models.SyncCheckpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cache_metadata (wallet_address, last_synced_at, last_block_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			last_block_number = GREATEST(cache_metadata.last_block_number, EXCLUDED.last_block_number)
	`, cp.Wallet, cp.LastSyncedAt, cp.LastBlock)
	return err
}

func analyticsCacheKey(wallet string) string {
	return "analytics:" + wallet
}

func analyticsCountKey(wallet string) string {
	return "analytics_count:" + wallet
}

// GetAnalyticsCache returns the cached analytics JSON and the trade count it
// was computed over. Empty JSON means a cache miss.
func (s *PostgresStore) GetAnalyticsCache(ctx context.Context, wallet string) (string, int, error) {
	summary, err := s.redis.Get(ctx, analyticsCacheKey(wallet)).Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	count, err := s.redis.Get(ctx, analyticsCountKey(wallet)).Int()
	if err != nil {
		return "", 0, nil
	}
	return summary, count, nil
}

// SaveAnalyticsCache stores the analytics JSON alongside the trade count used
// to compute it.
func (s *PostgresStore) SaveAnalyticsCache(ctx context.Context, wallet, summaryJSON string, tradeCount int) error {
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, analyticsCacheKey(wallet), summaryJSON, s.cacheTTL)
	pipe.Set(ctx, analyticsCountKey(wallet), tradeCount, s.cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateAnalyticsCache drops the cached analytics for a wallet.
func (s *PostgresStore) InvalidateAnalyticsCache(ctx context.Context, wallet string) error {
	return s.redis.Del(ctx, analyticsCacheKey(wallet), analyticsCountKey(wallet)).Err()
}
