package storage

import (
	"context"

	"github.com/Eyali1001/harpoon/models"
)

// DataStore defines the interface for storage backends.
type DataStore interface {
	Close() error

	// Trade operations. UpsertTrades is idempotent under the trade identity
	// key: re-inserting a stored record is a no-op and the stored row wins
	// over any conflicting incoming data.
	UpsertTrades(ctx context.Context, trades []models.Trade) (inserted int, err error)
	ListTrades(ctx context.Context, wallet string) ([]models.Trade, error)                         // timestamp ascending
	ListTradesPage(ctx context.Context, wallet string, offset, limit int) ([]models.Trade, error) // timestamp descending
	CountTrades(ctx context.Context, wallet string) (int, error)
	DeleteTrades(ctx context.Context, wallet string) (int, error)

	// Checkpoint operations. SaveCheckpoint never regresses the stored block
	// number for a wallet.
	GetCheckpoint(ctx context.Context, wallet string) (*models.SyncCheckpoint, error)
	SaveCheckpoint(ctx context.Context, cp models.SyncCheckpoint) error

	// Analytics cache, validated by trade count at read time.
	GetAnalyticsCache(ctx context.Context, wallet string) (summaryJSON string, tradeCount int, err error)
	SaveAnalyticsCache(ctx context.Context, wallet, summaryJSON string, tradeCount int) error
	InvalidateAnalyticsCache(ctx context.Context, wallet string) error
}

// Ensure both implementations satisfy the interface
var _ DataStore = (*MemoryStore)(nil)
var _ DataStore = (*PostgresStore)(nil)
