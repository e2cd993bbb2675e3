package store

import (
	"context"
	"errors"

	"tradevault/internal/types"
)

// ErrNotFound is returned when a connection or trade lookup misses.
var ErrNotFound = errors.New("store: not found")

// ConnectionUpdate carries the partial fields UpdateConnection may
// touch. Nil members are left unchanged.
type ConnectionUpdate struct {
	IsActive    *bool
	LastSync    *int64 // unix seconds
	Credentials map[string]string
}

// Store is the persistence boundary the sync core depends on. The
// HTTP layer and the orchestrator see only this interface; the gorm
// implementation lives in gormstore.
type Store interface {
	// Connections.
	GetConnections(ctx context.Context, userID string) ([]types.BrokerConnection, error)
	GetConnection(ctx context.Context, connectionID string) (*types.BrokerConnection, error)
	AddConnection(ctx context.Context, conn types.BrokerConnection) error
	UpdateConnection(ctx context.Context, connectionID string, update ConnectionUpdate) error
	DeleteConnection(ctx context.Context, connectionID string) error

	// Trades.
	SaveTrade(ctx context.Context, userID string, trade types.Trade) error
	ListTrades(ctx context.Context, userID string, limit int) ([]types.Trade, error)
	// TradeCountsByConnection groups the user's broker-imported trades
	// by originating connection id.
	TradeCountsByConnection(ctx context.Context, userID string) (map[string]int, error)

	Close() error
}
