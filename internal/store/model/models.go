package model

import (
	"gorm.io/datatypes"
)

type BrokerConnectionModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	UserID        string         `gorm:"column:user_id;index"`
	Broker        string         `gorm:"column:broker"`
	Credentials   datatypes.JSON `gorm:"column:credentials;type:TEXT"`
	IsActive      bool           `gorm:"column:is_active"`
	LastSyncUnix  *int64         `gorm:"column:last_sync"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (BrokerConnectionModel) TableName() string { return "broker_connections" }

type TradeModel struct {
	ID           string  `gorm:"column:id;primaryKey"`
	UserID       string  `gorm:"column:user_id;index:idx_trades_user"`
	Ticker       string  `gorm:"column:ticker"`
	EntryPrice   float64 `gorm:"column:entry_price"`
	ExitPrice    float64 `gorm:"column:exit_price"`
	Quantity     int64   `gorm:"column:quantity"`
	Direction    string  `gorm:"column:direction"`
	Status       string  `gorm:"column:status"`
	Timestamp    int64   `gorm:"column:ts"`
	Notes        string  `gorm:"column:notes"`
	RealizedPL   float64 `gorm:"column:realized_pl"`
	Broker       string  `gorm:"column:broker"`
	ConnectionID string  `gorm:"column:connection_id;index:idx_trades_connection"`
	// ExternalID dedupes re-imported executions per user.
	ExternalID    string `gorm:"column:external_id;index:idx_trades_external"`
	CreatedAtUnix int64  `gorm:"column:created_at"`
	UpdatedAtUnix int64  `gorm:"column:updated_at"`
}

func (TradeModel) TableName() string { return "trades" }
