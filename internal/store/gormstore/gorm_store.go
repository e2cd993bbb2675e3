// Package gormstore implements the persistence boundary on Gorm +
// SQLite, mirroring the journal's single-file deployment model.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	storemodel "tradevault/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tradevault/internal/store"
	"tradevault/internal/types"
)

type GormStore struct {
	db *gorm.DB
}

var _ store.Store = (*GormStore)(nil)

// New opens (or creates) the SQLite database at path and migrates the
// schema. WAL plus a busy timeout keeps concurrent HTTP reads from
// tripping over the sync writer.
func New(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&storemodel.BrokerConnectionModel{}, &storemodel.TradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return &GormStore{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) GetConnections(ctx context.Context, userID string) ([]types.BrokerConnection, error) {
	var rows []storemodel.BrokerConnectionModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	out := make([]types.BrokerConnection, 0, len(rows))
	for _, row := range rows {
		out = append(out, connectionFromModel(row))
	}
	return out, nil
}

func (s *GormStore) GetConnection(ctx context.Context, connectionID string) (*types.BrokerConnection, error) {
	var row storemodel.BrokerConnectionModel
	err := s.db.WithContext(ctx).Where("id = ?", connectionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	conn := connectionFromModel(row)
	return &conn, nil
}

func (s *GormStore) AddConnection(ctx context.Context, conn types.BrokerConnection) error {
	row, err := connectionToModel(conn)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	row.CreatedAtUnix = now
	row.UpdatedAtUnix = now
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("add connection: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateConnection(ctx context.Context, connectionID string, update store.ConnectionUpdate) error {
	fields := map[string]any{"updated_at": time.Now().Unix()}
	if update.IsActive != nil {
		fields["is_active"] = *update.IsActive
	}
	if update.LastSync != nil {
		fields["last_sync"] = *update.LastSync
	}
	if update.Credentials != nil {
		raw, err := json.Marshal(update.Credentials)
		if err != nil {
			return fmt.Errorf("encode credentials: %w", err)
		}
		fields["credentials"] = datatypes.JSON(raw)
	}
	res := s.db.WithContext(ctx).
		Model(&storemodel.BrokerConnectionModel{}).
		Where("id = ?", connectionID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update connection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteConnection(ctx context.Context, connectionID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ?", connectionID).
		Delete(&storemodel.BrokerConnectionModel{})
	if res.Error != nil {
		return fmt.Errorf("delete connection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *GormStore) SaveTrade(ctx context.Context, userID string, trade types.Trade) error {
	now := time.Now().Unix()
	row := storemodel.TradeModel{
		ID:            trade.ID,
		UserID:        userID,
		Ticker:        trade.Ticker,
		EntryPrice:    trade.EntryPrice,
		ExitPrice:     trade.ExitPrice,
		Quantity:      trade.Quantity,
		Direction:     string(trade.Direction),
		Status:        string(trade.Status),
		Timestamp:     trade.Timestamp.Unix(),
		Notes:         trade.Notes,
		RealizedPL:    trade.RealizedPL,
		Broker:        string(trade.Broker),
		ConnectionID:  trade.ConnectionID,
		ExternalID:    trade.ExternalID,
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"ticker", "entry_price", "exit_price", "quantity", "direction", "status", "ts", "notes", "realized_pl", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

func (s *GormStore) ListTrades(ctx context.Context, userID string, limit int) ([]types.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []storemodel.TradeModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("ts DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	out := make([]types.Trade, 0, len(rows))
	for _, row := range rows {
		out = append(out, tradeFromModel(row))
	}
	return out, nil
}

func (s *GormStore) TradeCountsByConnection(ctx context.Context, userID string) (map[string]int, error) {
	type countRow struct {
		ConnectionID string
		N            int
	}
	var rows []countRow
	err := s.db.WithContext(ctx).
		Model(&storemodel.TradeModel{}).
		Select("connection_id, COUNT(*) AS n").
		Where("user_id = ? AND connection_id <> ''", userID).
		Group("connection_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("trade counts: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ConnectionID] = row.N
	}
	return counts, nil
}

func connectionFromModel(row storemodel.BrokerConnectionModel) types.BrokerConnection {
	conn := types.BrokerConnection{
		ID:        row.ID,
		UserID:    row.UserID,
		Broker:    types.BrokerType(row.Broker),
		IsActive:  row.IsActive,
		CreatedAt: time.Unix(row.CreatedAtUnix, 0),
		UpdatedAt: time.Unix(row.UpdatedAtUnix, 0),
	}
	if row.LastSyncUnix != nil {
		t := time.Unix(*row.LastSyncUnix, 0)
		conn.LastSync = &t
	}
	if len(row.Credentials) > 0 {
		creds := map[string]string{}
		if err := json.Unmarshal(row.Credentials, &creds); err == nil {
			conn.Credentials = creds
		}
	}
	return conn
}

func connectionToModel(conn types.BrokerConnection) (storemodel.BrokerConnectionModel, error) {
	row := storemodel.BrokerConnectionModel{
		ID:       conn.ID,
		UserID:   conn.UserID,
		Broker:   string(conn.Broker),
		IsActive: conn.IsActive,
	}
	if conn.LastSync != nil {
		ts := conn.LastSync.Unix()
		row.LastSyncUnix = &ts
	}
	creds := conn.Credentials
	if creds == nil {
		creds = map[string]string{}
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return row, fmt.Errorf("encode credentials: %w", err)
	}
	row.Credentials = datatypes.JSON(raw)
	return row, nil
}

func tradeFromModel(row storemodel.TradeModel) types.Trade {
	return types.Trade{
		ID:           row.ID,
		Ticker:       row.Ticker,
		EntryPrice:   row.EntryPrice,
		ExitPrice:    row.ExitPrice,
		Quantity:     row.Quantity,
		Direction:    types.Direction(row.Direction),
		Status:       types.Status(row.Status),
		Timestamp:    time.Unix(row.Timestamp, 0),
		Notes:        row.Notes,
		RealizedPL:   row.RealizedPL,
		Broker:       types.BrokerType(row.Broker),
		ConnectionID: row.ConnectionID,
		ExternalID:   row.ExternalID,
	}
}
