package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradevault/internal/store"
	"tradevault/internal/types"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleConnection(id, userID string) types.BrokerConnection {
	return types.BrokerConnection{
		ID:          id,
		UserID:      userID,
		Broker:      types.BrokerRawFeed,
		Credentials: map[string]string{"path": "/data/feeds/" + id + ".json"},
		IsActive:    true,
	}
}

func sampleTrade(id, connectionID string) types.Trade {
	return types.Trade{
		ID:           id,
		Ticker:       "AAPL",
		EntryPrice:   185.20,
		ExitPrice:    190.00,
		Quantity:     100,
		Direction:    types.DirectionLong,
		Status:       types.StatusClosed,
		Timestamp:    time.Date(2024, 4, 1, 14, 30, 0, 0, time.UTC),
		Notes:        "swing",
		RealizedPL:   480,
		Broker:       types.BrokerRawFeed,
		ConnectionID: connectionID,
	}
}

func TestConnectionRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AddConnection(ctx, sampleConnection("c1", "u1")))
	require.NoError(t, st.AddConnection(ctx, sampleConnection("c2", "u1")))
	require.NoError(t, st.AddConnection(ctx, sampleConnection("c3", "u2")))

	conns, err := st.GetConnections(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "c1", conns[0].ID)
	assert.Equal(t, map[string]string{"path": "/data/feeds/c1.json"}, conns[0].Credentials)
	assert.Nil(t, conns[0].LastSync)

	got, err := st.GetConnection(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestUpdateConnection_PartialFields(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.AddConnection(ctx, sampleConnection("c1", "u1")))

	inactive := false
	lastSync := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).Unix()
	require.NoError(t, st.UpdateConnection(ctx, "c1", store.ConnectionUpdate{
		IsActive: &inactive,
		LastSync: &lastSync,
	}))

	got, err := st.GetConnection(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.LastSync)
	assert.Equal(t, lastSync, got.LastSync.Unix())
	// Untouched fields survive.
	assert.Equal(t, map[string]string{"path": "/data/feeds/c1.json"}, got.Credentials)
}

func TestUpdateConnection_NotFound(t *testing.T) {
	st := newTestStore(t)
	active := true
	err := st.UpdateConnection(context.Background(), "missing", store.ConnectionUpdate{IsActive: &active})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteConnection(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.AddConnection(ctx, sampleConnection("c1", "u1")))
	require.NoError(t, st.DeleteConnection(ctx, "c1"))

	_, err := st.GetConnection(ctx, "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.DeleteConnection(ctx, "c1"), store.ErrNotFound)
}

func TestTradesAndCounts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveTrade(ctx, "u1", sampleTrade("t1", "c1")))
	require.NoError(t, st.SaveTrade(ctx, "u1", sampleTrade("t2", "c1")))
	require.NoError(t, st.SaveTrade(ctx, "u1", sampleTrade("t3", "c2")))
	manual := sampleTrade("t4", "")
	manual.Broker = ""
	require.NoError(t, st.SaveTrade(ctx, "u1", manual))

	trades, err := st.ListTrades(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, trades, 4)

	counts, err := st.TradeCountsByConnection(ctx, "u1")
	require.NoError(t, err)
	// Manual trades carry no connection id and stay out of the counts.
	assert.Equal(t, map[string]int{"c1": 2, "c2": 1}, counts)
}

func TestSaveTrade_UpsertOnSameID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	trade := sampleTrade("t1", "c1")
	require.NoError(t, st.SaveTrade(ctx, "u1", trade))
	trade.ExitPrice = 200
	require.NoError(t, st.SaveTrade(ctx, "u1", trade))

	trades, err := st.ListTrades(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 200.0, trades[0].ExitPrice)
}
