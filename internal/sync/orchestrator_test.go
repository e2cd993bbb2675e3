package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradevault/internal/broker"
	"tradevault/internal/registry"
	"tradevault/internal/store"
	"tradevault/internal/types"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetConnections(ctx context.Context, userID string) ([]types.BrokerConnection, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.BrokerConnection), args.Error(1)
}

func (m *MockStore) GetConnection(ctx context.Context, connectionID string) (*types.BrokerConnection, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.BrokerConnection), args.Error(1)
}

func (m *MockStore) AddConnection(ctx context.Context, conn types.BrokerConnection) error {
	return m.Called(ctx, conn).Error(0)
}

func (m *MockStore) UpdateConnection(ctx context.Context, connectionID string, update store.ConnectionUpdate) error {
	return m.Called(ctx, connectionID, update).Error(0)
}

func (m *MockStore) DeleteConnection(ctx context.Context, connectionID string) error {
	return m.Called(ctx, connectionID).Error(0)
}

func (m *MockStore) SaveTrade(ctx context.Context, userID string, trade types.Trade) error {
	return m.Called(ctx, userID, trade).Error(0)
}

func (m *MockStore) ListTrades(ctx context.Context, userID string, limit int) ([]types.Trade, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Trade), args.Error(1)
}

func (m *MockStore) TradeCountsByConnection(ctx context.Context, userID string) (map[string]int, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockStore) Close() error { return m.Called().Error(0) }

// stubAdapter returns canned executions or a canned error.
type stubAdapter struct {
	broker types.BrokerType
	execs  []types.ImportedExecution
	err    error
	block  chan struct{}
}

func (a *stubAdapter) Broker() types.BrokerType { return a.broker }

func (a *stubAdapter) FetchExecutions(ctx context.Context, _ map[string]string, _ *time.Time) ([]types.ImportedExecution, error) {
	if a.block != nil {
		<-a.block
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.execs, nil
}

func validExecution(broker types.BrokerType) types.ImportedExecution {
	return types.ImportedExecution{
		Ticker:     "NVDA",
		Side:       "buy",
		Quantity:   10,
		EntryPrice: 120.50,
		ExitPrice:  131.00,
		Timestamp:  time.Date(2024, 4, 10, 16, 0, 0, 0, time.UTC),
		Broker:     broker,
	}
}

type fixture struct {
	store    *MockStore
	registry *registry.Registry
	adapters *broker.Factory
	orch     *Orchestrator
}

func newFixture(t *testing.T, connections []types.BrokerConnection, adapters ...broker.Adapter) *fixture {
	t.Helper()
	st := new(MockStore)
	st.On("GetConnections", mock.Anything, "u1").Return(connections, nil)
	st.On("TradeCountsByConnection", mock.Anything, "u1").Return(map[string]int{}, nil)

	factory := broker.NewFactory()
	for _, a := range adapters {
		require.NoError(t, factory.Register(a))
	}

	reg := registry.New(st)
	_, err := reg.Load(context.Background(), "u1")
	require.NoError(t, err)

	orch := NewOrchestrator(st, reg, factory, nil, Options{
		AdapterRate:  1000,
		AdapterBurst: 100,
		Notify:       func(string, ...any) {},
	})
	t.Cleanup(orch.Stop)
	return &fixture{store: st, registry: reg, adapters: factory, orch: orch}
}

func TestSyncOne_Success(t *testing.T) {
	conns := []types.BrokerConnection{
		{ID: "conn-a", UserID: "u1", Broker: types.BrokerRawFeed, IsActive: true},
	}
	bad := validExecution(types.BrokerRawFeed)
	bad.EntryPrice = 0
	adapter := &stubAdapter{
		broker: types.BrokerRawFeed,
		execs:  []types.ImportedExecution{validExecution(types.BrokerRawFeed), bad},
	}
	f := newFixture(t, conns, adapter)
	f.store.On("SaveTrade", mock.Anything, "u1", mock.Anything).Return(nil)
	f.store.On("UpdateConnection", mock.Anything, "conn-a", mock.Anything).Return(nil)

	result, err := f.orch.SyncOne(context.Background(), "u1", "conn-a")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.TradesImported)
	assert.Equal(t, 1, result.TradesSkipped)
	assert.Len(t, result.Errors, 1)

	// lastSync was persisted and the registry reloaded.
	f.store.AssertCalled(t, "UpdateConnection", mock.Anything, "conn-a",
		mock.MatchedBy(func(u store.ConnectionUpdate) bool { return u.LastSync != nil }))
	f.store.AssertNumberOfCalls(t, "GetConnections", 2)

	st, ok := f.registry.Status("u1", "conn-a")
	require.True(t, ok)
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.LastError)
}

func TestSyncOne_ReloadFailureStillClearsLoading(t *testing.T) {
	conns := []types.BrokerConnection{
		{ID: "conn-a", UserID: "u1", Broker: types.BrokerRawFeed, IsActive: true},
	}
	adapter := &stubAdapter{
		broker: types.BrokerRawFeed,
		execs:  []types.ImportedExecution{validExecution(types.BrokerRawFeed)},
	}

	notified := make(chan string, 1)
	st := new(MockStore)
	st.On("GetConnections", mock.Anything, "u1").Return(conns, nil).Once()
	st.On("TradeCountsByConnection", mock.Anything, "u1").Return(map[string]int{}, nil)
	st.On("GetConnections", mock.Anything, "u1").Return(nil, errors.New("db down"))
	st.On("SaveTrade", mock.Anything, "u1", mock.Anything).Return(nil)
	st.On("UpdateConnection", mock.Anything, "conn-a", mock.Anything).Return(nil)

	factory := broker.NewFactory()
	require.NoError(t, factory.Register(adapter))
	reg := registry.New(st)
	_, err := reg.Load(context.Background(), "u1")
	require.NoError(t, err)

	orch := NewOrchestrator(st, reg, factory, nil, Options{
		AdapterRate:  1000,
		AdapterBurst: 100,
		Notify: func(format string, _ ...any) {
			select {
			case notified <- format:
			default:
			}
		},
	})
	t.Cleanup(orch.Stop)

	result, err := orch.SyncOne(context.Background(), "u1", "conn-a")
	require.NoError(t, err)
	assert.True(t, result.Success)

	// The reload failure is observed through the hook, and the
	// connection does not stay stuck looking busy.
	select {
	case <-notified:
	default:
		t.Fatal("reload failure was not observed")
	}
	status, ok := reg.Status("u1", "conn-a")
	require.True(t, ok)
	assert.False(t, status.IsLoading)
	assert.Empty(t, status.LastError)
}

func TestSyncOne_UnknownConnectionFailsFast(t *testing.T) {
	f := newFixture(t, []types.BrokerConnection{
		{ID: "conn-a", UserID: "u1", Broker: types.BrokerRawFeed, IsActive: true},
	}, &stubAdapter{broker: types.BrokerRawFeed})

	_, err := f.orch.SyncOne(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, registry.ErrConnectionNotFound)

	// No state was touched.
	st, _ := f.registry.Status("u1", "conn-a")
	assert.False(t, st.IsLoading)
	f.store.AssertNotCalled(t, "UpdateConnection", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncOne_AdapterFailureRecordedOnOneConnection(t *testing.T) {
	conns := []types.BrokerConnection{
		{ID: "conn-a", UserID: "u1", Broker: types.BrokerIBKR, IsActive: true},
		{ID: "conn-b", UserID: "u1", Broker: types.BrokerRawFeed, IsActive: true},
	}
	failing := &stubAdapter{broker: types.BrokerIBKR, err: broker.ErrAuth}
	f := newFixture(t, conns, failing, &stubAdapter{broker: types.BrokerRawFeed})

	_, err := f.orch.SyncOne(context.Background(), "u1", "conn-a")
	require.ErrorIs(t, err, broker.ErrAuth)

	stA, _ := f.registry.Status("u1", "conn-a")
	assert.False(t, stA.IsLoading)
	assert.NotEmpty(t, stA.LastError)

	stB, _ := f.registry.Status("u1", "conn-b")
	assert.Empty(t, stB.LastError)
	f.store.AssertNotCalled(t, "UpdateConnection", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncAll_IsolatesFailures(t *testing.T) {
	conns := []types.BrokerConnection{
		{ID: "conn-a", UserID: "u1", Broker: types.BrokerIBKR, IsActive: true},
		{ID: "conn-b", UserID: "u1", Broker: types.BrokerRawFeed, IsActive: true},
		{ID: "conn-c", UserID: "u1", Broker: types.BrokerWebull, IsActive: false},
	}
	failing := &stubAdapter{broker: types.BrokerIBKR, err: broker.ErrTransport}
	succeeding := &stubAdapter{
		broker: types.BrokerRawFeed,
		execs:  []types.ImportedExecution{validExecution(types.BrokerRawFeed)},
	}
	f := newFixture(t, conns, failing, succeeding)
	f.store.On("SaveTrade", mock.Anything, "u1", mock.Anything).Return(nil)
	f.store.On("UpdateConnection", mock.Anything, "conn-b", mock.Anything).Return(nil)

	outcomes := f.orch.SyncAll(context.Background(), "u1")

	// Inactive conn-c is skipped; the failure on conn-a does not stop
	// conn-b from importing.
	require.Len(t, outcomes, 2)
	assert.Equal(t, "conn-a", outcomes[0].ConnectionID)
	assert.NotEmpty(t, outcomes[0].Err)
	assert.Nil(t, outcomes[0].Result)

	assert.Equal(t, "conn-b", outcomes[1].ConnectionID)
	assert.Empty(t, outcomes[1].Err)
	require.NotNil(t, outcomes[1].Result)
	assert.Equal(t, 1, outcomes[1].Result.TradesImported)

	stA, _ := f.registry.Status("u1", "conn-a")
	assert.NotEmpty(t, stA.LastError)
	stB, _ := f.registry.Status("u1", "conn-b")
	assert.False(t, stB.IsLoading)
	assert.Empty(t, stB.LastError)
}

func TestSyncOne_RejectsOverlappingSync(t *testing.T) {
	conns := []types.BrokerConnection{
		{ID: "conn-a", UserID: "u1", Broker: types.BrokerRawFeed, IsActive: true},
	}
	blocked := &stubAdapter{broker: types.BrokerRawFeed, block: make(chan struct{})}
	f := newFixture(t, conns, blocked)
	f.store.On("UpdateConnection", mock.Anything, "conn-a", mock.Anything).Return(nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.orch.SyncOne(context.Background(), "u1", "conn-a")
		firstDone <- err
	}()

	require.Eventually(t, func() bool {
		st, ok := f.registry.Status("u1", "conn-a")
		return ok && st.IsLoading
	}, time.Second, 5*time.Millisecond)

	_, err := f.orch.SyncOne(context.Background(), "u1", "conn-a")
	assert.ErrorIs(t, err, ErrSyncInFlight)

	close(blocked.block)
	require.NoError(t, <-firstDone)

	// Once the first sync finishes the guard is released.
	blocked.block = nil
	_, err = f.orch.SyncOne(context.Background(), "u1", "conn-a")
	assert.NoError(t, err)
}

func TestAutoSync_TicksAndStops(t *testing.T) {
	conns := []types.BrokerConnection{
		{ID: "conn-a", UserID: "u1", Broker: types.BrokerIBKR, IsActive: true},
	}
	failing := &stubAdapter{broker: types.BrokerIBKR, err: broker.ErrTransport}

	notified := make(chan string, 16)
	st := new(MockStore)
	st.On("GetConnections", mock.Anything, "u1").Return(conns, nil)
	st.On("TradeCountsByConnection", mock.Anything, "u1").Return(map[string]int{}, nil)

	factory := broker.NewFactory()
	require.NoError(t, factory.Register(failing))
	reg := registry.New(st)
	_, err := reg.Load(context.Background(), "u1")
	require.NoError(t, err)

	orch := NewOrchestrator(st, reg, factory, nil, Options{
		AdapterRate:  1000,
		AdapterBurst: 100,
		Notify: func(format string, args ...any) {
			select {
			case notified <- format:
			default:
			}
		},
	})
	defer orch.Stop()

	orch.StartAutoSync(context.Background(), "u1", 10*time.Millisecond)

	// Tick failures are observed through the hook, never raised, and
	// never stop the timer.
	for i := 0; i < 2; i++ {
		select {
		case <-notified:
		case <-time.After(time.Second):
			t.Fatal("auto-sync tick was not observed")
		}
	}

	orch.StopAutoSync("u1")
}
