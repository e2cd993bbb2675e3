// Package sync drives broker synchronization: one connection at a time,
// failures isolated per connection, registry state transitions kept
// honest. The orchestrator is the only writer of lastSync and the only
// caller of the registry's syncing/error marks.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tradevault/internal/broker"
	"tradevault/internal/logger"
	"tradevault/internal/normalize"
	"tradevault/internal/registry"
	"tradevault/internal/scheduler"
	"tradevault/internal/store"
	"tradevault/internal/store/synclog"
	"tradevault/internal/types"
)

// ErrSyncInFlight rejects a second SyncOne for a connection that is
// already syncing. Overlapping syncs would race on the lastSync write,
// so they are refused outright rather than coalesced.
var ErrSyncInFlight = errors.New("sync: connection sync already in flight")

// Notify receives auto-sync tick failures, which have no caller to
// return to. Defaults to the package logger.
type Notify func(format string, args ...any)

type Options struct {
	// AdapterRate bounds broker adapter calls across all connections.
	// Zero means the default of one call per second with a small burst.
	AdapterRate  rate.Limit
	AdapterBurst int
	// AutoSyncInterval is used by StartAutoSync when the caller passes
	// no explicit interval. Defaults to 30 minutes.
	AutoSyncInterval time.Duration
	Notify           Notify
}

type Orchestrator struct {
	store    store.Store
	registry *registry.Registry
	adapters *broker.Factory
	audit    *synclog.Store
	pacer    *rate.Limiter
	notify   Notify

	autoInterval time.Duration

	mu       sync.Mutex
	inflight map[string]bool
	runners  map[string]*scheduler.IntervalRunner
}

func NewOrchestrator(st store.Store, reg *registry.Registry, adapters *broker.Factory, audit *synclog.Store, opts Options) *Orchestrator {
	if opts.AdapterRate <= 0 {
		opts.AdapterRate = rate.Limit(1)
	}
	if opts.AdapterBurst <= 0 {
		opts.AdapterBurst = 3
	}
	if opts.AutoSyncInterval <= 0 {
		opts.AutoSyncInterval = 30 * time.Minute
	}
	if opts.Notify == nil {
		opts.Notify = logger.Warnf
	}
	return &Orchestrator{
		store:        st,
		registry:     reg,
		adapters:     adapters,
		audit:        audit,
		pacer:        rate.NewLimiter(opts.AdapterRate, opts.AdapterBurst),
		notify:       opts.Notify,
		autoInterval: opts.AutoSyncInterval,
		inflight:     make(map[string]bool),
		runners:      make(map[string]*scheduler.IntervalRunner),
	}
}

// SyncOne synchronizes a single connection. Unknown connection ids fail
// fast with no state mutation. On success the new lastSync is persisted
// and the whole registry is reloaded, since cross-connection attribution
// needs a consistent recount of every connection, not just this one.
// On failure only this connection's status records the error.
func (o *Orchestrator) SyncOne(ctx context.Context, userID, connectionID string) (*types.SyncResult, error) {
	conn, err := o.registry.Connection(userID, connectionID)
	if err != nil {
		return nil, err
	}

	if !o.acquire(connectionID) {
		return nil, ErrSyncInFlight
	}
	defer o.release(connectionID)

	o.registry.MarkSyncing(userID, connectionID)
	started := time.Now()

	result, err := o.runSync(ctx, conn)
	o.appendAudit(ctx, conn, result, err, started)
	if err != nil {
		o.registry.MarkSyncError(userID, connectionID, err.Error())
		return nil, err
	}

	lastSync := result.LastSyncTime.Unix()
	if err := o.store.UpdateConnection(ctx, connectionID, store.ConnectionUpdate{LastSync: &lastSync}); err != nil {
		o.registry.MarkSyncError(userID, connectionID, err.Error())
		return nil, fmt.Errorf("persist lastSync: %w", err)
	}
	if _, err := o.registry.Load(ctx, userID); err != nil {
		// The import itself succeeded; a stale registry view is worth a
		// warning but not a failed sync. The in-flight flag still has to
		// clear, or callers see a permanently busy connection.
		o.registry.MarkSynced(userID, connectionID)
		o.notify("sync: registry reload after sync failed for %s: %v", connectionID, err)
	}
	return result, nil
}

func (o *Orchestrator) runSync(ctx context.Context, conn *types.BrokerConnection) (*types.SyncResult, error) {
	adapter, err := o.adapters.Adapter(conn.Broker)
	if err != nil {
		return nil, err
	}
	if err := o.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	execs, err := adapter.FetchExecutions(ctx, conn.Credentials, conn.LastSync)
	if err != nil {
		return nil, err
	}

	result := &types.SyncResult{LastSyncTime: time.Now()}
	for _, exec := range execs {
		trade, err := normalize.Execution(exec, conn.ID)
		if err != nil {
			// One bad execution never aborts the batch.
			result.TradesSkipped++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if err := o.store.SaveTrade(ctx, conn.UserID, trade); err != nil {
			result.TradesSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("save %s: %v", trade.Ticker, err))
			continue
		}
		result.TradesImported++
	}
	result.Success = true
	return result, nil
}

// SyncAll synchronizes every active connection sequentially, in registry
// order. Each connection's outcome is collected independently: a failure
// on one never stops the others.
func (o *Orchestrator) SyncAll(ctx context.Context, userID string) []types.ConnectionOutcome {
	connections := o.registry.Connections(userID)
	outcomes := make([]types.ConnectionOutcome, 0, len(connections))
	for _, conn := range connections {
		if !conn.IsActive {
			continue
		}
		outcome := types.ConnectionOutcome{ConnectionID: conn.ID}
		result, err := o.SyncOne(ctx, userID, conn.ID)
		if err != nil {
			outcome.Err = err.Error()
		} else {
			outcome.Result = result
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// StartAutoSync begins recurring SyncAll ticks for a user. Tick failures
// are observed through the notify hook and never propagate (there is no
// caller to catch them), and they never stop the timer. Calling
// StartAutoSync again for the same user restarts the runner with the
// new interval.
func (o *Orchestrator) StartAutoSync(ctx context.Context, userID string, interval time.Duration) {
	if interval <= 0 {
		interval = o.autoInterval
	}
	o.mu.Lock()
	if prev, ok := o.runners[userID]; ok {
		prev.Stop()
		delete(o.runners, userID)
	}
	runner := scheduler.NewIntervalRunner(ctx, interval)
	o.runners[userID] = runner
	o.mu.Unlock()

	logger.Infof("auto-sync enabled for user=%s interval=%s", userID, interval)
	runner.Start(func() {
		outcomes := o.SyncAll(ctx, userID)
		for _, out := range outcomes {
			if out.Err != "" {
				o.notify("auto-sync: connection %s failed: %s", out.ConnectionID, out.Err)
			}
		}
	})
}

// StopAutoSync cancels the recurring timer for one user.
func (o *Orchestrator) StopAutoSync(userID string) {
	o.mu.Lock()
	runner, ok := o.runners[userID]
	if ok {
		delete(o.runners, userID)
	}
	o.mu.Unlock()
	if ok {
		runner.Stop()
		logger.Infof("auto-sync disabled for user=%s", userID)
	}
}

// Stop tears down every auto-sync runner. Must be called on shutdown so
// no scheduled work leaks past the orchestrator's lifetime.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	runners := make([]*scheduler.IntervalRunner, 0, len(o.runners))
	for userID, r := range o.runners {
		runners = append(runners, r)
		delete(o.runners, userID)
	}
	o.mu.Unlock()
	for _, r := range runners {
		r.Stop()
	}
}

func (o *Orchestrator) acquire(connectionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[connectionID] {
		return false
	}
	o.inflight[connectionID] = true
	return true
}

func (o *Orchestrator) release(connectionID string) {
	o.mu.Lock()
	delete(o.inflight, connectionID)
	o.mu.Unlock()
}

func (o *Orchestrator) appendAudit(ctx context.Context, conn *types.BrokerConnection, result *types.SyncResult, syncErr error, started time.Time) {
	if o.audit == nil {
		return
	}
	rec := synclog.Record{
		ConnectionID: conn.ID,
		UserID:       conn.UserID,
		Broker:       string(conn.Broker),
		DurationMS:   time.Since(started).Milliseconds(),
		StartedAt:    started,
	}
	if syncErr != nil {
		rec.Errors = []string{syncErr.Error()}
	} else if result != nil {
		rec.Success = result.Success
		rec.Imported = result.TradesImported
		rec.Skipped = result.TradesSkipped
		rec.Errors = result.Errors
	}
	if err := o.audit.Append(ctx, rec); err != nil {
		o.notify("sync: audit append failed for %s: %v", conn.ID, err)
	}
}
