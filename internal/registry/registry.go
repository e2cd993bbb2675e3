// Package registry maintains the in-memory view of each user's broker
// connections and their live status. Statuses are derived state: every
// successful load rebuilds them from scratch and swaps the whole map in
// one assignment, so the connection list and trade counts can never
// drift apart.
package registry

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"tradevault/internal/store"
	"tradevault/internal/types"
)

var ErrConnectionNotFound = errors.New("registry: connection not found")

type userView struct {
	connections []types.BrokerConnection
	statuses    map[string]*types.ConnectionStatus
}

type Registry struct {
	store store.Store

	mu    sync.RWMutex
	users map[string]*userView
}

func New(st store.Store) *Registry {
	return &Registry{store: st, users: make(map[string]*userView)}
}

// Load fetches the user's connections and trade counts, then rebuilds
// the status map. On any fetch error the prior in-memory state is left
// untouched. Connections and counts are fetched concurrently; the swap
// happens only after both succeed.
func (r *Registry) Load(ctx context.Context, userID string) ([]types.BrokerConnection, error) {
	var (
		connections []types.BrokerConnection
		counts      map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		connections, err = r.store.GetConnections(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = r.store.TradeCountsByConnection(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statuses := make(map[string]*types.ConnectionStatus, len(connections))
	for _, conn := range connections {
		statuses[conn.ID] = &types.ConnectionStatus{
			ConnectionID: conn.ID,
			Broker:       conn.Broker,
			IsConnected:  conn.IsActive,
			LastSync:     conn.LastSync,
			TotalTrades:  counts[conn.ID],
			IsLoading:    false,
		}
	}

	r.mu.Lock()
	r.users[userID] = &userView{connections: connections, statuses: statuses}
	r.mu.Unlock()
	return connections, nil
}

// Add persists the connection then reloads, keeping statuses and counts
// consistent rather than patching the map in place.
func (r *Registry) Add(ctx context.Context, conn types.BrokerConnection) error {
	if err := r.store.AddConnection(ctx, conn); err != nil {
		return err
	}
	_, err := r.Load(ctx, conn.UserID)
	return err
}

// Remove deletes the connection then reloads.
func (r *Registry) Remove(ctx context.Context, userID, connectionID string) error {
	if err := r.store.DeleteConnection(ctx, connectionID); err != nil {
		return err
	}
	_, err := r.Load(ctx, userID)
	return err
}

// Connections returns the cached connection list in load order.
func (r *Registry) Connections(userID string) []types.BrokerConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view, ok := r.users[userID]
	if !ok {
		return nil
	}
	out := make([]types.BrokerConnection, len(view.connections))
	copy(out, view.connections)
	return out
}

// Connection finds one cached connection by id.
func (r *Registry) Connection(userID, connectionID string) (*types.BrokerConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view, ok := r.users[userID]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	for i := range view.connections {
		if view.connections[i].ID == connectionID {
			conn := view.connections[i]
			return &conn, nil
		}
	}
	return nil, ErrConnectionNotFound
}

// Statuses returns a copy of all statuses for the user, in connection
// load order.
func (r *Registry) Statuses(userID string) []types.ConnectionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view, ok := r.users[userID]
	if !ok {
		return nil
	}
	out := make([]types.ConnectionStatus, 0, len(view.connections))
	for _, conn := range view.connections {
		if st, ok := view.statuses[conn.ID]; ok {
			out = append(out, *st)
		}
	}
	return out
}

// Status returns a copy of one connection's status.
func (r *Registry) Status(userID, connectionID string) (types.ConnectionStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view, ok := r.users[userID]
	if !ok {
		return types.ConnectionStatus{}, false
	}
	st, ok := view.statuses[connectionID]
	if !ok {
		return types.ConnectionStatus{}, false
	}
	return *st, true
}

// MarkSyncing flags one connection as in-flight and clears its last
// error. Only the orchestrator calls this.
func (r *Registry) MarkSyncing(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.status(userID, connectionID); st != nil {
		st.IsLoading = true
		st.LastError = ""
	}
}

// MarkSynced clears the in-flight flag after a completed sync. A
// successful reload rebuilds statuses anyway; this is for the case
// where the sync succeeded but the reload did not, so the connection
// must not stay stuck looking busy.
func (r *Registry) MarkSynced(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.status(userID, connectionID); st != nil {
		st.IsLoading = false
	}
}

// MarkSyncError records a failure on exactly one connection, leaving
// every other status untouched.
func (r *Registry) MarkSyncError(userID, connectionID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.status(userID, connectionID); st != nil {
		st.IsLoading = false
		st.LastError = message
	}
}

func (r *Registry) status(userID, connectionID string) *types.ConnectionStatus {
	view, ok := r.users[userID]
	if !ok {
		return nil
	}
	return view.statuses[connectionID]
}
