// Package broker defines the contract between the sync core and
// per-broker adapters. Wire protocols are entirely the adapter's
// business; the core only sees executions coming back or one of the
// two error classes below.
package broker

import (
	"context"
	"errors"
	"time"

	"tradevault/internal/types"
)

var (
	// ErrAuth marks credential problems. The user has to fix the
	// connection; retrying won't help.
	ErrAuth = errors.New("broker: authentication failed")
	// ErrTransport marks network or upstream availability problems.
	ErrTransport = errors.New("broker: transport failure")
)

// Adapter fetches executions from one brokerage. Implementations own
// their timeouts; an adapter that never returns is an adapter bug, not
// something the orchestrator compensates for.
type Adapter interface {
	Broker() types.BrokerType
	// FetchExecutions returns executions after since. A nil since
	// means a full backfill.
	FetchExecutions(ctx context.Context, credentials map[string]string, since *time.Time) ([]types.ImportedExecution, error)
}
