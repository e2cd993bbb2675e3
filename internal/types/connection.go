package types

import "time"

// BrokerType is the fixed enumeration of supported brokerages. Each type
// maps to one adapter implementation; "rawfeed" consumes pre-exported
// JSON execution dumps instead of a live API.
type BrokerType string

const (
	BrokerRobinhood BrokerType = "robinhood"
	BrokerWebull    BrokerType = "webull"
	BrokerSchwab    BrokerType = "schwab"
	BrokerETrade    BrokerType = "etrade"
	BrokerIBKR      BrokerType = "ibkr"
	BrokerRawFeed   BrokerType = "rawfeed"
)

func (b BrokerType) Valid() bool {
	switch b {
	case BrokerRobinhood, BrokerWebull, BrokerSchwab, BrokerETrade, BrokerIBKR, BrokerRawFeed:
		return true
	}
	return false
}

// BrokerConnection is a configured link to one external brokerage
// account. Credentials are opaque to the core; only the matching adapter
// interprets them.
type BrokerConnection struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Broker      BrokerType        `json:"broker"`
	Credentials map[string]string `json:"-"`
	IsActive    bool              `json:"isActive"`
	LastSync    *time.Time        `json:"lastSync,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ConnectionStatus is the ephemeral, process-local view of one
// connection. Rebuilt from scratch on every registry load, never
// persisted.
type ConnectionStatus struct {
	ConnectionID string     `json:"connectionId"`
	Broker       BrokerType `json:"broker"`
	IsConnected  bool       `json:"isConnected"`
	LastSync     *time.Time `json:"lastSync,omitempty"`
	TotalTrades  int        `json:"totalTrades"`
	IsLoading    bool       `json:"isLoading"`
	LastError    string     `json:"lastError,omitempty"`
}

// SyncResult is the outcome of one sync attempt for one connection.
type SyncResult struct {
	Success        bool       `json:"success"`
	TradesImported int        `json:"tradesImported"`
	TradesSkipped  int        `json:"tradesSkipped"`
	Errors         []string   `json:"errors,omitempty"`
	LastSyncTime   time.Time  `json:"lastSyncTime"`
	NextSyncTime   *time.Time `json:"nextSyncTime,omitempty"`
}

// ConnectionOutcome pairs a connection with its isolated sync result.
// Exactly one of Result/Err is set.
type ConnectionOutcome struct {
	ConnectionID string      `json:"connectionId"`
	Result       *SyncResult `json:"result,omitempty"`
	Err          string      `json:"error,omitempty"`
}
