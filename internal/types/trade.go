package types

import "time"

// Direction is the side of a trade. Decided once at validation time and
// never re-derived downstream.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Status marks a position as open or closed. An open position has no exit
// price yet; a closed one must have exitPrice > 0.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// TradeCandidate is untrusted input: manual entry, bulk rows, or a
// broker execution mapped into candidate shape. Any field may be missing
// or malformed. Direction and Status stay raw strings here so the
// validator can report bad values instead of silently coercing them.
type TradeCandidate struct {
	Ticker     string    `json:"ticker"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	Quantity   float64   `json:"quantity"`
	Direction  string    `json:"direction"`
	Status     string    `json:"status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Notes      string    `json:"notes,omitempty"`
}

// Trade is the canonical, validated representation stored in the ledger.
// Instances are only produced by the validator (manual path) or the
// normalizer (broker path); edits go back through the same validation.
type Trade struct {
	ID         string    `json:"id"`
	Ticker     string    `json:"ticker"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	Quantity   int64     `json:"quantity"`
	Direction  Direction `json:"direction"`
	Status     Status    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Notes      string    `json:"notes,omitempty"`
	RealizedPL float64   `json:"realizedPL"`

	// Provenance. Empty for manual entries.
	Broker       BrokerType `json:"broker,omitempty"`
	ConnectionID string     `json:"connectionId,omitempty"`
	ExternalID   string     `json:"externalId,omitempty"`
}

// ImportedExecution is a broker-specific execution record after the
// adapter has decoded its wire format. Side is the broker's own notion
// ("buy"/"sell" or "long"/"short"); the normalizer maps it.
type ImportedExecution struct {
	Ticker     string     `json:"ticker"`
	Side       string     `json:"side"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entryPrice"`
	ExitPrice  float64    `json:"exitPrice"`
	Timestamp  time.Time  `json:"timestamp"`
	Broker     BrokerType `json:"broker"`
	ExternalID string     `json:"externalId,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}
