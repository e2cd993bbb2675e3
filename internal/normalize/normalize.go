// Package normalize converts broker-specific executions into canonical
// trades. A rejected execution is reported back as a skip, never as a
// batch abort: one bad row from a broker must not block the rest of a
// sync.
package normalize

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradevault/internal/types"
	"tradevault/internal/validate"
)

// SkipError describes why a single execution was left out of an import.
type SkipError struct {
	Execution types.ImportedExecution
	Reasons   []string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("execution %q skipped: %s", e.Execution.Ticker, strings.Join(e.Reasons, "; "))
}

// Execution maps one imported execution to a canonical trade: fresh
// identity, full field validation, deterministic realized P/L, and a
// provenance marker on the notes. Returns a SkipError when validation
// rejects the candidate.
func Execution(exec types.ImportedExecution, connectionID string) (types.Trade, error) {
	candidate := types.TradeCandidate{
		Ticker:     exec.Ticker,
		EntryPrice: exec.EntryPrice,
		ExitPrice:  exec.ExitPrice,
		Quantity:   exec.Quantity,
		Direction:  mapSide(exec.Side),
		Timestamp:  exec.Timestamp,
		Notes:      provenanceNotes(exec.Notes, exec.Broker),
	}

	res := validate.Trade(candidate)
	if !res.IsValid {
		return types.Trade{}, &SkipError{Execution: exec, Reasons: res.Errors}
	}

	trade := res.Sanitized
	trade.ID = uuid.NewString()
	trade.Broker = exec.Broker
	trade.ConnectionID = connectionID
	trade.ExternalID = exec.ExternalID
	trade.RealizedPL = RealizedPL(trade.Direction, trade.EntryPrice, trade.ExitPrice, trade.Quantity)
	return trade, nil
}

// RealizedPL computes profit/loss in decimal space to keep broker price
// precision out of float accumulation error:
// long (exit-entry)*qty, short (entry-exit)*qty. Open positions report 0.
func RealizedPL(dir types.Direction, entry, exit float64, qty int64) float64 {
	if exit == 0 {
		return 0
	}
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)
	q := decimal.NewFromInt(qty)

	var pl decimal.Decimal
	if dir == types.DirectionShort {
		pl = e.Sub(x).Mul(q)
	} else {
		pl = x.Sub(e).Mul(q)
	}
	f, _ := pl.Float64()
	return f
}

// mapSide translates broker side vocabulary to a direction. Unknown
// values pass through so the validator reports them instead of this
// package guessing.
func mapSide(side string) string {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "buy", "long", "b":
		return string(types.DirectionLong)
	case "sell", "short", "s":
		return string(types.DirectionShort)
	default:
		return side
	}
}

func provenanceNotes(notes string, broker types.BrokerType) string {
	marker := fmt.Sprintf("[imported from %s]", broker)
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return marker
	}
	return notes + " " + marker
}
