// Package validate holds the per-field rules every trade passes before
// it enters a user's ledger, regardless of origin. Validation never
// fails hard: rule violations are collected as strings so a caller can
// surface every failing field at once.
package validate

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"tradevault/internal/sanitize"
	"tradevault/internal/types"
)

const (
	MaxPrice    = 1_000_000
	MaxQuantity = 1_000_000
	MaxTicker   = 10
	MaxNotes    = 1000
)

// earliestTradeDate is the floor for trade timestamps. Nothing in the
// journal predates electronic records from 1990.
var earliestTradeDate = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

// Result reports the outcome of validating one candidate. Sanitized
// carries every field that passed its own rule even when the candidate
// as a whole is invalid, so callers can render field-level feedback.
type Result struct {
	IsValid   bool        `json:"isValid"`
	Sanitized types.Trade `json:"sanitized"`
	Errors    []string    `json:"errors,omitempty"`
}

// Ticker normalizes a raw ticker: uppercase, keep only [A-Z0-9.], then
// check what remains. The sanitized form is returned best-effort even
// when rules fail, except when nothing survives the strip.
func Ticker(raw string) (string, []string) {
	var errs []string
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	sanitized := b.String()
	if sanitized == "" {
		return "", append(errs, "Ticker symbol is required")
	}
	if len(sanitized) > MaxTicker {
		errs = append(errs, "Ticker symbol must be 10 characters or less")
	}
	if c := sanitized[0]; c < 'A' || c > 'Z' {
		errs = append(errs, "Ticker symbol must start with a letter")
	}
	return sanitized, errs
}

// Trade validates and normalizes a candidate. Pure and synchronous: no
// I/O, no clock injection beyond the future-date ceiling check.
func Trade(c types.TradeCandidate) Result {
	var (
		out  types.Trade
		errs []string
	)

	ticker, tickerErrs := Ticker(c.Ticker)
	errs = append(errs, tickerErrs...)
	out.Ticker = ticker

	if c.EntryPrice > 0 && c.EntryPrice <= MaxPrice {
		out.EntryPrice = c.EntryPrice
	} else {
		errs = append(errs, "Valid entry price is required")
	}

	status, exitPrice, exitErrs := resolvePosition(c)
	errs = append(errs, exitErrs...)
	if len(exitErrs) == 0 {
		out.Status = status
		out.ExitPrice = exitPrice
	}

	if qty := c.Quantity; qty > 0 && qty <= MaxQuantity && qty == math.Trunc(qty) {
		out.Quantity = int64(qty)
	} else {
		errs = append(errs, "Quantity must be a positive whole number up to 1,000,000")
	}

	if d := types.Direction(strings.ToLower(strings.TrimSpace(c.Direction))); d.Valid() {
		out.Direction = d
	} else {
		errs = append(errs, "Direction must be either long or short")
	}

	// Length is counted in runes: a note in CJK or with accents is not
	// shorter simply because it encodes to more bytes.
	notes := sanitize.Text(c.Notes)
	if utf8.RuneCountInString(notes) > MaxNotes {
		errs = append(errs, "Notes must be 1000 characters or less")
	} else {
		out.Notes = notes
	}

	switch {
	case c.Timestamp.IsZero():
		errs = append(errs, "A valid trade date is required")
	case c.Timestamp.Before(earliestTradeDate):
		errs = append(errs, "Trade date cannot be before 1990")
	case c.Timestamp.After(time.Now().Add(24 * time.Hour)):
		errs = append(errs, "Trade date cannot be in the future")
	default:
		out.Timestamp = c.Timestamp
	}

	return Result{IsValid: len(errs) == 0, Sanitized: out, Errors: errs}
}

// resolvePosition decides the open/closed split exactly once. Explicit
// "closed" wins over a zero exit price so a contradictory candidate is
// rejected instead of silently reopened; otherwise a zero exit price
// means the position is still open.
func resolvePosition(c types.TradeCandidate) (types.Status, float64, []string) {
	raw := types.Status(strings.ToLower(strings.TrimSpace(c.Status)))
	if c.Status != "" && !raw.Valid() {
		return "", 0, []string{"Status must be either open or closed"}
	}

	if raw == types.StatusClosed || (raw == "" && c.ExitPrice != 0) {
		if c.ExitPrice > 0 && c.ExitPrice <= MaxPrice {
			return types.StatusClosed, c.ExitPrice, nil
		}
		return "", 0, []string{"Valid exit price is required for closed trades"}
	}

	// Open position: a zero exit price is the "no exit yet" marker.
	if c.ExitPrice < 0 || c.ExitPrice > MaxPrice {
		return "", 0, []string{"Exit price must be between 0 and 1,000,000"}
	}
	return types.StatusOpen, c.ExitPrice, nil
}
