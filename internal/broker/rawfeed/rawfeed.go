// Package rawfeed implements the one adapter the core ships: it reads
// broker-agnostic JSON execution dumps (a file the user exported, or an
// inline payload on the bulk-import path). Payloads are checked against
// a schema before any row is interpreted, then decoded leniently so a
// single odd row degrades to a skip downstream instead of killing the
// batch.
package rawfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"tradevault/internal/broker"
	"tradevault/internal/types"
)

const payloadSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["ticker", "side", "quantity", "entry_price"],
    "properties": {
      "ticker":      {"type": "string"},
      "side":        {"type": "string"},
      "quantity":    {"type": "number"},
      "entry_price": {"type": "number"},
      "exit_price":  {"type": "number"},
      "timestamp":   {"type": ["string", "number"]},
      "external_id": {"type": "string"},
      "notes":       {"type": "string"}
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("rawfeed.json", payloadSchema)

type Adapter struct{}

var _ broker.Adapter = (*Adapter)(nil)

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Broker() types.BrokerType { return types.BrokerRawFeed }

// FetchExecutions reads the dump file named by the connection's "path"
// credential. Missing or unreadable files are transport errors: the
// feed source is unavailable, the connection itself is fine.
func (a *Adapter) FetchExecutions(ctx context.Context, credentials map[string]string, since *time.Time) ([]types.ImportedExecution, error) {
	path := strings.TrimSpace(credentials["path"])
	if path == "" {
		return nil, fmt.Errorf("%w: rawfeed connection missing path credential", broker.ErrAuth)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read feed %s: %v", broker.ErrTransport, path, err)
	}
	execs, err := ParsePayload(raw)
	if err != nil {
		return nil, err
	}
	if since == nil {
		return execs, nil
	}
	filtered := execs[:0]
	for _, e := range execs {
		if e.Timestamp.After(*since) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// ParsePayload validates and decodes a JSON execution dump.
func ParsePayload(raw []byte) ([]types.ImportedExecution, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: feed is not valid JSON", broker.ErrTransport)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", broker.ErrTransport, err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: feed schema: %v", broker.ErrTransport, err)
	}

	var execs []types.ImportedExecution
	gjson.ParseBytes(raw).ForEach(func(_, row gjson.Result) bool {
		execs = append(execs, types.ImportedExecution{
			Ticker:     row.Get("ticker").String(),
			Side:       row.Get("side").String(),
			Quantity:   row.Get("quantity").Float(),
			EntryPrice: row.Get("entry_price").Float(),
			ExitPrice:  row.Get("exit_price").Float(),
			Timestamp:  parseTimestamp(row.Get("timestamp")),
			Broker:     types.BrokerRawFeed,
			ExternalID: row.Get("external_id").String(),
			Notes:      row.Get("notes").String(),
		})
		return true
	})
	return execs, nil
}

// parseTimestamp accepts RFC3339 strings, date-only strings, or unix
// seconds. Anything else comes back zero and fails validation later,
// where it is reported per row.
func parseTimestamp(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
	case gjson.Number:
		if sec := v.Int(); sec > 0 {
			return time.Unix(sec, 0).UTC()
		}
	}
	return time.Time{}
}
