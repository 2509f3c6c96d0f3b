package sync

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ZIMkaRU/bfx-report/internal/venue"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// Detector decides, before any bulk fetch, whether a collection has new data
// and where the fetch should start. It spends one probe request (single
// record, pagination checks suppressed) per collection or symbol.
type Detector struct {
	store  Store
	retry  *RetryPolicy
	logger *logrus.Entry
}

// NewDetector creates a cursor/delta detector.
func NewDetector(store Store, retry *RetryPolicy, logger *logrus.Logger) *Detector {
	return &Detector{
		store:  store,
		retry:  retry,
		logger: logger.WithField("component", "detector"),
	}
}

// DetectAccount computes the start cursor for one account-scoped collection.
// Empty storage with remote data starts from the epoch; otherwise the cursor
// is one past the newest stored record, and only when the probe shows
// something newer.
func (d *Detector) DetectAccount(ctx context.Context, schema *Schema, auth *models.AccountCredential) (*cursorState, error) {
	cs := &cursorState{}

	page, err := d.retry.FetchOne(ctx, schema.Name, venue.Args{Auth: auth}, true)
	if err != nil {
		return nil, fmt.Errorf("%s: probe failed: %w", schema.Name, err)
	}
	if len(page.Rows) == 0 {
		return cs, nil
	}

	probe, err := schema.Transform(page.Rows[0])
	if err != nil {
		return nil, fmt.Errorf("%s: probe: %w", schema.Name, err)
	}
	remoteDate, ok := probe.Date(schema.DateField)
	if !ok {
		d.logger.WithField("collection", schema.Name).
			Warn("Probe record lacks date field, skipping collection")
		return cs, nil
	}

	filter := accountFilter(auth)
	last, err := d.store.GetLastRecord(ctx, schema.Name, filter, schema.DateField)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load last record: %w", schema.Name, err)
	}
	if last == nil {
		cs.hasNewData = true
		cs.start = 0
		return cs, nil
	}

	lastDate, ok := last.Date(schema.DateField)
	if !ok {
		// Stored data without a readable date cannot anchor a cursor;
		// refetch from the epoch rather than guess.
		cs.hasNewData = true
		cs.start = 0
		return cs, nil
	}

	if remoteDate > lastDate {
		cs.hasNewData = true
		cs.start = lastDate + 1
	}
	return cs, nil
}

// DetectPublic computes per-symbol cursors for a configurable public
// collection from its symbol configuration table. Each symbol gets a forward
// boundary and, when its configured start moved earlier than the earliest
// stored record, a historical gap to backfill.
func (d *Detector) DetectPublic(ctx context.Context, schema *Schema) (*cursorState, error) {
	cs := &cursorState{symbols: make(map[string]*symbolCursor)}

	confs, err := d.store.GetRecordsBy(ctx, ConfCollection, QueryBy{
		Filter:     map[string]interface{}{"conf_name": schema.ConfName},
		MinField:   "start",
		GroupField: "symbol",
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load symbol configuration: %w", schema.Name, err)
	}

	for _, conf := range confs {
		symbol := conf.String("symbol")
		confStart, _ := conf.Date("start")
		if symbol == "" {
			continue
		}

		scur, err := d.detectSymbol(ctx, schema, symbol, confStart)
		if err != nil {
			return nil, err
		}
		if scur == nil {
			continue
		}

		cs.symbols[symbol] = scur
		cs.hasNewData = true
	}

	return cs, nil
}

func (d *Detector) detectSymbol(ctx context.Context, schema *Schema, symbol string, confStart int64) (*symbolCursor, error) {
	page, err := d.retry.FetchOne(ctx, schema.Name, venue.Args{
		Symbol:        symbol,
		NotThrowError: true,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("%s: probe failed for %s: %w", schema.Name, symbol, err)
	}
	if len(page.Rows) == 0 {
		return nil, nil
	}

	probe, err := schema.Transform(page.Rows[0])
	if err != nil {
		return nil, fmt.Errorf("%s: probe for %s: %w", schema.Name, symbol, err)
	}
	if got := probe.String(schema.SymbolField); got != symbol {
		// The venue answered for a different symbol, or does not
		// support this one at all.
		d.logger.WithFields(logrus.Fields{
			"collection": schema.Name,
			"want":       symbol,
			"got":        got,
		}).Debug("Probe symbol mismatch, skipping")
		return nil, nil
	}
	remoteDate, ok := probe.Date(schema.DateField)
	if !ok {
		return nil, nil
	}

	filter := map[string]interface{}{schema.SymbolField: symbol}
	scur := &symbolCursor{}

	last, err := d.store.GetLastRecord(ctx, schema.Name, filter, schema.DateField)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load last record for %s: %w", schema.Name, symbol, err)
	}
	if last == nil {
		scur.hasCurr = true
		scur.currStart = confStart
		return scur, nil
	}

	lastDate, lastOK := last.Date(schema.DateField)
	if lastOK && remoteDate > lastDate {
		scur.hasCurr = true
		scur.currStart = lastDate + 1
	}

	first, err := d.store.GetFirstRecord(ctx, schema.Name, filter, schema.DateField)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load first record for %s: %w", schema.Name, symbol, err)
	}
	if first != nil {
		if earliest, ok := first.Date(schema.DateField); ok && confStart < earliest {
			scur.hasBase = true
			scur.baseStartFrom = confStart
			scur.baseStartTo = earliest - 1
		}
	}

	if !scur.hasCurr && !scur.hasBase {
		return nil, nil
	}
	return scur, nil
}

// accountFilter is the identity filter attached to every account-scoped read
// and write.
func accountFilter(auth *models.AccountCredential) map[string]interface{} {
	return map[string]interface{}{"user_id": auth.ID}
}
