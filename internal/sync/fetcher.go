package sync

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ZIMkaRU/bfx-report/internal/venue"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// Fetcher drives the fetch/clip/persist loop for one (schema, window) pair.
// Pages are persisted as they arrive, one atomic store call each, so a crash
// mid-backfill loses nothing already fetched and the next run resumes from
// storage state.
type Fetcher struct {
	store  Store
	retry  *RetryPolicy
	logger *logrus.Entry
}

// NewFetcher creates a paginated fetcher persisting through the given store.
func NewFetcher(store Store, retry *RetryPolicy, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		store:  store,
		retry:  retry,
		logger: logger.WithField("component", "fetcher"),
	}
}

// Fill pulls records for one pass of an insertable collection, newest first,
// until the window's start boundary or the schema's record cap is reached or
// the remote is exhausted. filter columns (account identity) are written into
// every persisted row.
func (f *Fetcher) Fill(ctx context.Context, schema *Schema, filter map[string]interface{}, window venue.Args) error {
	if window.Limit == 0 {
		window.Limit = schema.PageLimit
	}

	persisted := 0
	emptyWithCursor := 0

loop:
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := f.retry.FetchOne(ctx, schema.Name, window, false)
		if err != nil {
			return err
		}

		if len(page.Rows) == 0 {
			if page.NextPage == nil {
				break
			}
			// A single empty page alongside a next-page cursor can
			// be a transient remote glitch: retry the same window
			// once before treating the pass as exhausted.
			emptyWithCursor++
			if emptyWithCursor > 1 {
				break
			}
			continue
		}
		emptyWithCursor = 0

		recs, err := schema.transformRows(page.Rows)
		if err != nil {
			return err
		}

		// Pages are newest-first, so the last element is the oldest.
		oldestDate, ok := recs[len(recs)-1].Date(schema.DateField)
		if !ok {
			f.logger.WithFields(logrus.Fields{
				"collection": schema.Name,
				"date_field": schema.DateField,
			}).Warn("Oldest record lacks date field, stopping pass")
			break
		}

		isAllData := false
		if window.Start > 0 && window.Start >= oldestDate {
			recs = clipToStart(recs, schema.DateField, window.Start)
			isAllData = true
		}

		if schema.RecordCap > 0 {
			remaining := schema.RecordCap - persisted
			if len(recs) >= remaining {
				recs = recs[:remaining]
				isAllData = true
			}
		}

		if len(recs) > 0 {
			if err := f.store.InsertRecords(ctx, schema.Name, filter, schema.Columns, recs); err != nil {
				return fmt.Errorf("%s: failed to persist page: %w", schema.Name, err)
			}
			persisted += len(recs)
		}

		if isAllData {
			break
		}

		switch {
		case page.NextPage != nil:
			window.End = *page.NextPage
		case len(page.Rows) >= window.Limit:
			// Full page without next-page info: the remote likely
			// has more, step the window past the oldest record.
			window.End = oldestDate - 1
		default:
			// Short page, nothing further to request.
			break loop
		}
	}

	f.logger.WithFields(logrus.Fields{
		"collection": schema.Name,
		"symbol":     window.Symbol,
		"persisted":  persisted,
	}).Debug("Fetch pass complete")

	return nil
}

// clipToStart keeps only records dated at or after start. Input is
// newest-first, so the cut is from the tail.
func clipToStart(recs []models.Record, dateField string, start int64) []models.Record {
	cut := len(recs)
	for i := len(recs) - 1; i >= 0; i-- {
		d, ok := recs[i].Date(dateField)
		if ok && d >= start {
			break
		}
		cut = i
	}
	return recs[:cut]
}

// Reconcile refreshes an updatable collection against the latest full remote
// listing: rows absent from the listing are removed, rows not yet stored are
// inserted, existing rows are left untouched.
func (f *Fetcher) Reconcile(ctx context.Context, schema *Schema) error {
	page, err := f.retry.FetchOne(ctx, schema.Name, venue.Args{NotCheckNextPage: true}, false)
	if err != nil {
		return err
	}

	if len(page.Rows) == 0 {
		// An empty listing is indistinguishable from a remote fault;
		// wiping local reference data on it would be destructive.
		f.logger.WithField("collection", schema.Name).
			Warn("Empty remote listing, skipping reconciliation")
		return nil
	}

	recs, err := schema.transformRows(page.Rows)
	if err != nil {
		return err
	}

	allowed := make(map[string][]interface{}, len(schema.Fields))
	for _, field := range schema.Fields {
		values := make([]interface{}, 0, len(recs))
		for _, rec := range recs {
			values = append(values, rec[field])
		}
		allowed[field] = values
	}

	if err := f.store.RemoveRecordsNotInLists(ctx, schema.Name, allowed); err != nil {
		return fmt.Errorf("%s: failed to remove stale rows: %w", schema.Name, err)
	}
	if err := f.store.InsertRecordsIfAbsent(ctx, schema.Name, schema.Fields, schema.Columns, recs); err != nil {
		return fmt.Errorf("%s: failed to insert new rows: %w", schema.Name, err)
	}

	f.logger.WithFields(logrus.Fields{
		"collection": schema.Name,
		"listed":     len(recs),
	}).Debug("Reconciliation complete")

	return nil
}
