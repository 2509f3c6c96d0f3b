package sync

import (
	"context"

	"github.com/ZIMkaRU/bfx-report/internal/venue"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// ConfCollection is the collection holding per-symbol start-date
// configuration for configurable public collections.
const ConfCollection = "publicCollsConf"

// QueryBy selects grouped aggregates from a collection: the minimum of
// MinField per GroupField value, narrowed by Filter.
type QueryBy struct {
	Filter     map[string]interface{}
	MinField   string
	GroupField string
}

// Store is the narrow persistence surface the sync engine runs against.
// Every InsertRecords call is one atomic unit; a crash between calls leaves
// storage consistent and the next run resumes from the last committed page.
type Store interface {
	GetAccountCredentials(ctx context.Context) ([]models.AccountCredential, error)
	GetLastRecord(ctx context.Context, collection string, filter map[string]interface{}, dateField string) (models.Record, error)
	GetFirstRecord(ctx context.Context, collection string, filter map[string]interface{}, dateField string) (models.Record, error)
	// InsertRecords persists one page. Filter columns (account identity)
	// are written into every row alongside the record columns.
	InsertRecords(ctx context.Context, collection string, filter map[string]interface{}, columns []string, records []models.Record) error
	// InsertRecordsIfAbsent inserts rows whose identity-field values are
	// not already present. Existing rows are never overwritten.
	InsertRecordsIfAbsent(ctx context.Context, collection string, keyFields, columns []string, records []models.Record) error
	// RemoveRecordsNotInLists deletes rows whose value for any listed
	// field is absent from that field's allowed set.
	RemoveRecordsNotInLists(ctx context.Context, collection string, allowed map[string][]interface{}) error
	GetRecordsBy(ctx context.Context, collection string, q QueryBy) ([]models.Record, error)
}

// Gateway executes one venue call. Implemented by venue.Client; faked in
// tests.
type Gateway interface {
	HasMethod(name string) bool
	Request(ctx context.Context, method string, args venue.Args, probe bool) (*venue.PageResult, error)
}
