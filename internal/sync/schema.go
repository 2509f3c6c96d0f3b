package sync

import (
	"fmt"

	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// Kind describes how a collection's records are persisted.
type Kind int

const (
	// KindInsertableArrayObjects is a time-ordered collection grown by
	// appending new records past the stored cursor.
	KindInsertableArrayObjects Kind = iota
	// KindUpdatableArrayObjects is dimension-like reference data of
	// objects, reconciled as a set against the latest remote listing.
	KindUpdatableArrayObjects
	// KindUpdatableArray is reference data of scalar values, reconciled
	// the same way.
	KindUpdatableArray
)

func (k Kind) String() string {
	switch k {
	case KindInsertableArrayObjects:
		return "insertable-array-objects"
	case KindUpdatableArrayObjects:
		return "updatable-array-objects"
	case KindUpdatableArray:
		return "updatable-array"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Transform normalizes one raw venue row into a Record keyed by column name.
type Transform func(raw interface{}) (models.Record, error)

// Schema is the immutable descriptor of one synchronized collection. Name
// doubles as the remote method name and the storage collection id. Per-run
// cursor state lives in cursorState, never here, so schemas are safe to share
// across runs.
type Schema struct {
	Name      string
	Kind      Kind
	Public    bool
	DateField string // empty for non-time-ordered updatable collections
	PageLimit int    // max records the venue returns per page
	RecordCap int    // max records persisted per pass, 0 = unbounded
	Fields    []string
	Columns   []string
	// SymbolField and ConfName are set for configurable public
	// collections whose per-symbol start dates live in the conf table.
	SymbolField string
	ConfName    string
	Transform   Transform
}

// transformRows applies the schema transform to a whole page.
func (s *Schema) transformRows(rows []interface{}) ([]models.Record, error) {
	recs := make([]models.Record, 0, len(rows))
	for i, raw := range rows {
		rec, err := s.Transform(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", s.Name, i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// symbolCursor holds the per-symbol boundaries of one configurable public
// collection for one run. baseStartFrom..baseStartTo is a historical gap to
// backfill; currStart is the forward-incremental boundary.
type symbolCursor struct {
	hasBase       bool
	baseStartFrom int64
	baseStartTo   int64
	hasCurr       bool
	currStart     int64
}

// cursorState is the mutable per-run position of one collection. Owned by the
// orchestration pass and discarded at run end.
type cursorState struct {
	hasNewData bool
	start      int64
	symbols    map[string]*symbolCursor
}
