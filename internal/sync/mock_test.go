package sync

import (
	"context"
	"fmt"
	"io"
	gosync "sync"

	"github.com/sirupsen/logrus"

	"github.com/ZIMkaRU/bfx-report/internal/venue"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeStore is an in-memory Store keeping rows per collection with filter
// columns merged in, the way the MySQL layer does.
type fakeStore struct {
	mu       gosync.Mutex
	accounts []models.AccountCredential
	data     map[string][]models.Record

	insertCalls   int
	insertErr     error
	removedFields []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]models.Record)}
}

func (s *fakeStore) rows(collection string) []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Record(nil), s.data[collection]...)
}

func (s *fakeStore) seed(collection string, recs ...models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[collection] = append(s.data[collection], recs...)
}

func (s *fakeStore) GetAccountCredentials(context.Context) ([]models.AccountCredential, error) {
	return s.accounts, nil
}

func matches(rec models.Record, filter map[string]interface{}) bool {
	for k, v := range filter {
		if rec[k] != v {
			return false
		}
	}
	return true
}

func (s *fakeStore) GetLastRecord(_ context.Context, collection string, filter map[string]interface{}, dateField string) (models.Record, error) {
	return s.edge(collection, filter, dateField, true), nil
}

func (s *fakeStore) GetFirstRecord(_ context.Context, collection string, filter map[string]interface{}, dateField string) (models.Record, error) {
	return s.edge(collection, filter, dateField, false), nil
}

func (s *fakeStore) edge(collection string, filter map[string]interface{}, dateField string, newest bool) models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best models.Record
	var bestDate int64
	for _, rec := range s.data[collection] {
		if !matches(rec, filter) {
			continue
		}
		d, ok := rec.Date(dateField)
		if !ok {
			continue
		}
		if best == nil || (newest && d > bestDate) || (!newest && d < bestDate) {
			best = rec
			bestDate = d
		}
	}
	return best
}

func (s *fakeStore) InsertRecords(_ context.Context, collection string, filter map[string]interface{}, columns []string, records []models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}
	s.insertCalls++

	for _, rec := range records {
		row := make(models.Record, len(columns)+len(filter))
		for _, c := range columns {
			row[c] = rec[c]
		}
		for k, v := range filter {
			row[k] = v
		}
		s.data[collection] = append(s.data[collection], row)
	}
	return nil
}

func (s *fakeStore) InsertRecordsIfAbsent(_ context.Context, collection string, keyFields, columns []string, records []models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{})
	for _, rec := range s.data[collection] {
		existing[identityKey(rec, keyFields)] = struct{}{}
	}

	for _, rec := range records {
		if _, ok := existing[identityKey(rec, keyFields)]; ok {
			continue
		}
		row := make(models.Record, len(columns))
		for _, c := range columns {
			row[c] = rec[c]
		}
		s.data[collection] = append(s.data[collection], row)
	}
	return nil
}

func identityKey(rec models.Record, keyFields []string) string {
	key := ""
	for _, f := range keyFields {
		key += fmt.Sprintf("%v|", rec[f])
	}
	return key
}

func (s *fakeStore) RemoveRecordsNotInLists(_ context.Context, collection string, allowed map[string][]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []models.Record
	for _, rec := range s.data[collection] {
		keep := true
		for field, values := range allowed {
			s.removedFields = appendUnique(s.removedFields, field)
			found := false
			for _, v := range values {
				if rec[field] == v {
					found = true
					break
				}
			}
			if !found {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, rec)
		}
	}
	s.data[collection] = kept
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func (s *fakeStore) GetRecordsBy(_ context.Context, collection string, q QueryBy) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mins := make(map[string]int64)
	var order []string
	for _, rec := range s.data[collection] {
		if !matches(rec, q.Filter) {
			continue
		}
		group := rec.String(q.GroupField)
		d, ok := rec.Date(q.MinField)
		if !ok {
			continue
		}
		if cur, seen := mins[group]; !seen || d < cur {
			if !seen {
				order = append(order, group)
			}
			mins[group] = d
		}
	}

	var out []models.Record
	for _, group := range order {
		out = append(out, models.Record{
			q.GroupField: group,
			q.MinField:   mins[group],
		})
	}
	return out, nil
}

// gatewayCall records the arguments of one fake request.
type gatewayCall struct {
	method string
	args   venue.Args
	probe  bool
}

// fakeGateway scripts venue responses per method or via a generic handler.
type fakeGateway struct {
	mu      gosync.Mutex
	calls   []gatewayCall
	handler func(call gatewayCall) (*venue.PageResult, error)
	missing map[string]bool
}

func newFakeGateway(handler func(call gatewayCall) (*venue.PageResult, error)) *fakeGateway {
	return &fakeGateway{handler: handler}
}

func (g *fakeGateway) HasMethod(name string) bool {
	return !g.missing[name]
}

func (g *fakeGateway) Request(_ context.Context, method string, args venue.Args, probe bool) (*venue.PageResult, error) {
	g.mu.Lock()
	call := gatewayCall{method: method, args: args, probe: probe}
	g.calls = append(g.calls, call)
	g.mu.Unlock()

	return g.handler(call)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) callsFor(method string) []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []gatewayCall
	for _, c := range g.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

// recordRows wraps already-normalized records as raw gateway rows for
// schemas whose test transform is a plain type assertion.
func recordRows(recs ...models.Record) []interface{} {
	rows := make([]interface{}, len(recs))
	for i, r := range recs {
		rows[i] = r
	}
	return rows
}

func passthroughTransform(raw interface{}) (models.Record, error) {
	rec, ok := raw.(models.Record)
	if !ok {
		return nil, fmt.Errorf("unexpected row type %T", raw)
	}
	return rec, nil
}
