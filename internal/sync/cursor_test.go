package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZIMkaRU/bfx-report/internal/venue"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

func testAccount() *models.AccountCredential {
	return &models.AccountCredential{ID: 7, APIKey: "key", APISecret: "secret"}
}

func TestDetectAccount_EmptyRemote(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(func(gatewayCall) (*venue.PageResult, error) {
		return &venue.PageResult{}, nil
	})
	d := NewDetector(newFakeStore(), newTestRetry(gw), testLogger())

	cs, err := d.DetectAccount(context.Background(), insertableSchema(2, 0), testAccount())
	require.NoError(t, err)
	assert.False(t, cs.hasNewData)

	// The probe is a single-record fetch.
	require.Equal(t, 1, gw.callCount())
	assert.True(t, gw.calls[0].probe)
}

func TestDetectAccount_EmptyStorageStartsFromEpoch(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(func(gatewayCall) (*venue.PageResult, error) {
		return &venue.PageResult{Rows: recordRows(rec(9, 500))}, nil
	})
	d := NewDetector(newFakeStore(), newTestRetry(gw), testLogger())

	cs, err := d.DetectAccount(context.Background(), insertableSchema(2, 0), testAccount())
	require.NoError(t, err)
	assert.True(t, cs.hasNewData)
	assert.Equal(t, int64(0), cs.start)
}

func TestDetectAccount_CursorPastNewestStored(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(func(gatewayCall) (*venue.PageResult, error) {
		return &venue.PageResult{Rows: recordRows(rec(9, 500))}, nil
	})
	store := newFakeStore()
	store.seed("trades", models.Record{"id": int64(5), "mts": int64(400), "user_id": 7})
	d := NewDetector(store, newTestRetry(gw), testLogger())

	cs, err := d.DetectAccount(context.Background(), insertableSchema(2, 0), testAccount())
	require.NoError(t, err)
	assert.True(t, cs.hasNewData)
	assert.Equal(t, int64(401), cs.start)
}

func TestDetectAccount_NoNewData(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(func(gatewayCall) (*venue.PageResult, error) {
		return &venue.PageResult{Rows: recordRows(rec(5, 400))}, nil
	})
	store := newFakeStore()
	store.seed("trades", models.Record{"id": int64(5), "mts": int64(400), "user_id": 7})
	d := NewDetector(store, newTestRetry(gw), testLogger())

	cs, err := d.DetectAccount(context.Background(), insertableSchema(2, 0), testAccount())
	require.NoError(t, err)
	assert.False(t, cs.hasNewData)
}

func TestDetectAccount_IgnoresOtherAccounts(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(func(gatewayCall) (*venue.PageResult, error) {
		return &venue.PageResult{Rows: recordRows(rec(9, 500))}, nil
	})
	store := newFakeStore()
	// Newer data exists, but it belongs to a different account.
	store.seed("trades", models.Record{"id": int64(5), "mts": int64(500), "user_id": 99})
	d := NewDetector(store, newTestRetry(gw), testLogger())

	cs, err := d.DetectAccount(context.Background(), insertableSchema(2, 0), testAccount())
	require.NoError(t, err)
	assert.True(t, cs.hasNewData)
	assert.Equal(t, int64(0), cs.start)
}

func publicSchema() *Schema {
	return &Schema{
		Name:        "publicTrades",
		Kind:        KindInsertableArrayObjects,
		Public:      true,
		DateField:   "mts",
		PageLimit:   2,
		SymbolField: "symbol",
		ConfName:    "publicTradesConf",
		Columns:     []string{"id", "symbol", "mts"},
		Transform:   passthroughTransform,
	}
}

func seedConf(store *fakeStore, symbol string, start int64) {
	store.seed(ConfCollection, models.Record{
		"conf_name": "publicTradesConf",
		"symbol":    symbol,
		"start":     start,
	})
}

func pubRec(symbol string, mts int64) models.Record {
	return models.Record{"id": mts, "symbol": symbol, "mts": mts}
}

func TestDetectPublic_NewSymbolStartsFromConf(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(func(c gatewayCall) (*venue.PageResult, error) {
		return &venue.PageResult{Rows: recordRows(pubRec(c.args.Symbol, 900))}, nil
	})
	store := newFakeStore()
	seedConf(store, "tBTCUSD", 100)
	d := NewDetector(store, newTestRetry(gw), testLogger())

	cs, err := d.DetectPublic(context.Background(), publicSchema())
	require.NoError(t, err)
	require.True(t, cs.hasNewData)

	scur := cs.symbols["tBTCUSD"]
	require.NotNil(t, scur)
	assert.False(t, scur.hasBase)
	assert.True(t, scur.hasCurr)
	assert.Equal(t, int64(100), scur.currStart)

	// Public probes suppress unsupported-symbol errors.
	assert.True(t, gw.calls[0].args.NotThrowError)
}

func TestDetectPublic_BackfillGapWhenConfMovedEarlier(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(func(c gatewayCall) (*venue.PageResult, error) {
		return &venue.PageResult{Rows: recordRows(pubRec(c.args.Symbol, 900))}, nil
	})
	store := newFakeStore()
	seedConf(store, "tBTCUSD", 50)
	store.seed("publicTrades",
		pubRec("tBTCUSD", 200),
		pubRec("tBTCUSD", 800),
	)
	d := NewDetector(store, newTestRetry(gw), testLogger())

	cs, err := d.DetectPublic(context.Background(), publicSchema())
	require.NoError(t, err)

	scur := cs.symbols["tBTCUSD"]
	require.NotNil(t, scur)
	// Forward increment past the newest stored record.
	assert.True(t, scur.hasCurr)
	assert.Equal(t, int64(801), scur.currStart)
	// Historical gap between the configured start and the earliest stored.
	assert.True(t, scur.hasBase)
	assert.Equal(t, int64(50), scur.baseStartFrom)
	assert.Equal(t, int64(199), scur.baseStartTo)
}

func TestDetectPublic_SymbolMismatchSkipped(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(func(gatewayCall) (*venue.PageResult, error) {
		// The venue answers for a different symbol.
		return &venue.PageResult{Rows: recordRows(pubRec("tETHUSD", 900))}, nil
	})
	store := newFakeStore()
	seedConf(store, "tBTCUSD", 100)
	d := NewDetector(store, newTestRetry(gw), testLogger())

	cs, err := d.DetectPublic(context.Background(), publicSchema())
	require.NoError(t, err)
	assert.False(t, cs.hasNewData)
	assert.Empty(t, cs.symbols)
}

func TestDetectPublic_UpToDateSymbolSkipped(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(func(c gatewayCall) (*venue.PageResult, error) {
		return &venue.PageResult{Rows: recordRows(pubRec(c.args.Symbol, 800))}, nil
	})
	store := newFakeStore()
	seedConf(store, "tBTCUSD", 200)
	store.seed("publicTrades",
		pubRec("tBTCUSD", 200),
		pubRec("tBTCUSD", 800),
	)
	d := NewDetector(store, newTestRetry(gw), testLogger())

	cs, err := d.DetectPublic(context.Background(), publicSchema())
	require.NoError(t, err)
	assert.False(t, cs.hasNewData)
}
