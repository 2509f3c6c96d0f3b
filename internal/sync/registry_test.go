package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaNames(schemas []*Schema) []string {
	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}
	return names
}

func TestNewRegistry_Collections(t *testing.T) {
	t.Parallel()

	r := NewRegistry(1000)

	for _, name := range []string{
		"trades", "ledgers", "orders", "movements",
		"positionsHistory", "fundingOfferHistory",
		"fundingLoanHistory", "fundingCreditHistory",
		"publicTrades", "tickersHistory", "symbols", "currencies",
	} {
		_, ok := r.Resolve(name)
		assert.True(t, ok, name)
	}

	_, ok := r.Resolve("nope")
	assert.False(t, ok)
}

func TestRegistry_AccountSchemas(t *testing.T) {
	t.Parallel()

	r := NewRegistry(1000)

	assert.Equal(t, []string{
		"trades", "ledgers", "orders", "movements",
		"positionsHistory", "fundingOfferHistory",
		"fundingLoanHistory", "fundingCreditHistory",
	}, schemaNames(r.AccountSchemas()))
}

func TestRegistry_PublicSchemasOrderedByKind(t *testing.T) {
	t.Parallel()

	r := NewRegistry(1000)

	// Reference data first, then history collections.
	assert.Equal(t, []string{
		"symbols", "currencies", "publicTrades", "tickersHistory",
	}, schemaNames(r.PublicSchemas()))
}

func TestRegistry_RecordCapApplied(t *testing.T) {
	t.Parallel()

	r := NewRegistry(12345)

	for _, name := range []string{"publicTrades", "tickersHistory"} {
		s, ok := r.Resolve(name)
		require.True(t, ok)
		assert.Equal(t, 12345, s.RecordCap)
	}

	s, _ := r.Resolve("trades")
	assert.Zero(t, s.RecordCap)
}

func TestRegistry_Filter(t *testing.T) {
	t.Parallel()

	r := NewRegistry(1000)

	narrowed, err := r.Filter([]string{"ledgers", "trades"})
	require.NoError(t, err)
	// Registration order is preserved regardless of the allow-list order.
	assert.Equal(t, []string{"trades", "ledgers"}, schemaNames(narrowed.AccountSchemas()))
	assert.Empty(t, narrowed.PublicSchemas())

	same, err := r.Filter(nil)
	require.NoError(t, err)
	assert.Same(t, r, same)
}

func TestRegistry_FilterUnknownName(t *testing.T) {
	t.Parallel()

	r := NewRegistry(1000)

	_, err := r.Filter([]string{"trades", "bogus"})
	require.Error(t, err)

	var confErr *ConfigError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "collections", confErr.Field)
}
