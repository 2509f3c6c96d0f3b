package sync

import (
	"fmt"
	"sort"
)

// Registry is the static table of collection schemas, optionally narrowed to
// an allow-list at construction time. Schemas are shared and immutable.
type Registry struct {
	schemas map[string]*Schema
	order   []string
}

// NewRegistry builds the full registry. publicRecordCap bounds the records
// pulled per pass for the capped public collections; 0 leaves them unbounded.
func NewRegistry(publicRecordCap int) *Registry {
	r := &Registry{schemas: make(map[string]*Schema)}
	for _, s := range buildSchemas(publicRecordCap) {
		r.schemas[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	return r
}

// Filter returns a registry narrowed to the named collections. An unknown
// name is a configuration error; an empty list keeps everything.
func (r *Registry) Filter(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}

	allowed := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := r.schemas[name]; !ok {
			return nil, &ConfigError{
				Field:  "collections",
				Reason: fmt.Sprintf("unknown collection name %q", name),
			}
		}
		allowed[name] = struct{}{}
	}

	out := &Registry{schemas: make(map[string]*Schema, len(allowed))}
	for _, name := range r.order {
		if _, ok := allowed[name]; ok {
			out.schemas[name] = r.schemas[name]
			out.order = append(out.order, name)
		}
	}
	return out, nil
}

// Resolve looks up a schema by collection name.
func (r *Registry) Resolve(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// AccountSchemas returns the account-scoped insertable schemas in
// registration order. Only those participate in per-account sync.
func (r *Registry) AccountSchemas() []*Schema {
	var out []*Schema
	for _, name := range r.order {
		s := r.schemas[name]
		if !s.Public && s.Kind == KindInsertableArrayObjects {
			out = append(out, s)
		}
	}
	return out
}

// PublicSchemas returns the public schemas ordered by kind: plain arrays
// first, then object listings, then insertable collections. Reference data
// lands before the history collections that mention it.
func (r *Registry) PublicSchemas() []*Schema {
	var out []*Schema
	for _, name := range r.order {
		s := r.schemas[name]
		if s.Public {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return kindRank(out[i].Kind) < kindRank(out[j].Kind)
	})
	return out
}

func kindRank(k Kind) int {
	switch k {
	case KindUpdatableArray:
		return 0
	case KindUpdatableArrayObjects:
		return 1
	default:
		return 2
	}
}

func buildSchemas(publicRecordCap int) []*Schema {
	return []*Schema{
		{
			Name:      "trades",
			Kind:      KindInsertableArrayObjects,
			DateField: "mts_create",
			PageLimit: 1000,
			Columns: []string{
				"id", "symbol", "mts_create", "order_id",
				"exec_amount", "exec_price", "order_type",
				"order_price", "maker", "fee", "fee_currency",
			},
			Transform: tradeTransform,
		},
		{
			Name:      "ledgers",
			Kind:      KindInsertableArrayObjects,
			DateField: "mts",
			PageLimit: 2500,
			Columns: []string{
				"id", "currency", "mts", "amount", "balance", "description",
			},
			Transform: ledgerTransform,
		},
		{
			Name:      "orders",
			Kind:      KindInsertableArrayObjects,
			DateField: "mts_update",
			PageLimit: 2500,
			Columns: []string{
				"id", "gid", "cid", "symbol", "mts_create", "mts_update",
				"amount", "amount_orig", "order_type", "order_status", "price", "price_avg",
			},
			Transform: orderTransform,
		},
		{
			Name:      "movements",
			Kind:      KindInsertableArrayObjects,
			DateField: "mts_updated",
			PageLimit: 25,
			Columns: []string{
				"id", "currency", "currency_name", "mts_started",
				"mts_updated", "status", "amount", "fees",
				"destination_address", "transaction_id",
			},
			Transform: movementTransform,
		},
		{
			Name:      "positionsHistory",
			Kind:      KindInsertableArrayObjects,
			DateField: "mts_update",
			PageLimit: 50,
			Columns: []string{
				"id", "symbol", "status", "amount", "base_price",
				"margin_funding", "margin_funding_type",
				"mts_create", "mts_update",
			},
			Transform: positionTransform,
		},
		{
			Name:      "fundingOfferHistory",
			Kind:      KindInsertableArrayObjects,
			DateField: "mts_update",
			PageLimit: 500,
			Columns: []string{
				"id", "symbol", "mts_create", "mts_update",
				"amount", "amount_orig", "offer_type", "status",
				"rate", "period",
			},
			Transform: fundingOfferTransform,
		},
		{
			Name:      "fundingLoanHistory",
			Kind:      KindInsertableArrayObjects,
			DateField: "mts_update",
			PageLimit: 500,
			Columns: []string{
				"id", "symbol", "side", "mts_create", "mts_update",
				"amount", "rate", "period", "status",
				"mts_opening", "mts_last_payout",
			},
			Transform: fundingLoanTransform,
		},
		{
			Name:      "fundingCreditHistory",
			Kind:      KindInsertableArrayObjects,
			DateField: "mts_update",
			PageLimit: 500,
			Columns: []string{
				"id", "symbol", "side", "mts_create", "mts_update",
				"amount", "rate", "period", "status",
				"mts_opening", "mts_last_payout", "position_pair",
			},
			Transform: fundingCreditTransform,
		},
		{
			Name:        "publicTrades",
			Kind:        KindInsertableArrayObjects,
			Public:      true,
			DateField:   "mts",
			PageLimit:   5000,
			RecordCap:   publicRecordCap,
			SymbolField: "symbol",
			ConfName:    "publicTradesConf",
			Columns: []string{
				"id", "symbol", "mts", "amount", "price",
			},
			Transform: publicTradeTransform,
		},
		{
			Name:        "tickersHistory",
			Kind:        KindInsertableArrayObjects,
			Public:      true,
			DateField:   "mts_update",
			PageLimit:   250,
			RecordCap:   publicRecordCap,
			SymbolField: "symbol",
			ConfName:    "tickersHistoryConf",
			Columns: []string{
				"symbol", "bid", "ask", "mts_update",
			},
			Transform: tickerHistTransform,
		},
		{
			Name:      "symbols",
			Kind:      KindUpdatableArray,
			Public:    true,
			Fields:    []string{"pairs"},
			Columns:   []string{"pairs"},
			Transform: symbolTransform,
		},
		{
			Name:      "currencies",
			Kind:      KindUpdatableArrayObjects,
			Public:    true,
			Fields:    []string{"id"},
			Columns:   []string{"id", "name", "pool", "explorer"},
			Transform: currencyTransform,
		},
	}
}
