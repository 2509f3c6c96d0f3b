package sync

import (
	"fmt"

	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// Venue history rows arrive as positional JSON arrays; reference listings as
// objects or plain strings. These transforms normalize each shape into a
// Record keyed by the schema's column names.

func rowArray(raw interface{}, minLen int) ([]interface{}, error) {
	arr, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array row, got %T", raw)
	}
	if len(arr) < minLen {
		return nil, fmt.Errorf("short row: %d fields, want %d", len(arr), minLen)
	}
	return arr, nil
}

// i64 reads an integer field (id, millisecond timestamp, period) at index i,
// 0 when absent or non-numeric.
func i64(arr []interface{}, i int) int64 {
	if f, ok := arr[i].(float64); ok {
		return int64(f)
	}
	return int64(0)
}

func num(arr []interface{}, i int) float64 {
	f, _ := arr[i].(float64)
	return f
}

func str(arr []interface{}, i int) string {
	s, _ := arr[i].(string)
	return s
}

func tradeTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 11)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"id":           i64(arr, 0),
		"symbol":       str(arr, 1),
		"mts_create":   i64(arr, 2),
		"order_id":     i64(arr, 3),
		"exec_amount":  num(arr, 4),
		"exec_price":   num(arr, 5),
		"order_type":   str(arr, 6),
		"order_price":  num(arr, 7),
		"maker":        i64(arr, 8),
		"fee":          num(arr, 9),
		"fee_currency": str(arr, 10),
	}, nil
}

func ledgerTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 6)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"id":          i64(arr, 0),
		"currency":    str(arr, 1),
		"mts":         i64(arr, 2),
		"amount":      num(arr, 3),
		"balance":     num(arr, 4),
		"description": str(arr, 5),
	}, nil
}

func orderTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 12)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"id":           i64(arr, 0),
		"gid":          i64(arr, 1),
		"cid":          i64(arr, 2),
		"symbol":       str(arr, 3),
		"mts_create":   i64(arr, 4),
		"mts_update":   i64(arr, 5),
		"amount":       num(arr, 6),
		"amount_orig":  num(arr, 7),
		"order_type":   str(arr, 8),
		"order_status": str(arr, 9),
		"price":        num(arr, 10),
		"price_avg":    num(arr, 11),
	}, nil
}

func movementTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 10)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"id":                  i64(arr, 0),
		"currency":            str(arr, 1),
		"currency_name":       str(arr, 2),
		"mts_started":         i64(arr, 3),
		"mts_updated":         i64(arr, 4),
		"status":              str(arr, 5),
		"amount":              num(arr, 6),
		"fees":                num(arr, 7),
		"destination_address": str(arr, 8),
		"transaction_id":      str(arr, 9),
	}, nil
}

func positionTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 9)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"id":                  i64(arr, 0),
		"symbol":              str(arr, 1),
		"status":              str(arr, 2),
		"amount":              num(arr, 3),
		"base_price":          num(arr, 4),
		"margin_funding":      num(arr, 5),
		"margin_funding_type": i64(arr, 6),
		"mts_create":          i64(arr, 7),
		"mts_update":          i64(arr, 8),
	}, nil
}

func fundingOfferTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 10)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"id":          i64(arr, 0),
		"symbol":      str(arr, 1),
		"mts_create":  i64(arr, 2),
		"mts_update":  i64(arr, 3),
		"amount":      num(arr, 4),
		"amount_orig": num(arr, 5),
		"offer_type":  str(arr, 6),
		"status":      str(arr, 7),
		"rate":        num(arr, 8),
		"period":      i64(arr, 9),
	}, nil
}

func fundingLoanTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 11)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"id":              i64(arr, 0),
		"symbol":          str(arr, 1),
		"side":            i64(arr, 2),
		"mts_create":      i64(arr, 3),
		"mts_update":      i64(arr, 4),
		"amount":          num(arr, 5),
		"rate":            num(arr, 6),
		"period":          i64(arr, 7),
		"status":          str(arr, 8),
		"mts_opening":     i64(arr, 9),
		"mts_last_payout": i64(arr, 10),
	}, nil
}

func fundingCreditTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 12)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"id":              i64(arr, 0),
		"symbol":          str(arr, 1),
		"side":            i64(arr, 2),
		"mts_create":      i64(arr, 3),
		"mts_update":      i64(arr, 4),
		"amount":          num(arr, 5),
		"rate":            num(arr, 6),
		"period":          i64(arr, 7),
		"status":          str(arr, 8),
		"mts_opening":     i64(arr, 9),
		"mts_last_payout": i64(arr, 10),
		"position_pair":   str(arr, 11),
	}, nil
}

func publicTradeTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 5)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"id":     i64(arr, 0),
		"symbol": str(arr, 1),
		"mts":    i64(arr, 2),
		"amount": num(arr, 3),
		"price":  num(arr, 4),
	}, nil
}

func tickerHistTransform(raw interface{}) (models.Record, error) {
	arr, err := rowArray(raw, 4)
	if err != nil {
		return nil, err
	}
	return models.Record{
		"symbol":     str(arr, 0),
		"bid":        num(arr, 1),
		"ask":        num(arr, 2),
		"mts_update": i64(arr, 3),
	}, nil
}

func symbolTransform(raw interface{}) (models.Record, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected string row, got %T", raw)
	}
	return models.Record{"pairs": s}, nil
}

func currencyTransform(raw interface{}) (models.Record, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected object row, got %T", raw)
	}
	rec := models.Record{}
	for _, field := range []string{"id", "name", "pool", "explorer"} {
		v, _ := obj[field].(string)
		rec[field] = v
	}
	return rec, nil
}
