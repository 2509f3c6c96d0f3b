package models

// Record is one normalized row of a synchronized collection, keyed by column
// name. Values are whatever the venue transform produced (int64 timestamps,
// float64 amounts, strings).
type Record map[string]interface{}

// Date returns the record's value for the given date field as unix
// milliseconds. The second return is false when the field is missing or not
// numeric, which callers treat as malformed remote data.
func (r Record) Date(field string) (int64, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

// String returns the record's value for the given field as a string, or ""
// when the field is absent or of another type.
func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}
