package models

import "time"

// Progress states published over the course of one sync run.
const (
	ProgressStateRunning      = "running"
	ProgressStateUnauthorized = "unauthorized"
	ProgressStateDone         = "done"
)

// SyncProgress is one progress event emitted by the orchestrator.
// Value is a 0-100 percentage; State distinguishes the terminal
// "unauthorized" outcome, which carries no meaningful percentage.
type SyncProgress struct {
	RunID     string    `json:"run_id"`
	Value     int       `json:"value"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// Unauthorized reports whether this event marks the no-valid-accounts outcome.
func (p SyncProgress) Unauthorized() bool {
	return p.State == ProgressStateUnauthorized
}

// SymbolConf is one row of the public-collection symbol configuration: the
// earliest date (unix ms) from which the named symbol should be backfilled.
// A symbol may appear in several rows; the detector uses the minimum start.
type SymbolConf struct {
	Symbol string `json:"symbol" db:"symbol"`
	Start  int64  `json:"start" db:"start"`
}
