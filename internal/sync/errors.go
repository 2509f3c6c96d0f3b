package sync

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is returned when a full sync is requested while another
// run holds the single execution lane.
var ErrSyncInProgress = errors.New("sync already in progress")

// ConfigError is a setup-time misconfiguration: an unknown collection name in
// the allow-list, or a nil hook/observer registration. Never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
