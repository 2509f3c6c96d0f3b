package venue

import (
	"errors"
	"fmt"
)

// Sentinel errors the sync retry policy classifies on.
var (
	// ErrRateLimited marks a venue response rejected for exceeding the
	// shared request budget. Retried after a long delay.
	ErrRateLimited = errors.New("venue: rate limited")

	// ErrNonceSmall marks a signed request rejected because its nonce was
	// not strictly greater than the previous one. Retried after a short
	// delay with a fresh nonce.
	ErrNonceSmall = errors.New("venue: nonce too small")

	// ErrUnknownMethod marks a request for a method the venue does not
	// expose. Never retried.
	ErrUnknownMethod = errors.New("venue: unknown method")
)

// APIError is a non-2xx venue response that did not map to a sentinel above.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue: API error: status=%d code=%d message=%s",
		e.Status, e.Code, e.Message)
}
