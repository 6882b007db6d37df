package nextcrm

import (
	"errors"

	"github.com/MrEthical07/nextcrm/gateway"
	"github.com/MrEthical07/nextcrm/session"
)

var (
	// ErrUnauthorized matches a 401 that survived the refresh protocol.
	ErrUnauthorized = gateway.ErrUnauthorized
	// ErrCircuitBreakerOpen matches the backend's refresh circuit breaker.
	ErrCircuitBreakerOpen = gateway.ErrCircuitBreakerOpen
	// ErrSessionExpired is returned when a refresh failed and the user must
	// log in again.
	ErrSessionExpired = gateway.ErrSessionExpired
	// ErrTransport matches failures where no response was received.
	ErrTransport = gateway.ErrTransport
	// ErrSnapshotCorrupt is returned by Restore for unreadable snapshots.
	ErrSnapshotCorrupt = session.ErrSnapshotCorrupt

	ErrBuilderUsed        = errors.New("builder already used")
	ErrClientClosed       = errors.New("client closed")
	ErrSearchQuery        = errors.New("search query must be at least 2 characters")
	ErrMissingID          = errors.New("id is required")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrPasswordConfirm    = errors.New("password confirmation does not match")
)

// Error is the normalized API error.
type Error = gateway.Error

// ErrorMessage returns the message to show a user for err.
func ErrorMessage(err error) string {
	return gateway.ErrorMessage(err)
}

// ValidationErrors returns the per-field messages carried by err, if any.
func ValidationErrors(err error) map[string][]string {
	var apiErr *gateway.Error
	if errors.As(err, &apiErr) {
		return apiErr.Errors
	}
	return nil
}
