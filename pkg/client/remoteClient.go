package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pulsefit/checkin-sync/schema"
)

// ErrNoOpenSession is returned by CheckOut when the member has no open
// session to close. It is a domain condition, not a transport failure:
// retrying will not change the outcome.
var ErrNoOpenSession = errors.New("no open session found")

// StatusError carries the HTTP status of a failed remote call so callers can
// distinguish retryable (network/5xx) from terminal (4xx) failures.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote call failed with status %d: %s", e.Code, e.Message)
}

// Retryable reports whether the error is worth retrying. Network-level
// errors (anything that is not a StatusError) and 5xx responses are
// retryable; domain and client errors are not.
func Retryable(err error) bool {
	if errors.Is(err, ErrNoOpenSession) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}
	return true
}

// RemoteClient is the thin boundary to the backend check-in surface.
type RemoteClient interface {
	// CheckIn opens a session for the member, or refreshes the check-in
	// timestamp of an already-open one.
	CheckIn(ctx context.Context, memberID string, lat, lon float64) (*schema.SessionRecord, error)
	// CheckOut closes the member's most recent open session. Returns
	// ErrNoOpenSession when there is nothing to close.
	CheckOut(ctx context.Context, memberID string) (*schema.SessionRecord, error)
}
