package logsource

import (
	"context"
	"errors"
	"fmt"
)

// Source identifies one of the two logical log categories.
type Source string

const (
	// SourceEdgeAccess is the front-line load balancer access log.
	SourceEdgeAccess Source = "edge-access"
	// SourceApplication is the backend application log.
	SourceApplication Source = "application"
)

// PredicateServerError selects 5xx-class events. Backends translate it into
// their native filter syntax; the MemoryStore matches status columns
// beginning with '5'.
const PredicateServerError = "5*"

// Record is one log event returned from a windowed query.
type Record struct {
	EventID   string
	Timestamp int64 // epoch millis
	Message   string
	StreamID  string
}

// ErrInvalidRange reports a query with start > end. This is a configuration
// or programming error and is never retried.
var ErrInvalidRange = errors.New("logsource: invalid range: start after end")

// UnavailableError wraps a transient backend failure (timeout, connection
// loss, throttling). Callers may retry.
type UnavailableError struct {
	Source Source
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("logsource: %s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a transient backend failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// Querier is the only interface through which the core touches the log
// backend. Results are ordered by Timestamp ascending and cover [start, end).
// An empty predicate returns all events in the window.
type Querier interface {
	Query(ctx context.Context, source Source, streamID string, start, end int64, predicate string) ([]Record, error)
}
