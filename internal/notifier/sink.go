package notifier

import (
	"context"
	"errors"
	"fmt"
)

// Notification is the rendered form of an incident handed to sinks. Sinks
// pick the fields they need and apply only their own required encoding; the
// raw line and context arrive verbatim.
type Notification struct {
	// Subject is the short alert title.
	Subject string
	// Summary is the human-readable rendering with display-timezone times.
	Summary string
	// Description is the ticket-style body: raw error line plus companion
	// application log context in fenced sections.
	Description string

	// Origin detail, enough to act on without consulting internal state.
	StreamID   string
	EventID    string
	Timestamp  int64
	RawMessage string
}

// Sink is one notification destination. Send returns the sink's reference
// id (issue number, message id) on success. Transient failures are wrapped
// with Transient so the dispatcher can classify them.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) (string, error)
}

// Status classifies one delivery attempt.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusTransient Status = "transient-failure"
)

// Outcome is the per-sink delivery result.
type Outcome struct {
	Status Status
	// Reference is the sink's identifier for the accepted notification.
	Reference string
	// Reason is the sink's error payload for failed attempts.
	Reason string
}

// Failed reports whether the attempt did not land.
func (o Outcome) Failed() bool { return o.Status != StatusAccepted }

// transientError marks a failure as retry-worthy (timeout, 5xx, connection
// loss) as opposed to a permanent rejection.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err as a transient sink failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was wrapped with Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// classify converts a Send result into an Outcome.
func classify(reference string, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Status: StatusAccepted, Reference: reference}
	case IsTransient(err):
		return Outcome{Status: StatusTransient, Reason: err.Error()}
	default:
		return Outcome{Status: StatusRejected, Reason: err.Error()}
	}
}

// AllFailed reports whether every configured sink failed, meaning the caller
// should treat the incident as undelivered.
func AllFailed(outcomes map[string]Outcome) bool {
	if len(outcomes) == 0 {
		return true
	}
	for _, o := range outcomes {
		if !o.Failed() {
			return false
		}
	}
	return true
}

// sinkHTTPError carries an HTTP failure with the sink's response payload.
type sinkHTTPError struct {
	status  int
	payload string
}

func (e *sinkHTTPError) Error() string {
	if e.payload == "" {
		return fmt.Sprintf("HTTP %d", e.status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.status, e.payload)
}
