// Package notifier renders correlated incidents and delivers them to the
// configured sinks (ticketing, chat, pub/sub).
//
// # Contract
//
// The Dispatcher:
//  1. Renders one human-readable summary (timestamps normalized to the
//     configured display timezone) and one ticket-style payload carrying
//     the raw error line and application log context verbatim.
//  2. Sends to every sink independently; one sink's failure never blocks
//     another's attempt.
//  3. Returns the complete per-sink outcome map. An incident counts as
//     failed only when every sink failed, which the caller checks with
//     AllFailed before forcing a redelivery.
//
// Sinks classify their own results: Accepted carries the sink's reference
// id (issue number, message id), Rejected carries the sink's error payload,
// Transient marks timeouts and 5xx responses. The dispatcher performs no
// retries of its own — redelivery policy belongs to the caller.
//
// # Types
//
//	type Sink interface { Name() string; Send(ctx, Notification) (string, error) }
//	type Outcome struct { Status Status; Reference, Reason string }
//	func NewDispatcher(logger *zap.Logger, loc *time.Location, sinks ...Sink) *Dispatcher
//	func (d *Dispatcher) Dispatch(ctx context.Context, incident correlator.Incident) map[string]Outcome
package notifier
