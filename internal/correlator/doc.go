// Package correlator gathers corroborating log context around a 5xx event.
//
// # Contract
//
// For an error event at time T on stream S the correlator issues two
// windowed queries:
//
//  1. Peer window: [T-W_peer, T) on the edge-access source with the 5xx
//     predicate. The resulting count is carried on the incident as a burst
//     signal; no throttling policy is applied to it.
//  2. Companion window: [T-W_app, T+W_app) on the application source for
//     the same stream. The messages are concatenated in arrival order into
//     the incident's context blob.
//
// Window starts clamp at epoch zero. An absent companion stream yields an
// empty blob, not an error. Transient backend failures are retried with
// bounded linear backoff; if retries are exhausted the incident proceeds
// with whatever context exists and ContextUnavailable set, so a flaky log
// backend never suppresses an alert. Invalid ranges are programming errors
// and surface immediately.
//
// # Types
//
//	type ErrorEvent struct { ... }   // parsed 5xx line + origin stream/event
//	type Incident struct { ... }     // event + context blob + peer count
//	func (i Incident) Identity() string
//	func New(q logsource.Querier, logger *zap.Logger, opts Options) *Correlator
//	func (c *Correlator) Correlate(ctx context.Context, ev ErrorEvent) (Incident, error)
package correlator
