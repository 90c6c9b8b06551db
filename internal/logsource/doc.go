// Package logsource abstracts windowed queries against the log backend.
//
// # Contract
//
// A Querier fetches the events of one stream within [start, end) — start
// inclusive, end exclusive — ordered by timestamp ascending, optionally
// filtered by a backend predicate. Pagination is the implementation's
// problem: Query always returns the fully materialized window. Window sizes
// are bounded by the caller (the correlator), which keeps this tractable.
//
// Two error classes cross this boundary:
//
//   - *UnavailableError: the backend timed out or transiently failed; safe
//     to retry.
//   - ErrInvalidRange: start > end. A programming error, never retried.
//
// Implementations: MemoryStore (deterministic fixture for tests and local
// runs) and cwl.Client (the real backend adapter).
package logsource
