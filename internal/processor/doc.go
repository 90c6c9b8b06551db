// Package processor runs one batch of raw log events through the full
// pipeline: parse, classify, correlate, deduplicate, dispatch.
//
// # Contract
//
// Events within a batch are independent and are processed by a bounded pool
// of workers; each event's correlation windows are computed from its own
// timestamp, never a batch-wide clock. A malformed line is logged with its
// raw content and batch position and skipped — redelivery would fail on the
// same bytes, so there is nothing to retry. Lines that parse but are not
// 5xx are ignored.
//
// The batch as a whole is reported failed only when at least one incident
// was rejected by every configured sink, so the caller can decide whether
// to force an upstream redelivery. Suppressed duplicates and skipped lines
// never fail a batch.
package processor
