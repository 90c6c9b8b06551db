// Package accesslog parses ALB access log lines into typed records.
//
// # Contract
//
// Parse matches one whitespace-delimited access log line against a single
// exhaustive pattern with named capture groups. It either returns a fully
// populated Entry or a *ParseError — no partial records. Every field is kept
// as a string; sentinel values ("-", "-1", empty) are preserved verbatim so
// downstream renderers can show the line as the load balancer wrote it.
//
// A trailing catch-all field absorbs columns added by future log format
// revisions without breaking the parse.
//
// # Types
//
//	func Parse(line string) (Entry, error)
//	type Entry struct { ... }                 // one field per log column
//	func (e Entry) IsServerError() bool       // edge or target status is 5xx
//	type ParseError struct { Line, Reason string }
package accesslog
