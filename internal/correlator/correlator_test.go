package correlator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheep333/lambda-cloudwatch-event/internal/logsource"
)

// recordingQuerier wraps a Querier and records the windows it was asked for.
type recordingQuerier struct {
	inner logsource.Querier
	calls []queryCall
}

type queryCall struct {
	source     logsource.Source
	streamID   string
	start, end int64
	predicate  string
}

func (r *recordingQuerier) Query(ctx context.Context, source logsource.Source, streamID string, start, end int64, predicate string) ([]logsource.Record, error) {
	r.calls = append(r.calls, queryCall{source, streamID, start, end, predicate})
	return r.inner.Query(ctx, source, streamID, start, end, predicate)
}

// flakyQuerier fails the first failures calls per source with a transient
// error, then delegates.
type flakyQuerier struct {
	inner    logsource.Querier
	failures int
	seen     int
}

func (f *flakyQuerier) Query(ctx context.Context, source logsource.Source, streamID string, start, end int64, predicate string) ([]logsource.Record, error) {
	f.seen++
	if f.seen <= f.failures {
		return nil, &logsource.UnavailableError{Source: source, Err: fmt.Errorf("simulated outage")}
	}
	return f.inner.Query(ctx, source, streamID, start, end, predicate)
}

func testEvent(ts int64) ErrorEvent {
	return ErrorEvent{
		StreamID:   "web-01",
		EventID:    "evt-1",
		Timestamp:  ts,
		RawMessage: "raw 502 line",
	}
}

func TestCorrelateWindows(t *testing.T) {
	const ts = int64(1_700_000_000_000)
	store := logsource.NewMemoryStore()
	rq := &recordingQuerier{inner: store}
	c := New(rq, zap.NewNop(), Options{})

	_, err := c.Correlate(context.Background(), testEvent(ts))
	require.NoError(t, err)

	require.Len(t, rq.calls, 2)

	peer := rq.calls[0]
	assert.Equal(t, logsource.SourceEdgeAccess, peer.source)
	assert.Equal(t, "web-01", peer.streamID)
	assert.Equal(t, ts-60_000, peer.start)
	assert.Equal(t, ts, peer.end)
	assert.Equal(t, logsource.PredicateServerError, peer.predicate)

	app := rq.calls[1]
	assert.Equal(t, logsource.SourceApplication, app.source)
	assert.Equal(t, "web-01", app.streamID)
	assert.Equal(t, ts-60_000, app.start)
	assert.Equal(t, ts+60_000, app.end)
	assert.Empty(t, app.predicate)
}

func TestCorrelateCompanionBoundaries(t *testing.T) {
	const ts = int64(10_000_000)
	store := logsource.NewMemoryStore()
	store.Add(logsource.SourceApplication, "web-01",
		logsource.Record{EventID: "at-start", Timestamp: ts - 60_000, Message: "included at start"},
		logsource.Record{EventID: "inside", Timestamp: ts, Message: "included inside"},
		logsource.Record{EventID: "at-end", Timestamp: ts + 60_000, Message: "excluded at end"},
	)

	c := New(store, zap.NewNop(), Options{})
	incident, err := c.Correlate(context.Background(), testEvent(ts))
	require.NoError(t, err)

	assert.Equal(t, "included at start\nincluded inside", incident.Context)
	assert.False(t, incident.ContextUnavailable)
}

func TestCorrelatePeerCount(t *testing.T) {
	const ts = int64(10_000_000)
	store := logsource.NewMemoryStore()
	store.Add(logsource.SourceEdgeAccess, "web-01",
		logsource.Record{EventID: "p1", Timestamp: ts - 30_000, Message: "GET / 502 0"},
		logsource.Record{EventID: "p2", Timestamp: ts - 10_000, Message: "GET / 503 0"},
		logsource.Record{EventID: "ok", Timestamp: ts - 5_000, Message: "GET / 200 10"},
		logsource.Record{EventID: "self", Timestamp: ts, Message: "GET / 502 0"},
	)

	c := New(store, zap.NewNop(), Options{})
	incident, err := c.Correlate(context.Background(), testEvent(ts))
	require.NoError(t, err)

	// The event itself sits at the exclusive end of the peer window.
	assert.Equal(t, 2, incident.PeerErrorCount)
}

func TestCorrelateAbsentCompanionStream(t *testing.T) {
	store := logsource.NewMemoryStore()
	c := New(store, zap.NewNop(), Options{})

	incident, err := c.Correlate(context.Background(), testEvent(10_000_000))
	require.NoError(t, err)
	assert.Empty(t, incident.Context)
	assert.False(t, incident.ContextUnavailable)
}

func TestCorrelateClampsStartToZero(t *testing.T) {
	store := logsource.NewMemoryStore()
	rq := &recordingQuerier{inner: store}
	c := New(rq, zap.NewNop(), Options{})

	_, err := c.Correlate(context.Background(), testEvent(10))
	require.NoError(t, err)

	require.Len(t, rq.calls, 2)
	assert.Equal(t, int64(0), rq.calls[0].start)
	assert.Equal(t, int64(0), rq.calls[1].start)
}

func TestCorrelateTransientRetrySucceeds(t *testing.T) {
	const ts = int64(10_000_000)
	store := logsource.NewMemoryStore()
	store.Add(logsource.SourceApplication, "web-01",
		logsource.Record{EventID: "a", Timestamp: ts, Message: "app error"},
	)
	fq := &flakyQuerier{inner: store, failures: 1}
	c := New(fq, zap.NewNop(), Options{MaxAttempts: 2})

	incident, err := c.Correlate(context.Background(), testEvent(ts))
	require.NoError(t, err)

	// The first (peer) query fails once and is retried; context still arrives.
	assert.Equal(t, "app error", incident.Context)
	assert.False(t, incident.ContextUnavailable)
}

func TestCorrelateExhaustedRetriesDegrade(t *testing.T) {
	fq := &flakyQuerier{inner: logsource.NewMemoryStore(), failures: 100}
	c := New(fq, zap.NewNop(), Options{MaxAttempts: 1})

	incident, err := c.Correlate(context.Background(), testEvent(10_000_000))
	require.NoError(t, err, "transient exhaustion must not fail the incident")

	assert.True(t, incident.ContextUnavailable)
	assert.Empty(t, incident.Context)
	assert.Zero(t, incident.PeerErrorCount)
}

func TestCorrelateInvalidRangeIsFatal(t *testing.T) {
	q := querierFunc(func(ctx context.Context, source logsource.Source, streamID string, start, end int64, predicate string) ([]logsource.Record, error) {
		return nil, logsource.ErrInvalidRange
	})
	c := New(q, zap.NewNop(), Options{MaxAttempts: 1})

	_, err := c.Correlate(context.Background(), testEvent(10_000_000))
	assert.ErrorIs(t, err, logsource.ErrInvalidRange)
}

type querierFunc func(ctx context.Context, source logsource.Source, streamID string, start, end int64, predicate string) ([]logsource.Record, error)

func (f querierFunc) Query(ctx context.Context, source logsource.Source, streamID string, start, end int64, predicate string) ([]logsource.Record, error) {
	return f(ctx, source, streamID, start, end, predicate)
}

func TestIncidentIdentityStable(t *testing.T) {
	a := Incident{Event: ErrorEvent{StreamID: "s", EventID: "e", Timestamp: 1}}
	b := Incident{Event: ErrorEvent{StreamID: "s", EventID: "e", Timestamp: 2}}

	assert.Equal(t, a.Identity(), b.Identity(), "identity ignores everything but origin")
	assert.Equal(t, "s/e", a.Identity())
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.applyDefaults()

	assert.Equal(t, time.Minute, o.PeerWindow)
	assert.Equal(t, time.Minute, o.AppWindow)
	assert.Equal(t, 3, o.MaxAttempts)
	assert.NotZero(t, o.QueryTimeout)
}
