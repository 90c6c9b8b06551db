package correlator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sheep333/lambda-cloudwatch-event/internal/accesslog"
	"github.com/sheep333/lambda-cloudwatch-event/internal/logsource"
)

const (
	// DefaultPeerWindow is the look-back interval for co-occurring 5xx events
	// on the same source.
	DefaultPeerWindow = time.Minute
	// DefaultAppWindow is the interval on each side of the error timestamp
	// for companion application log lookup.
	DefaultAppWindow = time.Minute

	defaultQueryTimeout = 10 * time.Second
	defaultMaxAttempts  = 3
	backoffUnit         = time.Second
)

// ErrorEvent is one 5xx access log event awaiting correlation.
type ErrorEvent struct {
	// Entry is the parsed access log record.
	Entry accesslog.Entry
	// StreamID is the originating log stream.
	StreamID string
	// EventID is the backend's identifier for the log event.
	EventID string
	// Timestamp is the event's arrival time in epoch millis.
	Timestamp int64
	// RawMessage is the unparsed line, preserved verbatim for sink payloads.
	RawMessage string
}

// Incident is one correlated error event ready for dispatch.
type Incident struct {
	Event ErrorEvent
	// Context is the companion application log messages in arrival order,
	// newline-joined. Empty when none were found.
	Context string
	// ContextUnavailable marks incidents whose companion lookup exhausted
	// retries; Context may then be empty or partial.
	ContextUnavailable bool
	// PeerErrorCount is the number of other 5xx events in the peer window.
	PeerErrorCount int
}

// Identity is the deduplication key: stable across redeliveries of the same
// upstream batch because it derives only from the event's origin.
func (i Incident) Identity() string {
	return i.Event.StreamID + "/" + i.Event.EventID
}

// Options configures correlation windows and retry behavior.
type Options struct {
	// PeerWindow is the look-back for co-occurring 5xx events (default 60s).
	PeerWindow time.Duration
	// AppWindow is the half-width of the companion window (default 60s).
	AppWindow time.Duration
	// QueryTimeout bounds each backend call (default 10s).
	QueryTimeout time.Duration
	// MaxAttempts is the total tries per query on transient failure (default 3).
	MaxAttempts int
}

func (o *Options) applyDefaults() {
	if o.PeerWindow <= 0 {
		o.PeerWindow = DefaultPeerWindow
	}
	if o.AppWindow <= 0 {
		o.AppWindow = DefaultAppWindow
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = defaultQueryTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
}

// Correlator queries the log backend around error events.
type Correlator struct {
	querier logsource.Querier
	logger  *zap.Logger
	opts    Options
}

// New creates a Correlator.
func New(querier logsource.Querier, logger *zap.Logger, opts Options) *Correlator {
	opts.applyDefaults()
	return &Correlator{
		querier: querier,
		logger:  logger.Named("correlator"),
		opts:    opts,
	}
}

// Correlate builds the Incident for ev. The returned error is non-nil only
// for fatal conditions (invalid range); transient backend failures degrade
// to ContextUnavailable instead.
func (c *Correlator) Correlate(ctx context.Context, ev ErrorEvent) (Incident, error) {
	incident := Incident{Event: ev}

	peerStart := clampStart(ev.Timestamp - c.opts.PeerWindow.Milliseconds())
	peers, err := c.queryWithRetry(ctx, logsource.SourceEdgeAccess, ev.StreamID,
		peerStart, ev.Timestamp, logsource.PredicateServerError)
	switch {
	case err == nil:
		incident.PeerErrorCount = len(peers)
	case errors.Is(err, logsource.ErrInvalidRange):
		return Incident{}, err
	default:
		// Peer count is a burst signal only; its loss is not worth failing
		// the incident for.
		c.logger.Warn("Peer window query failed",
			zap.String("stream", ev.StreamID),
			zap.Error(err))
	}

	appStart := clampStart(ev.Timestamp - c.opts.AppWindow.Milliseconds())
	appEnd := ev.Timestamp + c.opts.AppWindow.Milliseconds()
	companions, err := c.queryWithRetry(ctx, logsource.SourceApplication, ev.StreamID,
		appStart, appEnd, "")
	switch {
	case err == nil:
		incident.Context = joinMessages(companions)
	case errors.Is(err, logsource.ErrInvalidRange):
		return Incident{}, err
	default:
		incident.ContextUnavailable = true
		c.logger.Warn("Companion window query failed, proceeding without context",
			zap.String("stream", ev.StreamID),
			zap.String("event", ev.EventID),
			zap.Error(err))
	}

	c.logger.Debug("Correlated incident",
		zap.String("identity", incident.Identity()),
		zap.Int("peer_errors", incident.PeerErrorCount),
		zap.Bool("context_unavailable", incident.ContextUnavailable))

	return incident, nil
}

// queryWithRetry runs one windowed query with a per-call timeout, retrying
// transient failures with linear backoff. Fatal errors return immediately.
func (c *Correlator) queryWithRetry(ctx context.Context, source logsource.Source, streamID string, start, end int64, predicate string) ([]logsource.Record, error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * backoffUnit
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
				timer.Stop()
			case <-ctx.Done():
				timer.Stop()
				return nil, &logsource.UnavailableError{Source: source, Err: ctx.Err()}
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.opts.QueryTimeout)
		records, err := c.querier.Query(callCtx, source, streamID, start, end, predicate)
		cancel()
		if err == nil {
			return records, nil
		}
		if !logsource.IsUnavailable(err) {
			return nil, err
		}

		lastErr = err
		c.logger.Debug("Window query transient failure, will retry",
			zap.String("source", string(source)),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

func joinMessages(records []logsource.Record) string {
	if len(records) == 0 {
		return ""
	}
	messages := make([]string, len(records))
	for i, r := range records {
		messages[i] = r.Message
	}
	return strings.Join(messages, "\n")
}

func clampStart(start int64) int64 {
	if start < 0 {
		return 0
	}
	return start
}
