package processor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sheep333/lambda-cloudwatch-event/internal/accesslog"
	"github.com/sheep333/lambda-cloudwatch-event/internal/correlator"
	"github.com/sheep333/lambda-cloudwatch-event/internal/dedup"
	"github.com/sheep333/lambda-cloudwatch-event/internal/notifier"
)

const (
	defaultConcurrency = 4

	// Token bucket across batches: bounds pressure on the log backend and
	// the sinks during an error storm.
	eventRateLimit = 50
	eventRateBurst = 100
)

// Event is one raw log event from the upstream transport.
type Event struct {
	EventID   string
	Timestamp int64 // epoch millis
	Message   string
}

// Batch is an ordered set of events from one log stream.
type Batch struct {
	LogGroup string
	StreamID string
	Events   []Event
}

// SkippedLine records a malformed line that was dropped from a batch.
type SkippedLine struct {
	Position int
	Line     string
	Reason   string
}

// EventResult is the delivery outcome for one dispatched incident.
type EventResult struct {
	Identity string
	Outcomes map[string]notifier.Outcome
}

// BatchResult summarizes one Process invocation.
type BatchResult struct {
	// Matched counts events that parsed and classified as 5xx.
	Matched int
	// Suppressed counts incidents the deduplicator rejected.
	Suppressed int
	// Skipped lists malformed lines.
	Skipped []SkippedLine
	// Dispatched holds the outcome map of every dispatched incident.
	Dispatched []EventResult
}

// Err returns a non-nil error when at least one dispatched incident failed
// on every sink, signalling the caller to force redelivery.
func (r BatchResult) Err() error {
	var undelivered []string
	for _, d := range r.Dispatched {
		if notifier.AllFailed(d.Outcomes) {
			undelivered = append(undelivered, d.Identity)
		}
	}
	if len(undelivered) == 0 {
		return nil
	}
	return fmt.Errorf("processor: %d incident(s) failed on all sinks: %v", len(undelivered), undelivered)
}

// Options configures the Processor.
type Options struct {
	// Concurrency bounds the per-batch worker pool (default 4).
	Concurrency int
}

// Processor wires the pipeline stages together.
type Processor struct {
	logger      *zap.Logger
	correlator  *correlator.Correlator
	dedup       *dedup.Deduplicator
	dispatcher  *notifier.Dispatcher
	limiter     *rate.Limiter
	concurrency int
}

// New creates a Processor.
func New(c *correlator.Correlator, d *dedup.Deduplicator, disp *notifier.Dispatcher, logger *zap.Logger, opts Options) *Processor {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Processor{
		logger:      logger.Named("processor"),
		correlator:  c,
		dedup:       d,
		dispatcher:  disp,
		limiter:     rate.NewLimiter(eventRateLimit, eventRateBurst),
		concurrency: concurrency,
	}
}

// Process runs the batch through the pipeline and returns the full result.
// The returned error is non-nil only for fatal conditions (invalid range,
// cancelled context); per-event failures live in the BatchResult.
func (p *Processor) Process(ctx context.Context, batch Batch) (BatchResult, error) {
	var result BatchResult

	// Parse and classify up front, single-threaded: cheap, and it keeps
	// skipped-line positions deterministic.
	type work struct {
		position int
		event    correlator.ErrorEvent
	}
	var pending []work
	for i, ev := range batch.Events {
		entry, err := accesslog.Parse(ev.Message)
		if err != nil {
			p.logger.Warn("Skipping malformed line",
				zap.String("stream", batch.StreamID),
				zap.Int("position", i),
				zap.String("line", ev.Message),
				zap.Error(err))
			result.Skipped = append(result.Skipped, SkippedLine{
				Position: i,
				Line:     ev.Message,
				Reason:   err.Error(),
			})
			continue
		}
		if !entry.IsServerError() {
			continue
		}
		pending = append(pending, work{
			position: i,
			event: correlator.ErrorEvent{
				Entry:      entry,
				StreamID:   batch.StreamID,
				EventID:    ev.EventID,
				Timestamp:  ev.Timestamp,
				RawMessage: ev.Message,
			},
		})
	}
	result.Matched = len(pending)
	if len(pending) == 0 {
		return result, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		fatalErr error
	)
	workCh := make(chan work)

	workers := min(p.concurrency, len(pending))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				dispatched, suppressed, err := p.handleEvent(ctx, w.event)
				mu.Lock()
				switch {
				case err != nil:
					if fatalErr == nil {
						fatalErr = err
					}
				case suppressed:
					result.Suppressed++
				default:
					result.Dispatched = append(result.Dispatched, dispatched)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, w := range pending {
		select {
		case workCh <- w:
		case <-ctx.Done():
			break feed
		}
	}
	close(workCh)
	wg.Wait()

	if fatalErr != nil {
		return result, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// handleEvent runs one error event through correlate -> dedup -> dispatch.
func (p *Processor) handleEvent(ctx context.Context, ev correlator.ErrorEvent) (EventResult, bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return EventResult{}, false, err
	}

	incident, err := p.correlator.Correlate(ctx, ev)
	if err != nil {
		// Correlate only fails fatally (invalid range, cancelled context);
		// transient backend trouble degrades inside the correlator.
		return EventResult{}, false, err
	}

	identity := incident.Identity()
	if !p.dedup.ShouldNotify(identity) {
		p.logger.Info("Suppressing duplicate incident", zap.String("identity", identity))
		return EventResult{}, true, nil
	}

	outcomes := p.dispatcher.Dispatch(ctx, incident)
	return EventResult{Identity: identity, Outcomes: outcomes}, false, nil
}
