package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sheep333/lambda-cloudwatch-event/internal/correlator"
)

// DefaultSubject is the alert title used for every incident.
const DefaultSubject = "5XX ERROR OCCURED!!"

const contextUnavailableMarker = "(application log context unavailable: log backend did not respond)"

// Dispatcher renders incidents and fans them out to the configured sinks.
type Dispatcher struct {
	logger   *zap.Logger
	location *time.Location
	sinks    []Sink
}

// NewDispatcher creates a Dispatcher. loc is the display timezone for the
// human-readable rendering; nil falls back to UTC.
func NewDispatcher(logger *zap.Logger, loc *time.Location, sinks ...Sink) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		logger:   logger.Named("dispatcher"),
		location: loc,
		sinks:    sinks,
	}
}

// Dispatch sends the incident to every sink and returns the full outcome
// map. Sinks are attempted concurrently and independently; the map always
// has one entry per configured sink, so partial failures stay visible.
func (d *Dispatcher) Dispatch(ctx context.Context, incident correlator.Incident) map[string]Outcome {
	n := d.render(incident)
	outcomes := make(map[string]Outcome, len(d.sinks))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, sink := range d.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			began := time.Now()
			reference, err := s.Send(ctx, n)
			outcome := classify(reference, err)

			dispatchTotal.WithLabelValues(s.Name(), string(outcome.Status)).Inc()
			dispatchDuration.WithLabelValues(s.Name()).Observe(time.Since(began).Seconds())

			if outcome.Failed() {
				d.logger.Error("Sink delivery failed",
					zap.String("sink", s.Name()),
					zap.String("status", string(outcome.Status)),
					zap.String("identity", incident.Identity()),
					zap.String("reason", outcome.Reason))
			} else {
				d.logger.Info("Sink delivery accepted",
					zap.String("sink", s.Name()),
					zap.String("identity", incident.Identity()),
					zap.String("reference", outcome.Reference))
			}

			mu.Lock()
			outcomes[s.Name()] = outcome
			mu.Unlock()
		}(sink)
	}
	wg.Wait()

	return outcomes
}

// render builds the one Notification shared by all sinks.
func (d *Dispatcher) render(incident correlator.Incident) Notification {
	ev := incident.Event
	displayTime := time.UnixMilli(ev.Timestamp).In(d.location).Format("2006-01-02 15:04:05")

	var summary strings.Builder
	fmt.Fprintf(&summary, "LogStream : %s\n", ev.StreamID)
	fmt.Fprintf(&summary, "Time : %s\n", displayTime)
	fmt.Fprintf(&summary, "EventID : %s\n", ev.EventID)
	fmt.Fprintf(&summary, "Message : %s\n", ev.RawMessage)
	if incident.PeerErrorCount > 0 {
		fmt.Fprintf(&summary, "PeerErrors : %d in the preceding window\n", incident.PeerErrorCount)
	}

	appContext := incident.Context
	if incident.ContextUnavailable {
		if appContext != "" {
			appContext += "\n"
		}
		appContext += contextUnavailableMarker
	}

	var description strings.Builder
	description.WriteString("### error_log\n```\n")
	description.WriteString(ev.RawMessage)
	description.WriteString("\n```\n### app_log\n```\n")
	description.WriteString(appContext)
	description.WriteString("\n```")

	return Notification{
		Subject:     DefaultSubject,
		Summary:     summary.String(),
		Description: description.String(),
		StreamID:    ev.StreamID,
		EventID:     ev.EventID,
		Timestamp:   ev.Timestamp,
		RawMessage:  ev.RawMessage,
	}
}
