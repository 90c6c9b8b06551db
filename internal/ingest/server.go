package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sheep333/lambda-cloudwatch-event/internal/processor"
)

const maxRequestBody = 8 << 20

// ServerOptions configures the ingestion HTTP server.
type ServerOptions struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string
	// Deadline bounds the processing of one batch. Zero means 60s.
	Deadline time.Duration
}

// Server receives subscription envelopes over HTTP and runs them through
// the processor. /metrics and /healthz ride on the same listener.
type Server struct {
	logger    *zap.Logger
	processor *processor.Processor
	opts      ServerOptions
	http      *http.Server
}

// NewServer builds the server and its routes.
func NewServer(p *processor.Processor, logger *zap.Logger, opts ServerOptions) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.Deadline <= 0 {
		opts.Deadline = time.Minute
	}

	s := &Server{
		logger:    logger.Named("ingest"),
		processor: p,
		opts:      opts,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/events", s.handleEvents)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the context is cancelled, then shuts the
// listener down and lets in-flight batches finish inside their deadline.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Ingestion server listening", zap.String("addr", s.opts.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.Deadline)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// batchResponse is the JSON reply for one processed envelope.
type batchResponse struct {
	BatchID    string `json:"batchId"`
	Matched    int    `json:"matched"`
	Suppressed int    `json:"suppressed"`
	Skipped    int    `json:"skipped"`
	Dispatched int    `json:"dispatched"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	batchID := uuid.NewString()
	logger := s.logger.With(zap.String("batch_id", batchID))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	batch, err := DecodeEnvelope(body)
	if err != nil {
		if errors.Is(err, ErrControlMessage) {
			logger.Info("Acknowledged control message")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		envelopeErrors.Inc()
		logger.Warn("Rejected malformed envelope", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.Deadline)
	defer cancel()

	began := time.Now()
	result, err := s.processor.Process(ctx, batch)
	batchDuration.Observe(time.Since(began).Seconds())

	if err != nil {
		logger.Error("Batch processing failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rerr := result.Err(); rerr != nil {
		// All sinks failed for at least one incident: report the batch as
		// failed so the upstream redelivers. Dedup will suppress whatever
		// already landed.
		logger.Error("Batch undelivered", zap.Error(rerr))
		http.Error(w, rerr.Error(), http.StatusBadGateway)
		return
	}

	logger.Info("Processed batch",
		zap.String("stream", batch.StreamID),
		zap.Int("events", len(batch.Events)),
		zap.Int("matched", result.Matched),
		zap.Int("suppressed", result.Suppressed),
		zap.Int("skipped", len(result.Skipped)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(batchResponse{
		BatchID:    batchID,
		Matched:    result.Matched,
		Suppressed: result.Suppressed,
		Skipped:    len(result.Skipped),
		Dispatched: len(result.Dispatched),
	})
}
