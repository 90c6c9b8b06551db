// Package cwl adapts a CloudWatch-Logs-compatible FilterLogEvents HTTP API
// to the logsource.Querier interface. Pagination via nextToken is hidden
// behind Query, which materializes the whole requested window before
// returning.
package cwl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sheep333/lambda-cloudwatch-event/internal/logsource"
)

const (
	amzTarget   = "Logs_20140328.FilterLogEvents"
	contentType = "application/x-amz-json-1.1"
	userAgent   = "cloudwatch-event-notifier/v1"

	// Hard ceiling on pagination rounds for one window. Windows are short
	// (minutes), so hitting this means the backend is misbehaving.
	maxPages = 50
)

// Config holds the connection settings for the backend.
type Config struct {
	// Endpoint is the base URL of the FilterLogEvents API.
	Endpoint string
	// AuthToken, when set, is sent as a bearer token.
	AuthToken string
	// Groups maps each logical source to its log group name.
	Groups map[logsource.Source]string
	// Timeout bounds each individual HTTP call. A timeout surfaces as
	// *logsource.UnavailableError.
	Timeout time.Duration
}

// Client is the real logsource.Querier backed by the log service's HTTP API.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	endpoint   string
	authToken  string
	groups     map[logsource.Source]string
}

// NewClient validates cfg and builds a Client.
func NewClient(logger *zap.Logger, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("cwl: endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("cwl: invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("cwl: endpoint must use http or https scheme, got %q", u.Scheme)
	}
	if len(cfg.Groups) == 0 {
		return nil, fmt.Errorf("cwl: at least one log group mapping is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("cwl"),
		endpoint:   cfg.Endpoint,
		authToken:  cfg.AuthToken,
		groups:     cfg.Groups,
	}, nil
}

// filterRequest is the FilterLogEvents request body.
type filterRequest struct {
	LogGroupName   string   `json:"logGroupName"`
	LogStreamNames []string `json:"logStreamNames,omitempty"`
	StartTime      int64    `json:"startTime"`
	EndTime        int64    `json:"endTime"`
	FilterPattern  string   `json:"filterPattern,omitempty"`
	NextToken      string   `json:"nextToken,omitempty"`
}

// filterResponse is the FilterLogEvents response body.
type filterResponse struct {
	Events []struct {
		EventID       string `json:"eventId"`
		Timestamp     int64  `json:"timestamp"`
		Message       string `json:"message"`
		LogStreamName string `json:"logStreamName"`
	} `json:"events"`
	NextToken string `json:"nextToken"`
}

// Query implements logsource.Querier. The backend's end bound is inclusive,
// so the exclusive end required by the interface is enforced client-side.
func (c *Client) Query(ctx context.Context, source logsource.Source, streamID string, start, end int64, predicate string) ([]logsource.Record, error) {
	if start > end {
		return nil, logsource.ErrInvalidRange
	}
	group, ok := c.groups[source]
	if !ok {
		return nil, fmt.Errorf("cwl: no log group configured for source %q", source)
	}

	began := time.Now()
	req := filterRequest{
		LogGroupName:  group,
		StartTime:     start,
		EndTime:       end,
		FilterPattern: translatePredicate(predicate),
	}
	if streamID != "" {
		req.LogStreamNames = []string{streamID}
	}

	var records []logsource.Record
	for page := 0; page < maxPages; page++ {
		resp, err := c.filterPage(ctx, source, req)
		if err != nil {
			queryDuration.WithLabelValues(string(source), "error").Observe(time.Since(began).Seconds())
			return nil, err
		}
		for _, ev := range resp.Events {
			if ev.Timestamp >= end {
				continue
			}
			records = append(records, logsource.Record{
				EventID:   ev.EventID,
				Timestamp: ev.Timestamp,
				Message:   ev.Message,
				StreamID:  ev.LogStreamName,
			})
		}
		if resp.NextToken == "" {
			queryDuration.WithLabelValues(string(source), "success").Observe(time.Since(began).Seconds())
			queryEvents.WithLabelValues(string(source)).Add(float64(len(records)))
			return records, nil
		}
		req.NextToken = resp.NextToken
	}

	return nil, &logsource.UnavailableError{
		Source: source,
		Err:    fmt.Errorf("pagination did not terminate after %d pages", maxPages),
	}
}

// filterPage executes one FilterLogEvents call.
func (c *Client) filterPage(ctx context.Context, source logsource.Source, fr filterRequest) (*filterResponse, error) {
	body, err := json.Marshal(fr)
	if err != nil {
		return nil, fmt.Errorf("cwl: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cwl: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", amzTarget)
	req.Header.Set("User-Agent", userAgent)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are transient by definition.
		return nil, &logsource.UnavailableError{Source: source, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &logsource.UnavailableError{
			Source: source,
			Err:    fmt.Errorf("backend returned HTTP %d", resp.StatusCode),
		}
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("cwl: backend rejected query: HTTP %d: %s", resp.StatusCode, payload)
	}

	var out filterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &logsource.UnavailableError{Source: source, Err: err}
		}
		return nil, fmt.Errorf("cwl: decode response: %w", err)
	}
	return &out, nil
}

// translatePredicate maps the portable predicate to the backend's filter
// pattern syntax.
func translatePredicate(predicate string) string {
	if predicate == logsource.PredicateServerError {
		return "[ip, id, user, timestamp, request, status_code=5*, size]"
	}
	return predicate
}
