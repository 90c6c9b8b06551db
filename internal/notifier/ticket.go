package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const ticketTimeout = 10 * time.Second

// TicketConfig identifies the Redmine-compatible ticketing endpoint and the
// routing targets for created issues.
type TicketConfig struct {
	// URL is the base URL of the ticketing service.
	URL string
	// APIKey authenticates the request (X-Redmine-API-Key header).
	APIKey string
	// ProjectID, TrackerID and AssigneeID route the created issue.
	ProjectID  string
	TrackerID  string
	AssigneeID string
}

// TicketSink files one issue per incident in a Redmine-compatible tracker.
type TicketSink struct {
	httpClient *http.Client
	logger     *zap.Logger
	cfg        TicketConfig
}

// NewTicketSink validates cfg and builds the sink.
func NewTicketSink(logger *zap.Logger, cfg TicketConfig) (*TicketSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ticket: URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ticket: invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ticket: URL must use http or https scheme, got %q", u.Scheme)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("ticket: project id is required")
	}

	return &TicketSink{
		httpClient: &http.Client{Timeout: ticketTimeout},
		logger:     logger.Named("ticket-sink"),
		cfg:        cfg,
	}, nil
}

// Name implements Sink.
func (t *TicketSink) Name() string { return "ticket" }

// issueRequest is the Redmine issue creation payload.
type issueRequest struct {
	Issue struct {
		ProjectID    string `json:"project_id"`
		TrackerID    string `json:"tracker_id,omitempty"`
		AssignedToID string `json:"assigned_to_id,omitempty"`
		Subject      string `json:"subject"`
		Description  string `json:"description"`
	} `json:"issue"`
}

// issueResponse carries the created issue identifier.
type issueResponse struct {
	Issue struct {
		ID int64 `json:"id"`
	} `json:"issue"`
}

// Send implements Sink. Returns the created issue id as the reference.
func (t *TicketSink) Send(ctx context.Context, n Notification) (string, error) {
	var req issueRequest
	req.Issue.ProjectID = t.cfg.ProjectID
	req.Issue.TrackerID = t.cfg.TrackerID
	req.Issue.AssignedToID = t.cfg.AssigneeID
	req.Issue.Subject = "5XX Error"
	req.Issue.Description = n.Description

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("ticket: marshal issue: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL+"/issues.json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ticket: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.cfg.APIKey != "" {
		httpReq.Header.Set("X-Redmine-API-Key", t.cfg.APIKey)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return "", Transient(fmt.Errorf("ticket: %w", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 500 {
		return "", Transient(&sinkHTTPError{status: resp.StatusCode})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &sinkHTTPError{status: resp.StatusCode, payload: string(payload)}
	}

	var created issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("ticket: decode response: %w", err)
	}

	return strconv.FormatInt(created.Issue.ID, 10), nil
}
