package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const pubsubTimeout = 10 * time.Second

// PubSubConfig identifies the pub/sub publish endpoint and topic.
type PubSubConfig struct {
	// Endpoint is the publish API base URL.
	Endpoint string
	// TopicARN names the fan-out topic.
	TopicARN string
	// AuthToken, when set, is sent as a bearer token.
	AuthToken string
}

// PubSubSink publishes incidents to a fan-out topic as a JSON envelope with
// a default text rendering, so subscribers without a protocol-specific
// rendering still receive a readable message.
type PubSubSink struct {
	httpClient *http.Client
	logger     *zap.Logger
	cfg        PubSubConfig
}

// NewPubSubSink validates cfg and builds the sink.
func NewPubSubSink(logger *zap.Logger, cfg PubSubConfig) (*PubSubSink, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("pubsub: endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("pubsub: invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("pubsub: endpoint must use http or https scheme, got %q", u.Scheme)
	}
	if cfg.TopicARN == "" {
		return nil, fmt.Errorf("pubsub: topic is required")
	}

	return &PubSubSink{
		httpClient: &http.Client{Timeout: pubsubTimeout},
		logger:     logger.Named("pubsub-sink"),
		cfg:        cfg,
	}, nil
}

// Name implements Sink.
func (p *PubSubSink) Name() string { return "pubsub" }

// publishRequest is the topic publish payload.
type publishRequest struct {
	TopicARN         string `json:"topicArn"`
	Subject          string `json:"subject"`
	Message          string `json:"message"`
	MessageStructure string `json:"messageStructure"`
}

// publishResponse carries the broker's message identifier.
type publishResponse struct {
	MessageID string `json:"messageId"`
}

// Send implements Sink. Returns the published message id as the reference.
func (p *PubSubSink) Send(ctx context.Context, n Notification) (string, error) {
	// The envelope keys protocol-specific renderings; "default" is the
	// fallback text every subscriber can consume.
	envelope := map[string]string{"default": n.Summary}
	message, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("pubsub: marshal envelope: %w", err)
	}

	body, err := json.Marshal(publishRequest{
		TopicARN:         p.cfg.TopicARN,
		Subject:          n.Subject,
		Message:          string(message),
		MessageStructure: "json",
	})
	if err != nil {
		return "", fmt.Errorf("pubsub: marshal publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint+"/publish", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("pubsub: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.AuthToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", Transient(fmt.Errorf("pubsub: %w", err))
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

	var published publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&published); err != nil {
		return "", fmt.Errorf("pubsub: decode response: %w", err)
	}

	return published.MessageID, nil
}
