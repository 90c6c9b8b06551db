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

const chatTimeout = 10 * time.Second

// ChatConfig identifies the chat webhook and target channel.
type ChatConfig struct {
	// WebhookURL receives the structured message.
	WebhookURL string
	// Channel addresses the message (e.g. "#alerts").
	Channel string
}

// ChatSink posts a title-plus-body structured message to a chat channel.
type ChatSink struct {
	httpClient *http.Client
	logger     *zap.Logger
	cfg        ChatConfig
}

// NewChatSink validates cfg and builds the sink.
func NewChatSink(logger *zap.Logger, cfg ChatConfig) (*ChatSink, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("chat: webhook URL is required")
	}
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("chat: invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("chat: webhook URL must use http or https scheme, got %q", u.Scheme)
	}

	return &ChatSink{
		httpClient: &http.Client{Timeout: chatTimeout},
		logger:     logger.Named("chat-sink"),
		cfg:        cfg,
	}, nil
}

// Name implements Sink.
func (c *ChatSink) Name() string { return "chat" }

// chatMessage is the block-structured chat payload: a header block with the
// alert title and a section block with the summary.
type chatMessage struct {
	Channel string      `json:"channel,omitempty"`
	Blocks  []chatBlock `json:"blocks"`
}

type chatBlock struct {
	Type string   `json:"type"`
	Text chatText `json:"text"`
}

type chatText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Send implements Sink. The chat service returns no reference id; on
// failure its own error payload is surfaced as the reason.
func (c *ChatSink) Send(ctx context.Context, n Notification) (string, error) {
	msg := chatMessage{
		Channel: c.cfg.Channel,
		Blocks: []chatBlock{
			{Type: "header", Text: chatText{Type: "plain_text", Text: n.Subject}},
			{Type: "section", Text: chatText{Type: "mrkdwn", Text: n.Summary}},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("chat: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Transient(fmt.Errorf("chat: %w", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 500 {
		return "", Transient(&sinkHTTPError{status: resp.StatusCode})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Surface the service's own error payload (e.g. "invalid_blocks").
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &sinkHTTPError{status: resp.StatusCode, payload: string(payload)}
	}

	return "ok", nil
}
