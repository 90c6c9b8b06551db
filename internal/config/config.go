// Package config loads runtime configuration from environment variables,
// optionally overlaid by a YAML file. Values only; behavior lives with the
// components that consume them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the notifier service.
type Config struct {
	// ListenAddr is the ingestion server bind address.
	ListenAddr string `yaml:"listen_addr"`

	// Backend is the log query backend.
	Backend BackendConfig `yaml:"backend"`

	// Correlation windows and retries.
	Correlation CorrelationConfig `yaml:"correlation"`

	// Processing limits.
	Concurrency   int           `yaml:"concurrency"`
	BatchDeadline time.Duration `yaml:"batch_deadline"`

	// DedupRetention is the idempotency horizon.
	DedupRetention time.Duration `yaml:"dedup_retention"`

	// DisplayTimezone is the IANA zone for human-readable renderings.
	DisplayTimezone string `yaml:"display_timezone"`

	// Sinks. A sink with an empty URL/endpoint is disabled.
	Ticket TicketConfig `yaml:"ticket"`
	Chat   ChatConfig   `yaml:"chat"`
	PubSub PubSubConfig `yaml:"pubsub"`
}

// BackendConfig points at the log query service.
type BackendConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	AuthToken      string        `yaml:"auth_token"`
	AccessLogGroup string        `yaml:"access_log_group"`
	AppLogGroup    string        `yaml:"app_log_group"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
}

// CorrelationConfig holds window sizes and retry counts.
type CorrelationConfig struct {
	PeerWindow  time.Duration `yaml:"peer_window"`
	AppWindow   time.Duration `yaml:"app_window"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// TicketConfig routes created issues.
type TicketConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	ProjectID  string `yaml:"project_id"`
	TrackerID  string `yaml:"tracker_id"`
	AssigneeID string `yaml:"assignee_id"`
}

// ChatConfig addresses the chat webhook.
type ChatConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// PubSubConfig names the fan-out topic.
type PubSubConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TopicARN  string `yaml:"topic_arn"`
	AuthToken string `yaml:"auth_token"`
}

// Load reads configuration from the environment. When path is non-empty the
// YAML file is read first and environment variables override it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setEnv(&c.ListenAddr, "LISTEN_ADDR")

	setEnv(&c.Backend.Endpoint, "LOG_BACKEND_ENDPOINT")
	setEnv(&c.Backend.AuthToken, "LOG_BACKEND_TOKEN")
	setEnv(&c.Backend.AccessLogGroup, "ACCESS_LOG_GROUP")
	setEnv(&c.Backend.AppLogGroup, "APP_LOG_GROUP")
	setDurationEnv(&c.Backend.QueryTimeout, "QUERY_TIMEOUT")

	setDurationEnv(&c.Correlation.PeerWindow, "PEER_WINDOW")
	setDurationEnv(&c.Correlation.AppWindow, "APP_WINDOW")
	setIntEnv(&c.Correlation.MaxAttempts, "QUERY_MAX_ATTEMPTS")

	setIntEnv(&c.Concurrency, "CONCURRENCY")
	setDurationEnv(&c.BatchDeadline, "BATCH_DEADLINE")
	setDurationEnv(&c.DedupRetention, "DEDUP_RETENTION")
	setEnv(&c.DisplayTimezone, "DISPLAY_TIMEZONE")

	setEnv(&c.Ticket.URL, "TICKET_URL")
	setEnv(&c.Ticket.APIKey, "TICKET_API_KEY")
	setEnv(&c.Ticket.ProjectID, "TICKET_PROJECT_ID")
	setEnv(&c.Ticket.TrackerID, "TICKET_TRACKER_ID")
	setEnv(&c.Ticket.AssigneeID, "TICKET_ASSIGNEE_ID")

	setEnv(&c.Chat.WebhookURL, "CHAT_WEBHOOK_URL")
	setEnv(&c.Chat.Channel, "CHAT_CHANNEL")

	setEnv(&c.PubSub.Endpoint, "PUBSUB_ENDPOINT")
	setEnv(&c.PubSub.TopicARN, "PUBSUB_TOPIC_ARN")
	setEnv(&c.PubSub.AuthToken, "PUBSUB_TOKEN")
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Backend.AccessLogGroup == "" {
		c.Backend.AccessLogGroup = "/app/nginx/access_log"
	}
	if c.Backend.AppLogGroup == "" {
		c.Backend.AppLogGroup = "/app/php/error_log"
	}
	if c.Backend.QueryTimeout <= 0 {
		c.Backend.QueryTimeout = 10 * time.Second
	}
	if c.Correlation.PeerWindow <= 0 {
		c.Correlation.PeerWindow = time.Minute
	}
	if c.Correlation.AppWindow <= 0 {
		c.Correlation.AppWindow = time.Minute
	}
	if c.Correlation.MaxAttempts <= 0 {
		c.Correlation.MaxAttempts = 3
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.BatchDeadline <= 0 {
		c.BatchDeadline = time.Minute
	}
	if c.DedupRetention <= 0 {
		c.DedupRetention = 5 * time.Minute
	}
	if c.DisplayTimezone == "" {
		c.DisplayTimezone = "Asia/Tokyo"
	}
}

// Location resolves the display timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid display timezone %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}

func setEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setIntEnv(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDurationEnv(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
