package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sheep333/lambda-cloudwatch-event/internal/config"
	"github.com/sheep333/lambda-cloudwatch-event/internal/correlator"
	"github.com/sheep333/lambda-cloudwatch-event/internal/dedup"
	"github.com/sheep333/lambda-cloudwatch-event/internal/ingest"
	"github.com/sheep333/lambda-cloudwatch-event/internal/logsource"
	"github.com/sheep333/lambda-cloudwatch-event/internal/logsource/cwl"
	"github.com/sheep333/lambda-cloudwatch-event/internal/notifier"
	"github.com/sheep333/lambda-cloudwatch-event/internal/processor"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (environment variables override it)")
	return cmd
}

func runServe(configPath string) error {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := logConfig.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var querier logsource.Querier
	if cfg.Backend.Endpoint != "" {
		querier, err = cwl.NewClient(logger, cwl.Config{
			Endpoint:  cfg.Backend.Endpoint,
			AuthToken: cfg.Backend.AuthToken,
			Groups: map[logsource.Source]string{
				logsource.SourceEdgeAccess:  cfg.Backend.AccessLogGroup,
				logsource.SourceApplication: cfg.Backend.AppLogGroup,
			},
			Timeout: cfg.Backend.QueryTimeout,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("No log backend configured, correlation context will be empty")
		querier = logsource.NewMemoryStore()
	}

	sinks, err := buildSinks(logger, cfg)
	if err != nil {
		return err
	}
	if len(sinks) == 0 {
		return fmt.Errorf("no notification sinks configured")
	}

	corr := correlator.New(querier, logger, correlator.Options{
		PeerWindow:   cfg.Correlation.PeerWindow,
		AppWindow:    cfg.Correlation.AppWindow,
		QueryTimeout: cfg.Backend.QueryTimeout,
		MaxAttempts:  cfg.Correlation.MaxAttempts,
	})

	store := dedup.NewMemoryStore(cfg.DedupRetention)
	dispatcher := notifier.NewDispatcher(logger, loc, sinks...)
	proc := processor.New(corr, dedup.New(store), dispatcher, logger, processor.Options{
		Concurrency: cfg.Concurrency,
	})
	server := ingest.NewServer(proc, logger, ingest.ServerOptions{
		Addr:     cfg.ListenAddr,
		Deadline: cfg.BatchDeadline,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go store.Run(ctx)

	logger.Info("Starting cloudwatch-event",
		zap.String("version", version),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Int("sinks", len(sinks)),
		zap.Duration("peer_window", cfg.Correlation.PeerWindow),
		zap.Duration("app_window", cfg.Correlation.AppWindow),
	)

	return server.ListenAndServe(ctx)
}

// buildSinks constructs every sink with a configured destination.
func buildSinks(logger *zap.Logger, cfg *config.Config) ([]notifier.Sink, error) {
	var sinks []notifier.Sink

	if cfg.Ticket.URL != "" {
		ticket, err := notifier.NewTicketSink(logger, notifier.TicketConfig{
			URL:        cfg.Ticket.URL,
			APIKey:     cfg.Ticket.APIKey,
			ProjectID:  cfg.Ticket.ProjectID,
			TrackerID:  cfg.Ticket.TrackerID,
			AssigneeID: cfg.Ticket.AssigneeID,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ticket)
	}

	if cfg.Chat.WebhookURL != "" {
		chat, err := notifier.NewChatSink(logger, notifier.ChatConfig{
			WebhookURL: cfg.Chat.WebhookURL,
			Channel:    cfg.Chat.Channel,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, chat)
	}

	if cfg.PubSub.Endpoint != "" {
		pubsub, err := notifier.NewPubSubSink(logger, notifier.PubSubConfig{
			Endpoint:  cfg.PubSub.Endpoint,
			TopicARN:  cfg.PubSub.TopicARN,
			AuthToken: cfg.PubSub.AuthToken,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pubsub)
	}

	return sinks, nil
}
