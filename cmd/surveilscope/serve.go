package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/database"
	"github.com/nao1215/surveilscope/internal/log"
	"github.com/nao1215/surveilscope/internal/metrics"
	"github.com/nao1215/surveilscope/internal/model"
	"github.com/nao1215/surveilscope/internal/notify"
	"github.com/nao1215/surveilscope/internal/server"
)

// liveSource is the report source name used by the server.
const liveSource = "live"

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live detection API",
		Long: `Serve runs the detection engine behind an HTTP API.

A browser hook posts events to /api/v1/events (or publishes them on NATS);
the state is persisted to the database and restored on the next start.
Alerts and new fingerprint timeline entries are streamed on the
/api/v1/stream websocket, and Prometheus metrics are served on /metrics.

Examples:
  # Listen on the default loopback address
  surveilscope serve

  # Ingest events from NATS and publish alerts there
  surveilscope serve --nats-url nats://127.0.0.1:4222`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", "",
		"Address to listen on (default "+config.DefaultListenAddress+")")
	cmd.Flags().String("nats-url", "",
		"NATS server URL; enables event ingest and alert publishing")
	cmd.Flags().Bool("save-report", true,
		"Save the final report to the database on shutdown")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON for log aggregation")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddress = listen
	}
	if natsURL, _ := cmd.Flags().GetString("nats-url"); natsURL != "" {
		cfg.NATSURL = natsURL
	}
	cfg.SaveToDB, err = cmd.Flags().GetBool("save-report")
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	if logJSON, _ := cmd.Flags().GetBool("log-json"); logJSON {
		logger = log.NewSecureJSONLogger(os.Stderr, cfg.Verbose)
		slog.SetDefault(logger)
	}
	ctx, cancel := signalContext(logger)
	defer cancel()

	return runServe(ctx, cfg, logger)
}

// runServe wires the database, notifiers, NATS and the HTTP server around
// one long-lived coordinator.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := openDB(cfg, true)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("state database opened", "path", db.Path())

	m := metrics.New()

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(config.AppName))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
		}
		defer nc.Drain() //nolint:errcheck // best effort on shutdown
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	var publisher *notify.NATSPublisher
	sinks := notify.Multi{notify.NewLogNotifier(logger)}
	if nc != nil {
		publisher = notify.NewNATSPublisher(nc, cfg.AlertSubject, logger)
		sinks = append(sinks, publisher)
	}
	var notifier notify.Notifier = sinks
	if cfg.DedupeNotifications {
		notifier = notify.NewDedupe(sinks)
	}

	coord := coordinator.New(
		coordinator.WithStore(db),
		coordinator.WithSettings(cfg.Settings),
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(m),
		coordinator.WithNotifier(notifier),
		coordinator.WithRequestCacheSize(cfg.RequestCacheSize),
	)
	defer coord.Close()

	if err := coord.LoadFromStore(ctx); err != nil {
		if !errors.Is(err, coordinator.ErrCorruptSnapshot) {
			return fmt.Errorf("failed to restore state: %w", err)
		}
		logger.Warn("some stored state could not be restored", "error", err)
	}

	if publisher != nil {
		coord.SubscribeAlerts(func(alert model.Alert) error {
			if err := publisher.PublishAlert(ctx, alert); err != nil {
				m.NATSPublishError()
				return err
			}
			return nil
		})
	}

	srv, err := server.New(coord,
		server.WithLogger(logger),
		server.WithMetrics(m),
		server.WithPruneInterval(cfg.PruneInterval),
		server.WithShutdownTimeout(config.DefaultShutdownTimeout),
	)
	if err != nil {
		return err
	}
	defer srv.Close()

	if nc != nil {
		sub, err := srv.SubscribeNATS(nc, cfg.EventSubject)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", cfg.EventSubject, err)
		}
		defer sub.Unsubscribe() //nolint:errcheck // connection is drained afterwards
	}

	if err := srv.Run(ctx, cfg.ListenAddress); err != nil {
		return err
	}

	if cfg.SaveToDB {
		saveLiveReport(db, srv, logger)
	}
	return nil
}

// saveLiveReport stores the final report for the history command.
func saveLiveReport(db *database.DB, srv *server.Server, logger *slog.Logger) {
	id, err := db.SaveReport(context.Background(), liveSource, srv.Report())
	if err != nil {
		logger.Error("failed to save final report", "error", err)
		return
	}
	logger.Info("final report saved", "id", id)
}
