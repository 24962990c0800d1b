// Package app initializes and holds the long-lived services of one CLI run,
// acting as a small dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	cloudpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/api"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/logging"
	"github.com/JakeFAU/sitecrawler/internal/publisher/pubsub"
	"github.com/JakeFAU/sitecrawler/internal/report"
	"github.com/JakeFAU/sitecrawler/internal/storage/gcs"
	"github.com/JakeFAU/sitecrawler/internal/storage/local"
	"github.com/JakeFAU/sitecrawler/internal/storage/postgres"
)

const shutdownTimeout = 5 * time.Second

// App holds the logger, the report exporters and the optional status server.
// It is built once before the crawl and closed after it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	exporters []report.Exporter
	status    *api.Server
	closers   []func(context.Context) error
}

// New builds every service cfg asks for and fails fast if one cannot start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return NewWithLogger(ctx, cfg, logger)
}

// NewWithLogger is New with an injected logger (primarily for testing).
func NewWithLogger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("application services initialized",
		zap.Int("exporters", len(a.exporters)),
		zap.Bool("status_server", a.status != nil),
	)
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	rc := a.cfg.Report

	if rc.JSONPath != "" {
		store, name, err := local.ForFile(rc.JSONPath)
		if err != nil {
			return fmt.Errorf("init json report: %w", err)
		}
		a.exporters = append(a.exporters, report.NewJSONExporter("json", store, name))
	}

	if rc.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		store, err := gcs.New(client, gcs.Config{Bucket: rc.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs report: %w", err)
		}
		a.exporters = append(a.exporters, report.NewSessionJSONExporter("gcs", store, rc.GCSPrefix))
	}

	if rc.Postgres.DSN != "" {
		exporter, err := postgres.NewResultExporter(ctx, postgres.Config{
			DSN:             rc.Postgres.DSN,
			Table:           rc.Postgres.Table,
			CreateTable:     rc.Postgres.CreateTable,
			MaxConns:        rc.Postgres.MaxConns,
			MaxConnLifetime: rc.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return fmt.Errorf("init postgres report: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			exporter.Close()
			return nil
		})
		a.exporters = append(a.exporters, exporter)
	}

	if ps := rc.PubSub; ps.TopicName != "" {
		project := ps.ProjectID
		if project == "" {
			project = cloudpubsub.DetectProjectID
		}
		client, err := cloudpubsub.NewClient(ctx, project)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		publisher := pubsub.New(client.Topic(ps.TopicName))
		a.closers = append(a.closers, func(context.Context) error {
			publisher.Stop()
			return nil
		})
		a.exporters = append(a.exporters, report.NewNotifyExporter("pubsub", ps.TopicName, publisher))
	}

	if a.cfg.Metrics.Addr != "" {
		server := api.NewServer(a.logger)
		if _, err := server.Start(a.cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("init status server: %w", err)
		}
		a.status = server
		a.closers = append(a.closers, server.Shutdown)
	}
	return nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Exporters returns the configured report exporters, possibly none.
func (a *App) Exporters() []report.Exporter {
	return a.exporters
}

// StatusServer returns the live status server, or nil when disabled.
func (a *App) StatusServer() *api.Server {
	return a.status
}

// Close shuts services down in reverse start order and flushes the logger.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
