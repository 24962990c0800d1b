package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/clock/system"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/sitecrawler/internal/fetcher/colly"
	"github.com/JakeFAU/sitecrawler/internal/fetcher/headless"
	"github.com/JakeFAU/sitecrawler/internal/id/uuid"
	"github.com/JakeFAU/sitecrawler/internal/report"
	"github.com/JakeFAU/sitecrawler/internal/session"
)

const exportTimeout = 30 * time.Second

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := appFromContext(cmd.Context())
	if err != nil {
		return err
	}
	return runCrawl(cmd.Context(), appInstance, args[0], cmd.OutOrStdout())
}

// runCrawl crawls seed, prints the report to out and runs every exporter.
// An interrupted crawl still prints and exports its partial report.
func runCrawl(ctx context.Context, a App, seed string, out io.Writer) error {
	cfg := a.Config()
	logger := a.Logger()

	fetcher, closeFetcher, err := newFetcher(cfg.Crawler, logger)
	if err != nil {
		return err
	}
	defer closeFetcher()

	sess, err := session.New(seed, fetcher, session.Config{
		Workers:      cfg.Crawler.Workers,
		PollInterval: cfg.Crawler.PollInterval,
	}, system.New(), uuid.New(), logger)
	if err != nil {
		return err
	}
	if srv := a.StatusServer(); srv != nil {
		srv.Attach(sess)
	}
	logger.Info("starting crawl",
		zap.String("session_id", sess.ID()),
		zap.String("root", sess.Root()),
		zap.Stringer("config", cfg),
	)

	result, err := sess.Run(ctx)
	if err != nil {
		return err
	}

	summary := report.FromResult(result)
	if err := report.Render(out, summary); err != nil {
		return fmt.Errorf("print report: %w", err)
	}

	exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
	defer cancel()
	if err := report.ExportAll(exportCtx, a.Exporters(), summary, logger); err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	return nil
}

// newFetcher returns the colly fetcher, or a headless Chrome fetcher when
// crawler.headless.enabled is set. The returned func releases it.
func newFetcher(cfg config.CrawlerConfig, logger *zap.Logger) (crawler.Fetcher, func(), error) {
	if !cfg.Headless.Enabled {
		return collyfetcher.New(collyfetcher.Config{
			UserAgent:    cfg.UserAgent,
			Timeout:      cfg.RequestTimeout,
			MaxBodyBytes: cfg.MaxBodyBytes,
		}, logger), func() {}, nil
	}
	fetcher, err := headless.NewChromedp(headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: cfg.Headless.NavigationTimeout,
		ExecPath:          cfg.Headless.ExecPath,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init headless fetcher: %w", err)
	}
	return fetcher, fetcher.Close, nil
}
