// Package cmd defines the sitecrawler command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/api"
	"github.com/JakeFAU/sitecrawler/internal/app"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/report"
)

// Exit statuses returned by Run.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

// App defines the services a crawl needs. Tests inject their own.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	Exporters() []report.Exporter
	StatusServer() *api.Server
	Close()
}

// appFactory builds the App once configuration is known.
type appFactory func(ctx context.Context, cfg config.Config) (App, error)

func defaultAppFactory(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

type appKeyType struct{}

// rootState carries what the command hooks share for one execution.
type rootState struct {
	v       *viper.Viper
	cfgFile string
	newApp  appFactory
	app     App
}

func newRootCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecrawler <seed-url>",
		Short: "Crawl every page of one site and report status codes.",
		Long: `sitecrawler starts at a seed URL and follows every link that stays under
the seed's scheme, host and path. Each page is fetched exactly once by a pool
of concurrent workers. When the crawl ends (or is interrupted with Ctrl-C) a
report of status codes, not-found pages and fetch failures is printed.`,
		Args:          seedArg,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ReadFile(state.v, state.cfgFile); err != nil {
				return err
			}
			cfg, err := config.Decode(state.v)
			if err != nil {
				return err
			}
			appInstance, err := state.newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			state.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKeyType{}, appInstance))
			return nil
		},

		RunE: runCrawlCommand,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return crawler.ConfigError("%v", err)
	})

	flags := cmd.Flags()
	cmd.PersistentFlags().StringVar(&state.cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.Int("workers", 10, "number of concurrent fetch workers")
	flags.Bool("headless", false, "render pages in headless Chrome before extracting links")
	flags.String("metrics-addr", "", "serve /healthz, /metrics and /v1/status on this address")
	flags.String("report-json", "", "also write the report as JSON to this file")
	flags.Bool("log-dev", false, "human-readable development logging")
	flags.String("log-level", "info", "minimum log level (debug, info, warn, error)")

	bind := map[string]string{
		"crawler.workers":          "workers",
		"crawler.headless.enabled": "headless",
		"metrics.addr":             "metrics-addr",
		"report.json_path":         "report-json",
		"logging.development":      "log-dev",
		"logging.level":            "log-level",
	}
	for key, name := range bind {
		_ = state.v.BindPFlag(key, flags.Lookup(name)) //nolint:errcheck // flags are defined above
	}
	return cmd
}

func seedArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return crawler.ConfigError("expected exactly one seed url, got %d arguments", len(args))
	}
	return nil
}

func appFromContext(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKeyType{}).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Run executes the command line in args and returns the process exit status.
// Configuration problems print usage and return ExitConfigError.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, args, stdout, stderr, defaultAppFactory)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, factory appFactory) int {
	state := &rootState{v: config.New(), newApp: factory}
	cmd := newRootCmd(state)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if state.app != nil {
		defer state.app.Close()
	}
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, crawler.ErrConfiguration):
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
		return ExitConfigError
	default:
		logger := zap.NewNop()
		if state.app != nil {
			logger = state.app.Logger()
		}
		logger.Error("command execution failed", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}
}

// Execute is the main entry point. It exits the process.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
