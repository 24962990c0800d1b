package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/app"
	"github.com/JakeFAU/sitecrawler/internal/config"
	collyfetcher "github.com/JakeFAU/sitecrawler/internal/fetcher/colly"
	"github.com/JakeFAU/sitecrawler/internal/fetcher/headless"
	"github.com/JakeFAU/sitecrawler/internal/report"
)

func testFactory(ctx context.Context, cfg config.Config) (App, error) {
	return app.NewWithLogger(ctx, cfg, zap.NewNop())
}

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
<a href="/about">About</a>
<a href="/missing">Missing</a>
<a href="http://other.example/x">Elsewhere</a>
<a href="/about#team">Team</a>
<a href="mailto:hi@example.com">Mail</a>
</body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/">Home</a></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func execute(t *testing.T, factory appFactory, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, factory)
	return code, stdout.String(), stderr.String()
}

func TestCrawlPrintsReportAndWritesJSON(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	out := filepath.Join(t.TempDir(), "report.json")

	code, stdout, stderr := execute(t, testFactory, "--workers", "3", "--report-json", out, site.URL)
	require.Equal(t, ExitOK, code, stderr)

	require.Contains(t, stdout, "Crawl of "+site.URL)
	require.Contains(t, stdout, "Status codes (3 pages)")
	require.Contains(t, stdout, "Not found (1)")
	require.Contains(t, stdout, site.URL+"/missing")
	require.Contains(t, stdout, "Failures (0)")
	require.NotContains(t, stdout, "other.example")

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc report.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, site.URL, doc.Root)
	require.Equal(t, 3, doc.TotalVisited)
	require.Equal(t, []string{site.URL + "/missing"}, doc.NotFound)
	require.False(t, doc.Interrupted)
}

func TestConfigurationErrorsExitWithStatusTwo(t *testing.T) {
	t.Parallel()

	badConfig := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badConfig, []byte("crawler: [unclosed"), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{name: "no seed", args: nil},
		{name: "two seeds", args: []string{"http://a.example", "http://b.example"}},
		{name: "non http seed", args: []string{"ftp://example.com"}},
		{name: "seed without host", args: []string{"http://"}},
		{name: "zero workers", args: []string{"--workers", "0", "http://example.com"}},
		{name: "unknown flag", args: []string{"--bogus", "http://example.com"}},
		{name: "bad log level", args: []string{"--log-level", "loud", "http://example.com"}},
		{name: "unreadable config", args: []string{"--config", badConfig, "http://example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, stdout, stderr := execute(t, testFactory, tt.args...)
			require.Equal(t, ExitConfigError, code, stderr)
			require.Empty(t, stdout)
			require.Contains(t, stderr, "Usage:")
			require.Contains(t, stderr, "configuration error")
		})
	}
}

func TestAppInitFailureExitsWithStatusOne(t *testing.T) {
	t.Parallel()

	failing := func(context.Context, config.Config) (App, error) {
		return nil, errors.New("bucket unreachable")
	}
	code, stdout, stderr := execute(t, failing, "http://example.com")
	require.Equal(t, ExitFailure, code)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "bucket unreachable")
}

func TestExportFailureExitsWithStatusOneAfterReport(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	// A directory in place of the report file makes the rename fail.
	out := t.TempDir()

	code, stdout, stderr := execute(t, testFactory, "--report-json", out, site.URL)
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stdout, "Status codes")
	require.Contains(t, stderr, "export report")
}

func TestInterruptedCrawlStillReports(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{site.URL}, &stdout, &stderr, testFactory)
	require.Equal(t, ExitOK, code, stderr.String())
	require.Contains(t, stdout.String(), "(interrupted)")
}

func TestNewFetcherSelectsImplementation(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	plain, closePlain, err := newFetcher(cfg.Crawler, zap.NewNop())
	require.NoError(t, err)
	defer closePlain()
	require.IsType(t, &collyfetcher.Fetcher{}, plain)

	cfg.Crawler.Headless.Enabled = true
	rendered, closeRendered, err := newFetcher(cfg.Crawler, zap.NewNop())
	require.NoError(t, err)
	defer closeRendered()
	require.IsType(t, &headless.Fetcher{}, rendered)

	cfg.Crawler.Headless.MaxParallel = -1
	_, _, err = newFetcher(cfg.Crawler, zap.NewNop())
	require.Error(t, err)
}
