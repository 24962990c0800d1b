// Package collyfetcher implements crawler.Fetcher using gocolly: one GET per
// call, returning the status code and the raw href of every anchor.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// fetchState is filled in by the collector callbacks of a single Fetch.
type fetchState struct {
	start     time.Time
	responded bool
	status    int
	finalURL  string
	links     []string
	err       error
}

// New builds a Fetcher. The HTTP client settings live on the base collector
// and are shared by the per-request clones.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	// Deduplication and scope belong to the crawl engine, not the collector.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	// 4xx and 5xx pages are still visits.
	c.ParseHTTPErrorResponse = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.MaxBodyBytes > 0 {
		c.MaxBodySize = cfg.MaxBodyBytes
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	c.SetRedirectHandler(sameHostRedirects)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger.Named("fetcher"),
	}
}

// Fetch performs a GET of rawURL and extracts the href of every <a> element.
// Any HTTP status, including 404 and 500, is a successful fetch. Unusable
// URLs fail with crawler.ErrMalformedURL; network problems fail with
// crawler.ErrFetchTransport. Redirects are followed on the same host only; a
// redirect elsewhere is reported with its own 3xx status.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	if _, err := crawler.ParseRequestURL(rawURL); err != nil {
		return crawler.FetchResult{}, crawler.NewMalformedURLError(rawURL, err)
	}

	state := &fetchState{start: time.Now()}
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, state)

	if err := f.runCollector(ctx, collector, rawURL, state); err != nil {
		return crawler.FetchResult{}, err
	}

	f.logger.Debug("fetched",
		zap.String("url", rawURL),
		zap.String("final_url", state.finalURL),
		zap.Int("status", state.status),
		zap.Int("links", len(state.links)),
	)
	return crawler.FetchResult{
		URL:        rawURL,
		StatusCode: state.status,
		Links:      state.links,
		Duration:   time.Since(state.start),
	}, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, state *fetchState) {
	hooks.OnResponse(func(r *colly.Response) {
		state.responded = true
		state.status = r.StatusCode
		if r.Request != nil && r.Request.URL != nil {
			state.finalURL = r.Request.URL.String()
		}
	})

	hooks.OnHTML("a[href]", func(e *colly.HTMLElement) {
		state.links = append(state.links, e.Attr("href"))
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		if state.err == nil {
			state.err = err
		}
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, state *fetchState) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return crawler.NewTransportError(rawURL, fmt.Errorf("colly fetch canceled: %w", ctx.Err()))
	case err := <-done:
		if state.responded {
			// The response arrived; a later HTML parse problem only costs links.
			if err != nil {
				f.logger.Debug("response processing failed", zap.String("url", rawURL), zap.Error(err))
			}
			return nil
		}
		if err == nil {
			err = state.err
		}
		if err != nil {
			return crawler.NewTransportError(rawURL, fmt.Errorf("colly visit failed: %w", err))
		}
		return nil
	}
}

// maxRedirects mirrors net/http's default redirect limit.
const maxRedirects = 10

// sameHostRedirects follows redirects only while they stay on the host of the
// original request. A redirect to another host stops the chain and the 3xx
// response is returned as the result of the fetch.
func sameHostRedirects(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if len(via) > 0 && !strings.EqualFold(req.URL.Host, via[0].URL.Host) {
		return http.ErrUseLastResponse
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}
