// Package headless implements crawler.Fetcher with a headless Chrome driven
// by chromedp, for sites whose anchors only exist after JavaScript runs.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// DefaultNavigationTimeout applies when Config.NavigationTimeout is zero.
const DefaultNavigationTimeout = 25 * time.Second

// settleDelay gives client-side rendering a moment after DOM ready.
const settleDelay = 300 * time.Millisecond

// linksScript returns the raw href attribute of every anchor in the DOM.
const linksScript = `Array.from(document.querySelectorAll('a[href]'), a => a.getAttribute('href'))`

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// ExecPath overrides Chrome discovery on PATH.
	ExecPath string
}

// Fetcher implements crawler.Fetcher using one shared browser and a new tab
// per fetch.
type Fetcher struct {
	cfg     Config
	logger  *zap.Logger
	limiter chan struct{}

	allocCancel   context.CancelFunc
	browser       context.Context
	browserCancel context.CancelFunc

	startOnce sync.Once
	startErr  error
}

// NewChromedp prepares a headless fetcher. Chrome is started lazily by the
// first Fetch.
func NewChromedp(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browser, browserCancel := chromedp.NewContext(allocCtx)

	return &Fetcher{
		cfg:           cfg,
		logger:        logger.Named("headless"),
		limiter:       limiter,
		allocCancel:   allocCancel,
		browser:       browser,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.browserCancel()
	f.allocCancel()
}

// Fetch navigates to rawURL and returns the document status and the href of
// every anchor in the rendered DOM. Like the HTTP fetcher it only follows
// redirects on the original host; a redirect elsewhere is reported with its
// own 3xx status and no links.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	target, err := crawler.ParseRequestURL(rawURL)
	if err != nil {
		return crawler.FetchResult{}, crawler.NewMalformedURLError(rawURL, err)
	}
	if err := f.start(); err != nil {
		return crawler.FetchResult{}, crawler.NewTransportError(rawURL, err)
	}
	if err := f.acquire(ctx); err != nil {
		return crawler.FetchResult{}, crawler.NewTransportError(rawURL, err)
	}
	defer f.release()

	tabCtx, tabCancel := chromedp.NewContext(f.browser)
	defer tabCancel()
	// The tab must also die when the caller gives up.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancel()

	meta := newResponseMeta(target.Host)
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	start := time.Now()
	var (
		finalURL string
		links    []string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(linksScript, &links),
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return crawler.FetchResult{}, crawler.NewTransportError(rawURL, fmt.Errorf("chromedp run: %w", err))
	}

	status := meta.statusCode()
	if offsite, left := meta.offsiteRedirect(); left || !sameHost(finalURL, target.Host) {
		if offsite == 0 {
			offsite = http.StatusFound
		}
		f.logger.Debug("redirected off host", zap.String("url", rawURL), zap.String("final_url", finalURL))
		status, links = offsite, nil
	}

	f.logger.Debug("rendered",
		zap.String("url", rawURL),
		zap.String("final_url", finalURL),
		zap.Int("status", status),
		zap.Int("links", len(links)),
	)
	return crawler.FetchResult{
		URL:        rawURL,
		StatusCode: status,
		Links:      links,
		Duration:   time.Since(start),
	}, nil
}

// start launches Chrome once for all fetches.
func (f *Fetcher) start() error {
	f.startOnce.Do(func() {
		if err := chromedp.Run(f.browser); err != nil {
			f.startErr = fmt.Errorf("start browser: %w", err)
		}
	})
	return f.startErr
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

// responseMeta collects the top-level document's status and redirect chain
// from browser events.
type responseMeta struct {
	host string

	mu             sync.Mutex
	status         int
	offsiteStatus  int
	leftHost       bool
	sawDocResponse bool
}

func newResponseMeta(host string) *responseMeta {
	return &responseMeta{host: host}
}

func (m *responseMeta) captureEvent(ev any) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		m.captureRedirect(ev)
	case *network.EventResponseReceived:
		m.captureResponse(ev)
	}
}

func (m *responseMeta) captureRedirect(ev *network.EventRequestWillBeSent) {
	if ev.Type != network.ResourceTypeDocument || ev.RedirectResponse == nil || ev.Request == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leftHost || m.sawDocResponse {
		return
	}
	if !sameHost(ev.Request.URL, m.host) {
		m.leftHost = true
		m.offsiteStatus = int(ev.RedirectResponse.Status)
	}
}

// captureResponse keeps the first document response; later ones belong to
// frames.
func (m *responseMeta) captureResponse(ev *network.EventResponseReceived) {
	if ev.Type != network.ResourceTypeDocument || ev.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sawDocResponse {
		return
	}
	m.sawDocResponse = true
	m.status = int(ev.Response.Status)
}

// statusCode falls back to 200 when the browser reported no status, matching
// the HTTP fetcher's treatment of a response without a code.
func (m *responseMeta) statusCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == 0 {
		return crawler.StatusNoResponse
	}
	return m.status
}

func (m *responseMeta) offsiteRedirect() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offsiteStatus, m.leftHost
}

// sameHost reports whether rawURL points at host. An empty or unparsable URL
// counts as the same host so a missing location does not drop links.
func sameHost(rawURL, host string) bool {
	if rawURL == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	return strings.EqualFold(u.Host, host)
}
