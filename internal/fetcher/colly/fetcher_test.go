package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

const page = `<html><body>
<a href="/about">About</a>
<a href="team">Team</a>
<a href="http://other.com/x">Elsewhere</a>
<a href="/about#section">Section</a>
<a href="mailto:a@b.com">Mail</a>
<a>No href</a>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<html><body><a href="/">home</a></body></html>`))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/error", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<a href="/retry">retry</a>`))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`<a href="/not-a-link">`))
	})
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/` + url.PathEscape(r.UserAgent()) + `">me</a>`))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcherExtractsRawLinks(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{Timeout: time.Second}, zap.NewNop())

	result, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, srv.URL+"/", result.URL)
	require.Equal(t, []string{
		"/about",
		"team",
		"http://other.com/x",
		"/about#section",
		"mailto:a@b.com",
	}, result.Links)
	require.Positive(t, result.Duration)
}

func TestFetcherTreatsErrorStatusesAsVisits(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{Timeout: time.Second}, nil)

	missing, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
	require.Equal(t, []string{"/"}, missing.Links)

	broken, err := f.Fetch(context.Background(), srv.URL+"/error")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, broken.StatusCode)
	require.Equal(t, []string{"/retry"}, broken.Links)
}

func TestFetcherIgnoresNonHTMLBodies(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{}, nil)

	result, err := f.Fetch(context.Background(), srv.URL+"/plain")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Empty(t, result.Links)
}

func TestFetcherRevisitsAndSendsUserAgent(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{UserAgent: "sitecrawler-test"}, nil)

	for i := 0; i < 2; i++ {
		result, err := f.Fetch(context.Background(), srv.URL+"/agent")
		require.NoError(t, err, "fetch %d", i)
		require.Equal(t, []string{"/sitecrawler-test"}, result.Links)
	}
}

func TestFetcherMalformedURLs(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	for _, raw := range []string{"http://[::1", "ftp://example.com/file", "/relative", "http://"} {
		_, err := f.Fetch(context.Background(), raw)
		require.Error(t, err, raw)
		require.True(t, errors.Is(err, crawler.ErrMalformedURL), raw)
		require.Equal(t, crawler.FailureMalformedURL, crawler.ClassifyFailure(err), raw)
	}
}

func TestFetcherTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/gone"
	srv.Close()

	f := New(Config{Timeout: time.Second}, nil)
	_, err := f.Fetch(context.Background(), target)
	require.Error(t, err)
	require.True(t, errors.Is(err, crawler.ErrFetchTransport))
	require.Equal(t, crawler.FailureTransport, crawler.ClassifyFailure(err))

	var fetchErr *crawler.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, target, fetchErr.URL)
}

func TestFetcherHonorsContextCancel(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{Timeout: 10 * time.Second}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, srv.URL+"/slow")
	require.Error(t, err)
	require.Less(t, time.Since(start), 3*time.Second)
	require.ErrorIs(t, err, crawler.ErrFetchTransport)
}

func newRedirectSites(t *testing.T) (site, foreign *httptest.Server) {
	t.Helper()
	foreign = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/phantom">phantom</a><a href="pricing">pricing</a>`))
	}))
	t.Cleanup(foreign.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/go", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, foreign.URL+"/landing", http.StatusFound)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/current", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/current", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/next">next</a>`))
	})
	site = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site, foreign
}

func TestFetcherStopsAtCrossHostRedirect(t *testing.T) {
	t.Parallel()

	site, foreign := newRedirectSites(t)
	f := New(Config{Timeout: time.Second}, nil)

	result, err := f.Fetch(context.Background(), site.URL+"/go")
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, result.StatusCode)
	require.Equal(t, site.URL+"/go", result.URL)
	require.NotContains(t, result.Links, "/phantom")
	require.NotContains(t, result.Links, "pricing")
	for _, link := range result.Links {
		require.Contains(t, link, foreign.URL, "only the redirect target may appear as a link")
	}
}

func TestFetcherFollowsSameHostRedirect(t *testing.T) {
	t.Parallel()

	site, _ := newRedirectSites(t)
	f := New(Config{Timeout: time.Second}, nil)

	result, err := f.Fetch(context.Background(), site.URL+"/moved")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, []string{"/next"}, result.Links)
}

func TestSameHostRedirects(t *testing.T) {
	t.Parallel()

	origin, err := http.NewRequest(http.MethodGet, "http://example.com/a", nil)
	require.NoError(t, err)
	sameHost, err := http.NewRequest(http.MethodGet, "http://EXAMPLE.com/b", nil)
	require.NoError(t, err)
	otherHost, err := http.NewRequest(http.MethodGet, "http://example.org/b", nil)
	require.NoError(t, err)

	require.NoError(t, sameHostRedirects(sameHost, []*http.Request{origin}))
	require.ErrorIs(t, sameHostRedirects(otherHost, []*http.Request{origin}), http.ErrUseLastResponse)

	chain := make([]*http.Request, maxRedirects)
	for i := range chain {
		chain[i] = origin
	}
	require.Error(t, sameHostRedirects(sameHost, chain))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	state := &fetchState{}
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, state)
	if hooks.onResponse == nil || hooks.onHTML == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}
	if hooks.selector != "a[href]" {
		t.Fatalf("unexpected selector %q", hooks.selector)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/final")},
	})
	if !state.responded || state.status != http.StatusCreated || state.finalURL != "https://example.com/final" {
		t.Fatalf("unexpected state: %+v", state)
	}

	hooks.onError(nil, errors.New("boom"))
	hooks.onError(nil, errors.New("second"))
	if state.err == nil || state.err.Error() != "boom" {
		t.Fatalf("expected first error kept, got %v", state.err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "agent", MaxBodyBytes: 1024}, nil)
	require.Equal(t, DefaultTimeout, f.cfg.Timeout)
	require.Equal(t, "agent", f.baseCollector.UserAgent)
	require.Equal(t, 1024, f.baseCollector.MaxBodySize)
	require.True(t, f.baseCollector.AllowURLRevisit)
	require.True(t, f.baseCollector.IgnoreRobotsTxt)
	require.True(t, f.baseCollector.ParseHTTPErrorResponse)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onHTML     colly.HTMLCallback
	onError    colly.ErrorCallback
	selector   string
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnHTML(selector string, cb colly.HTMLCallback) {
	s.selector = selector
	s.onHTML = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
