package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatusClass(t *testing.T) {
	testCases := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "other"},
		{999, "other"},
	}

	for _, tc := range testCases {
		if got := StatusClass(tc.code); got != tc.expected {
			t.Errorf("StatusClass(%d) = %q; want %q", tc.code, got, tc.expected)
		}
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if pagesTotal == nil || failuresTotal == nil || linksDiscoveredTotal == nil ||
		frontierDepth == nil || activeWorkers == nil || fetchDurationSeconds == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservers(t *testing.T) {
	Init()

	before404 := testutil.ToFloat64(pagesTotal.WithLabelValues("4xx"))
	ObservePage(404, 20*time.Millisecond)
	if got := testutil.ToFloat64(pagesTotal.WithLabelValues("4xx")); got != before404+1 {
		t.Errorf("expected 4xx pages to grow by 1, got %f -> %f", before404, got)
	}

	beforeFailures := testutil.ToFloat64(failuresTotal.WithLabelValues("transport"))
	ObserveFailure("transport")
	if got := testutil.ToFloat64(failuresTotal.WithLabelValues("transport")); got != beforeFailures+1 {
		t.Errorf("expected transport failures to grow by 1, got %f -> %f", beforeFailures, got)
	}

	beforeLinks := testutil.ToFloat64(linksDiscoveredTotal.WithLabelValues(LinkDuplicate))
	ObserveLink(LinkDuplicate)
	ObserveLink(LinkDuplicate)
	if got := testutil.ToFloat64(linksDiscoveredTotal.WithLabelValues(LinkDuplicate)); got != beforeLinks+2 {
		t.Errorf("expected duplicate links to grow by 2, got %f -> %f", beforeLinks, got)
	}

	SetFrontierDepth(7)
	if got := testutil.ToFloat64(frontierDepth); got != 7 {
		t.Errorf("expected frontier depth 7, got %f", got)
	}

	beforeWorkers := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if got := testutil.ToFloat64(activeWorkers); got != beforeWorkers+1 {
		t.Errorf("expected active workers %f, got %f", beforeWorkers+1, got)
	}
	DecActiveWorkers()
}
