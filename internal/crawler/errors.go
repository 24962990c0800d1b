package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrMalformedURL marks a URL that could not be parsed or requested.
	ErrMalformedURL = errors.New("malformed url")
	// ErrFetchTransport marks a page that could not be retrieved.
	ErrFetchTransport = errors.New("fetch transport error")
	// ErrConfiguration marks unusable startup input; it is fatal before crawling.
	ErrConfiguration = errors.New("configuration error")
)

// FetchError wraps a per-URL fetch failure with its classification.
type FetchError struct {
	URL  string
	Kind error
	Err  error
}

// NewMalformedURLError builds a FetchError of kind ErrMalformedURL.
func NewMalformedURLError(url string, err error) *FetchError {
	return &FetchError{URL: url, Kind: ErrMalformedURL, Err: err}
}

// NewTransportError builds a FetchError of kind ErrFetchTransport.
func NewTransportError(url string, err error) *FetchError {
	return &FetchError{URL: url, Kind: ErrFetchTransport, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.URL, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.URL, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// ClassifyFailure maps any fetch error to a FailureKind. Errors that are not a
// FetchError are treated as transport failures.
func ClassifyFailure(err error) FailureKind {
	if errors.Is(err, ErrMalformedURL) {
		return FailureMalformedURL
	}
	return FailureTransport
}

// ConfigError formats a message that satisfies errors.Is(err, ErrConfiguration).
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ParseRequestURL parses rawURL and rejects anything that cannot become an
// HTTP GET: other schemes and URLs without a host.
func ParseRequestURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}
