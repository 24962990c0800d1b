package crawler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequestURL(t *testing.T) {
	t.Parallel()

	u, err := ParseRequestURL("HTTPS://Example.com/a?b=1")
	require.NoError(t, err)
	require.Equal(t, "Example.com", u.Host)

	for _, raw := range []string{"http://[::1", "ftp://example.com/file", "/relative", "http://", "mailto:a@b.com"} {
		_, err := ParseRequestURL(raw)
		require.Error(t, err, raw)
	}
}

func TestClassifyFailure(t *testing.T) {
	t.Parallel()

	malformed := NewMalformedURLError("http://x/%zz", errors.New("bad escape"))
	transport := NewTransportError("http://x/a", errors.New("connection reset"))

	require.Equal(t, FailureMalformedURL, ClassifyFailure(malformed))
	require.Equal(t, FailureTransport, ClassifyFailure(transport))
	require.Equal(t, FailureTransport, ClassifyFailure(errors.New("anything else")))
	require.ErrorIs(t, malformed, ErrMalformedURL)
	require.ErrorIs(t, transport, ErrFetchTransport)
	require.Contains(t, transport.Error(), "http://x/a")
}
