package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	bytes.Buffer
	bucket, object, contentType string
	closed                      bool
	closeErr                    error
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func newTestStore(t *testing.T, w *recordingWriter) *BlobStore {
	t.Helper()
	store, err := newBlobStore(Config{Bucket: "crawl-reports"}, func(_ context.Context, bucket, object, contentType string) objectWriter {
		w.bucket, w.object, w.contentType = bucket, object, contentType
		return w
	})
	require.NoError(t, err)
	return store
}

func TestNewRequiresClientAndBucket(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = newBlobStore(Config{Bucket: " "}, nil)
	require.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	store := newTestStore(t, w)

	uri, err := store.PutObject(context.Background(), "reports/abc.json", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, "gs://crawl-reports/reports/abc.json", uri)
	require.Equal(t, "crawl-reports", w.bucket)
	require.Equal(t, "reports/abc.json", w.object)
	require.Equal(t, "application/json", w.contentType)
	require.Equal(t, `{"a":1}`, w.String())
	require.True(t, w.closed)
}

func TestPutObjectRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &recordingWriter{})
	_, err := store.PutObject(context.Background(), "", "", strings.NewReader("x"))
	require.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestPutObjectSurfacesErrors(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	store := newTestStore(t, w)
	_, err := store.PutObject(context.Background(), "x.json", "", failingReader{})
	require.ErrorContains(t, err, "copy object")
	require.True(t, w.closed)

	closing := &recordingWriter{closeErr: io.ErrClosedPipe}
	store = newTestStore(t, closing)
	_, err = store.PutObject(context.Background(), "x.json", "", strings.NewReader("x"))
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
