package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// Exporter ships a finished summary somewhere outside the process.
type Exporter interface {
	Name() string
	Export(ctx context.Context, summary Summary) (string, error)
}

// BlobStore persists a single object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher sends one message and returns the ID the broker assigned it.
type Publisher interface {
	Publish(ctx context.Context, attributes map[string]string, payload any) (string, error)
}

// Document is the JSON shape of an exported report.
type Document struct {
	SessionID    string                  `json:"session_id"`
	Root         string                  `json:"root"`
	StartedAt    time.Time               `json:"started_at"`
	ElapsedMS    int64                   `json:"elapsed_ms"`
	Interrupted  bool                    `json:"interrupted"`
	TotalVisited int                     `json:"total_visited"`
	TotalFailed  int                     `json:"total_failed"`
	StatusCounts []StatusCount           `json:"status_counts"`
	NotFound     []string                `json:"not_found"`
	Failures     []crawler.FailureRecord `json:"failures"`
	Visits       []crawler.VisitRecord   `json:"visits"`
}

// NewDocument converts a summary into its exported form.
func NewDocument(s Summary) Document {
	notFound := make([]string, 0, len(s.NotFound))
	for _, v := range s.NotFound {
		notFound = append(notFound, v.URL)
	}
	doc := Document{
		SessionID:    s.SessionID,
		Root:         s.Root,
		StartedAt:    s.StartedAt,
		ElapsedMS:    s.Elapsed.Milliseconds(),
		Interrupted:  s.Interrupted,
		TotalVisited: s.TotalVisited,
		TotalFailed:  s.TotalFailed,
		StatusCounts: s.StatusCounts,
		NotFound:     notFound,
		Failures:     s.Failures,
		Visits:       s.Visits,
	}
	if doc.StatusCounts == nil {
		doc.StatusCounts = []StatusCount{}
	}
	if doc.Failures == nil {
		doc.Failures = []crawler.FailureRecord{}
	}
	if doc.Visits == nil {
		doc.Visits = []crawler.VisitRecord{}
	}
	return doc
}

// JSONExporter writes the report document to a BlobStore.
type JSONExporter struct {
	name  string
	store BlobStore
	path  func(Summary) string
}

// NewJSONExporter writes to a fixed object path.
func NewJSONExporter(name string, store BlobStore, objectPath string) *JSONExporter {
	return &JSONExporter{
		name:  name,
		store: store,
		path:  func(Summary) string { return objectPath },
	}
}

// NewSessionJSONExporter writes to "<prefix>/<session id>.json".
func NewSessionJSONExporter(name string, store BlobStore, prefix string) *JSONExporter {
	return &JSONExporter{
		name:  name,
		store: store,
		path:  func(s Summary) string { return SessionObjectPath(prefix, s.SessionID) },
	}
}

// SessionObjectPath builds the object name used for a session's report.
func SessionObjectPath(prefix, sessionID string) string {
	name := sessionID + ".json"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Name identifies the exporter in logs.
func (e *JSONExporter) Name() string {
	return e.name
}

// Export encodes the summary and stores it.
func (e *JSONExporter) Export(ctx context.Context, s Summary) (string, error) {
	payload, err := json.MarshalIndent(NewDocument(s), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	uri, err := e.store.PutObject(ctx, e.path(s), "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("put report: %w", err)
	}
	return uri, nil
}

// NotifyExporter announces a finished crawl by publishing its report
// document as one message.
type NotifyExporter struct {
	name      string
	topic     string
	publisher Publisher
}

// NewNotifyExporter publishes to topic through publisher.
func NewNotifyExporter(name, topic string, publisher Publisher) *NotifyExporter {
	return &NotifyExporter{name: name, topic: topic, publisher: publisher}
}

// Name identifies the exporter in logs.
func (e *NotifyExporter) Name() string {
	return e.name
}

// Export publishes the document with the session, root and interrupted flag
// as message attributes so subscribers can filter without decoding.
func (e *NotifyExporter) Export(ctx context.Context, s Summary) (string, error) {
	attrs := map[string]string{
		"session_id":  s.SessionID,
		"root":        s.Root,
		"interrupted": strconv.FormatBool(s.Interrupted),
	}
	id, err := e.publisher.Publish(ctx, attrs, NewDocument(s))
	if err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}
	return fmt.Sprintf("pubsub:%s/%s", e.topic, id), nil
}

// ExportAll runs every exporter, logging each outcome. One exporter failing
// does not stop the others; all failures are returned joined.
func ExportAll(ctx context.Context, exporters []Exporter, s Summary, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var errs []error
	for _, exp := range exporters {
		location, err := exp.Export(ctx, s)
		if err != nil {
			logger.Error("report export failed", zap.String("exporter", exp.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s export: %w", exp.Name(), err))
			continue
		}
		logger.Info("report exported", zap.String("exporter", exp.Name()), zap.String("location", location))
	}
	return errors.Join(errs...)
}
