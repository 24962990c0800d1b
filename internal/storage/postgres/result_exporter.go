// Package postgres exports crawl results into a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitecrawler/internal/id/uuid"
	"github.com/JakeFAU/sitecrawler/internal/report"
)

const defaultTable = "crawl_results"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Row outcomes written to the outcome column.
const (
	OutcomeVisit   = "visit"
	OutcomeFailure = "failure"
)

// Columns is the column order used for every result row.
var Columns = []string{
	"session_id",
	"root_url",
	"url",
	"outcome",
	"status_code",
	"failure_kind",
	"reason",
	"recorded_at",
	"duration_ms",
}

// schemaTemplate creates the result table when it does not exist yet.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id BIGSERIAL PRIMARY KEY,
	session_id UUID NOT NULL,
	root_url TEXT NOT NULL,
	url TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK (outcome IN ('visit', 'failure')),
	status_code INTEGER NOT NULL,
	failure_kind TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (session_id, url)
);
CREATE INDEX IF NOT EXISTS %[1]s_session_idx ON %[1]s (session_id)`

// Config controls the Postgres connection pool used for result rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
	// CreateTable runs the schema DDL inside each export transaction.
	CreateTable bool
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// ResultExporter writes one row per visited or failed URL, all in a single
// transaction per session.
type ResultExporter struct {
	pool        txBeginner
	table       string
	createTable bool
}

// NewResultExporter connects to Postgres using cfg.
func NewResultExporter(ctx context.Context, cfg Config) (*ResultExporter, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("report.postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ResultExporter{pool: pool, table: table, createTable: cfg.CreateTable}, nil
}

// NewResultExporterWithPool constructs an exporter from an existing pool
// (primarily for testing). The table is expected to exist.
func NewResultExporterWithPool(pool txBeginner, table string) (*ResultExporter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ResultExporter{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Name identifies the exporter in logs.
func (e *ResultExporter) Name() string {
	return "postgres"
}

// Schema returns the DDL for the exporter's table.
func (e *ResultExporter) Schema() string {
	return fmt.Sprintf(schemaTemplate, e.table)
}

// Close releases the underlying pool resources.
func (e *ResultExporter) Close() {
	if e == nil || e.pool == nil {
		return
	}
	e.pool.Close()
}

// Export bulk-loads every visit and failure of the summary with COPY. Either
// all rows of the session are committed or none are.
func (e *ResultExporter) Export(ctx context.Context, s report.Summary) (string, error) {
	if e == nil || e.pool == nil {
		return "", fmt.Errorf("result exporter is not configured")
	}
	if !uuid.Valid(s.SessionID) {
		return "", fmt.Errorf("session id %q is not a uuid", s.SessionID)
	}

	rows := make([][]any, 0, len(s.Visits)+len(s.Failures))
	for _, v := range s.Visits {
		rows = append(rows, []any{
			s.SessionID, s.Root, v.URL, OutcomeVisit, v.StatusCode, "", "", v.FetchedAt, v.Duration.Milliseconds(),
		})
	}
	for _, f := range s.Failures {
		rows = append(rows, []any{
			s.SessionID, s.Root, f.URL, OutcomeFailure, 0, string(f.Kind), f.Reason, f.FailedAt, int64(0),
		})
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	if e.createTable {
		if _, err := tx.Exec(ctx, e.Schema()); err != nil {
			return "", rollback(ctx, tx, fmt.Errorf("create table %s: %w", e.table, err))
		}
	}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{e.table}, Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return "", rollback(ctx, tx, fmt.Errorf("copy results into %s: %w", e.table, err))
	}
	if copied != int64(len(rows)) {
		return "", rollback(ctx, tx, fmt.Errorf("copied %d of %d result rows", copied, len(rows)))
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit results: %w", err)
	}
	return fmt.Sprintf("postgres:%s (%d rows)", e.table, copied), nil
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	return cause
}
