package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/docscrawl/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "docscrawl.db"

// CrawlDB stores crawl runs in SQLite: one row per run holding the full
// report as JSON, plus one row per page and per error for querying.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run; report_json holds the complete report
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		host TEXT NOT NULL,
		start_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		stop_kind TEXT NOT NULL,
		stop_message TEXT,
		useful_pages INTEGER DEFAULT 0,
		skipped_pages INTEGER DEFAULT 0,
		failed_pages INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON crawl_runs(host);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Pages of each run, without their content
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		depth INTEGER,
		title TEXT,
		word_count INTEGER,
		fingerprint TEXT,
		skip_reason TEXT,
		error TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	-- URLs that could not be crawled
	CREATE TABLE IF NOT EXISTS page_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		error TEXT NOT NULL,
		depth INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_errors_run ON page_errors(run_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawlReport stores report and its pages in one transaction and
// returns the database ID of the run.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after Commit
	}()

	failed := report.CountByStatus(model.StatusFailed) + report.CountByStatus(model.StatusTimeout)
	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (run_id, host, start_url, started_at, finished_at, stop_kind, stop_message,
		useful_pages, skipped_pages, failed_pages, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Host,
		report.StartURL,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.StopReason.Kind.String(),
		report.StopReason.Message,
		report.UsefulPages(),
		report.CountByStatus(model.StatusSkipped),
		failed,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save crawl run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read crawl run id: %w", err)
	}

	pageStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, url, status, depth, title, word_count, fingerprint, skip_reason, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer pageStmt.Close()

	for _, p := range report.Pages {
		if _, err := pageStmt.ExecContext(ctx,
			runID, p.URL, p.Status.String(), p.Depth, p.Title, p.WordCount, p.Fingerprint, p.SkipReason, p.Error,
		); err != nil {
			return 0, fmt.Errorf("failed to save page %s: %w", p.URL, err)
		}
	}

	for _, e := range report.Errors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO page_errors (run_id, url, error, depth) VALUES (?, ?, ?, ?)`,
			runID, e.URL, e.Error, e.Depth,
		); err != nil {
			return 0, fmt.Errorf("failed to save page error %s: %w", e.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return runID, nil
}

// GetLatestCrawlReport retrieves the most recent report for host.
// It returns nil, nil when the host was never crawled.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, host string) (*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM crawl_runs
	WHERE host = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`
	return cdb.queryReport(ctx, query, host)
}

// GetCrawlReportByID retrieves a report by its database ID.
// It returns nil, nil when no run has that ID.
func (cdb *CrawlDB) GetCrawlReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	return cdb.queryReport(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, id)
}

func (cdb *CrawlDB) queryReport(ctx context.Context, query string, args ...any) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListCrawledSites returns every host with at least one stored run.
func (cdb *CrawlDB) ListCrawledSites(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT host FROM crawl_runs ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// CrawlRunMetadata summarizes a stored run without loading its report.
type CrawlRunMetadata struct {
	// ID is the database ID of the run.
	ID int64

	// RunID is the report's UUID.
	RunID string

	Host       string
	StartURL   string
	StartedAt  time.Time
	FinishedAt time.Time

	// StopKind and StopMessage are the report's stop reason.
	StopKind    string
	StopMessage string

	UsefulPages  int
	SkippedPages int
	FailedPages  int
}

// Duration returns how long the run took.
func (m CrawlRunMetadata) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// GetCrawlHistory returns the runs of host, newest first.
// An empty host returns the runs of every host.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, host string) ([]CrawlRunMetadata, error) {
	query := `
	SELECT id, run_id, host, start_url, started_at, finished_at, stop_kind, stop_message,
		useful_pages, skipped_pages, failed_pages
	FROM crawl_runs
	`
	args := make([]any, 0, 1)
	if host != "" {
		query += " WHERE host = ?"
		args = append(args, host)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlRunMetadata
	for rows.Next() {
		var meta CrawlRunMetadata
		var started string
		var finished, stopMessage sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.RunID,
			&meta.Host,
			&meta.StartURL,
			&started,
			&finished,
			&meta.StopKind,
			&stopMessage,
			&meta.UsefulPages,
			&meta.SkippedPages,
			&meta.FailedPages,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished.String)
		meta.StopMessage = stopMessage.String
		results = append(results, meta)
	}

	return results, rows.Err()
}

// PageStatuses returns the status of every page of a run keyed by URL.
func (cdb *CrawlDB) PageStatuses(ctx context.Context, id int64) (map[string]model.PageStatus, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url, status FROM pages WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.PageStatus)
	for rows.Next() {
		var url, status string
		if err := rows.Scan(&url, &status); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		s, err := model.ParsePageStatus(status)
		if err != nil {
			continue
		}
		out[url] = s
	}
	return out, rows.Err()
}

// DeleteCrawlRun removes a run with its pages and errors. It reports whether
// a run was deleted.
func (cdb *CrawlDB) DeleteCrawlRun(ctx context.Context, id int64) (bool, error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, q := range []string{
		`DELETE FROM pages WHERE run_id = ?`,
		`DELETE FROM page_errors WHERE run_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return false, fmt.Errorf("failed to delete crawl run %d: %w", id, err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete crawl run %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete crawl run %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n > 0, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // written by formatTimestamp
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
