package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/simplecrawl/pkg/schema"
)

// DBFile is the database file name inside the database directory.
const DBFile = "simplecrawl.db"

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrJobNotFound is returned when a job ID has no record.
var ErrJobNotFound = errors.New("crawl job not found in history")

// Store provides SQLite-based storage for crawl job history.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// now stamps created and updated times.
	now func() time.Time
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Job is one recorded crawl job.
type Job struct {
	ID        string
	URL       string
	Status    schema.JobStatus
	Total     int
	Completed int

	// Pages is the number of pages the client received.
	Pages int

	// OutputDir is where the job's files were written. Empty when nothing
	// was written.
	OutputDir string

	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Page is one page file written for a job.
type Page struct {
	SourceURL  string
	StatusCode int
	Title      string
	Path       string
}

// FromCrawlJob converts a job snapshot into a history record.
func FromCrawlJob(job schema.CrawlJob, outputDir string) Job {
	return Job{
		ID:        job.ID,
		URL:       job.URL,
		Status:    job.Status,
		Total:     job.Total,
		Completed: job.Completed,
		Pages:     len(job.Results),
		OutputDir: outputDir,
		ExpiresAt: job.ExpiresAt,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, DBFile)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS crawl_jobs (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		output_dir TEXT NOT NULL DEFAULT '',
		expires_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_jobs_updated ON crawl_jobs(updated_at);

	CREATE TABLE IF NOT EXISTS crawl_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL REFERENCES crawl_jobs(id) ON DELETE CASCADE,
		source_url TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		UNIQUE(job_id, source_url)
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_pages_job ON crawl_pages(job_id);
	`

	_, err := s.db.ExecContext(context.Background(), ddl)
	return err
}

// SaveJob inserts job or updates the existing record with the same ID. The
// creation time of an existing record is preserved.
func (s *Store) SaveJob(ctx context.Context, job Job) error {
	if job.ID == "" {
		return errors.New("job ID is required")
	}

	now := formatTime(s.now())
	var expires any
	if job.ExpiresAt != nil {
		expires = formatTime(*job.ExpiresAt)
	}

	query := `
	INSERT INTO crawl_jobs (id, url, status, total, completed, pages, output_dir, expires_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		url = CASE WHEN excluded.url = '' THEN crawl_jobs.url ELSE excluded.url END,
		status = excluded.status,
		total = excluded.total,
		completed = excluded.completed,
		pages = excluded.pages,
		output_dir = CASE WHEN excluded.output_dir = '' THEN crawl_jobs.output_dir ELSE excluded.output_dir END,
		expires_at = COALESCE(excluded.expires_at, crawl_jobs.expires_at),
		updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.URL,
		string(job.Status),
		job.Total,
		job.Completed,
		job.Pages,
		job.OutputDir,
		expires,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl job: %w", err)
	}
	return nil
}

// SavePages records the page files of a job. Pages are keyed by source URL
// within the job, so saving the same page again replaces it.
func (s *Store) SavePages(ctx context.Context, jobID string, pages []Page) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
	INSERT INTO crawl_pages (job_id, source_url, status_code, title, path)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(job_id, source_url) DO UPDATE SET
		status_code = excluded.status_code,
		title = excluded.title,
		path = excluded.path
	`
	for _, p := range pages {
		if _, err := tx.ExecContext(ctx, query, jobID, p.SourceURL, p.StatusCode, p.Title, p.Path); err != nil {
			return fmt.Errorf("failed to save page %s: %w", p.SourceURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pages: %w", err)
	}
	return nil
}

// GetJob returns the record of jobID, or ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
	SELECT id, url, status, total, completed, pages, output_dir, expires_at, created_at, updated_at
	FROM crawl_jobs
	WHERE id = ?
	`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl job: %w", err)
	}
	return job, nil
}

// List returns the most recently updated jobs first. A limit of zero or less
// returns every job.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
	SELECT id, url, status, total, completed, pages, output_dir, expires_at, created_at, updated_at
	FROM crawl_jobs
	ORDER BY updated_at DESC, id
	LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate crawl jobs: %w", err)
	}
	return jobs, nil
}

// Pages returns the recorded pages of jobID in insertion order.
func (s *Store) Pages(ctx context.Context, jobID string) ([]Page, error) {
	query := `
	SELECT source_url, status_code, title, path
	FROM crawl_pages
	WHERE job_id = ?
	ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := make([]Page, 0)
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.SourceURL, &p.StatusCode, &p.Title, &p.Path); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pages: %w", err)
	}
	return pages, nil
}

// DeleteJob removes jobID and its pages. Deleting an unknown job is not an
// error.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM crawl_pages WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("failed to delete pages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM crawl_jobs WHERE id = ?", jobID); err != nil {
		return fmt.Errorf("failed to delete crawl job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job       Job
		status    string
		expires   sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&job.ID,
		&job.URL,
		&status,
		&job.Total,
		&job.Completed,
		&job.Pages,
		&job.OutputDir,
		&expires,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	job.Status = schema.JobStatus(status)
	job.CreatedAt = parseTimestamp(createdAt)
	job.UpdatedAt = parseTimestamp(updatedAt)
	if expires.Valid && expires.String != "" {
		t := parseTimestamp(expires.String)
		job.ExpiresAt = &t
	}
	return &job, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats are tried in order when reading stored timestamps.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite CURRENT_TIMESTAMP
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
