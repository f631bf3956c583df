// Package storage exports crawl results to SQLite. The export is write-only
// from the crawler's point of view: runs never read it back.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/masahif/yanderelinks/internal/extract"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// ErrUnknownRun is returned when links are saved for a run that was never
// begun.
var ErrUnknownRun = errors.New("unknown crawl run")

// Meta keys written by the crawler.
const (
	MetaLastRunID = "last_run_id"
)

// SQLiteStorage stores crawl runs and their image links in SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	// Initialize schema
	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000", // 30 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginRun records the start of a crawl run.
func (s *SQLiteStorage) BeginRun(runID string, seeds []string, enumerate int) error {
	seedsJSON, err := json.Marshal(seeds)
	if err != nil {
		return fmt.Errorf("failed to encode seeds: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO crawl_runs (id, seeds, enumerate, state, started_at) VALUES (?, ?, ?, 'running', ?)",
		runID, string(seedsJSON), enumerate, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to begin run %s: %w", runID, err)
	}

	return s.SetMeta(MetaLastRunID, runID)
}

// FinishRun records the final state of a run and how many links it found.
func (s *SQLiteStorage) FinishRun(runID, state string, linkCount int) error {
	result, err := s.db.Exec(
		"UPDATE crawl_runs SET state = ?, finished_at = ?, link_count = ? WHERE id = ?",
		state, time.Now().UTC(), linkCount, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrUnknownRun)
	}
	return nil
}

// SaveLinks stores the links found on pageURL in one transaction. Links
// already stored for the run are ignored. It returns the number of rows
// inserted.
func (s *SQLiteStorage) SaveLinks(runID, pageURL string, links []string) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRow("SELECT 1 FROM crawl_runs WHERE id = ?", runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", runID, ErrUnknownRun)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO image_links (run_id, page_url, image_url, found_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	inserted := 0
	for _, link := range links {
		result, err := stmt.Exec(runID, pageURL, link, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert link %s: %w", link, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit links: %w", err)
	}
	return inserted, nil
}

// Sink returns an extract.Sink that saves every batch under runID.
func (s *SQLiteStorage) Sink(runID string) extract.Sink {
	return extract.SinkFunc(func(page string, links []string) error {
		_, err := s.SaveLinks(runID, page, links)
		return err
	})
}

// RunLinks returns the image links of a run in the order they were stored.
func (s *SQLiteStorage) RunLinks(runID string) ([]string, error) {
	rows, err := s.db.Query("SELECT image_url FROM image_links WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []string
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// Run describes one stored crawl run.
type Run struct {
	ID         string
	Seeds      []string
	Enumerate  int
	State      string
	StartedAt  time.Time
	FinishedAt *time.Time
	LinkCount  int
}

// GetRun loads a run by id.
func (s *SQLiteStorage) GetRun(runID string) (*Run, error) {
	var (
		run        Run
		seedsJSON  string
		finishedAt sql.NullTime
		linkCount  sql.NullInt64
	)
	err := s.db.QueryRow(`
		SELECT id, seeds, enumerate, state, started_at, finished_at, link_count
		FROM crawl_runs WHERE id = ?
	`, runID).Scan(&run.ID, &seedsJSON, &run.Enumerate, &run.State, &run.StartedAt, &finishedAt, &linkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrUnknownRun)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if err := json.Unmarshal([]byte(seedsJSON), &run.Seeds); err != nil {
		return nil, fmt.Errorf("failed to decode seeds: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	run.LinkCount = int(linkCount.Int64)
	return &run, nil
}

// GetMeta retrieves a metadata value
func (s *SQLiteStorage) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM crawl_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (s *SQLiteStorage) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO crawl_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}
