// Package history keeps a local record of ingestion submissions in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DefaultListLimit is used by List when limit is not positive.
const DefaultListLimit = 20

// ErrNotFound is returned by Get for an unknown submission id.
var ErrNotFound = errors.New("history: submission not found")

// Status is the overall outcome of a submission.
type Status string

// Submission outcomes.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Source is where the submitted documents came from.
type Source string

// Submission sources.
const (
	SourceOneDrive Source = "onedrive"
	SourceUpload   Source = "upload"
)

// Submission is one recorded ingestion attempt.
type Submission struct {
	ID             string
	SubmittedAt    time.Time
	Source         Source
	Account        string
	RequesterName  string
	RequesterEmail string
	SelectedCount  int
	SubmittedCount int
	Status         Status
	Processed      int
	TotalChunks    int
	Error          string
	Items          []Item
	Results        []Result
}

// Item is a document that was submitted: a drive item, or a local file
// named by its path. Download URLs are not stored.
type Item struct {
	ID   string
	Name string
}

// Result is the backend's per-document outcome.
type Result struct {
	Filename string
	Status   string
	Chunks   *int
	Reason   string
}

// Store is safe for concurrent use; SQLite serializes writers.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the database at dbPath and migrates it.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("history: creating directory for %s: %w", dbPath, err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("history store opened", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores sub and returns its id. A zero ID, SubmittedAt or Source is
// filled in.
func (s *Store) Record(ctx context.Context, sub *Submission) (string, error) {
	if sub.Source == "" {
		sub.Source = SourceOneDrive
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = s.nowFunc()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("history: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, sqlInsertSubmission,
		sub.ID, sub.SubmittedAt.UnixNano(), sub.Account, sub.RequesterName, sub.RequesterEmail,
		sub.SelectedCount, sub.SubmittedCount, string(sub.Status), sub.Processed, sub.TotalChunks, sub.Error,
		string(sub.Source),
	)
	if err != nil {
		return "", fmt.Errorf("history: inserting submission: %w", err)
	}

	for i, it := range sub.Items {
		if _, err := tx.ExecContext(ctx, sqlInsertItem, sub.ID, i, it.ID, it.Name); err != nil {
			return "", fmt.Errorf("history: inserting item %s: %w", it.ID, err)
		}
	}

	for i, r := range sub.Results {
		if _, err := tx.ExecContext(ctx, sqlInsertResult, sub.ID, i, r.Filename, r.Status, r.Chunks, r.Reason); err != nil {
			return "", fmt.Errorf("history: inserting result %s: %w", r.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("history: committing submission: %w", err)
	}

	s.logger.Debug("recorded submission",
		slog.String("id", sub.ID),
		slog.String("status", string(sub.Status)),
	)

	return sub.ID, nil
}

// List returns up to limit submissions, newest first, with their items and
// results.
func (s *Store) List(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, sqlListSubmissions, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing submissions: %w", err)
	}

	var subs []Submission

	for rows.Next() {
		sub, scanErr := scanSubmission(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}

		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("history: listing submissions: %w", err)
	}

	rows.Close()

	for i := range subs {
		if err := s.loadChildren(ctx, &subs[i]); err != nil {
			return nil, err
		}
	}

	return subs, nil
}

// Get returns one submission by id.
func (s *Store) Get(ctx context.Context, id string) (*Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, sqlGetSubmission, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	if err := s.loadChildren(ctx, &sub); err != nil {
		return nil, err
	}

	return &sub, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (Submission, error) {
	var (
		sub    Submission
		at     int64
		status string
		source string
	)

	err := row.Scan(&sub.ID, &at, &sub.Account, &sub.RequesterName, &sub.RequesterEmail,
		&sub.SelectedCount, &sub.SubmittedCount, &status, &sub.Processed, &sub.TotalChunks, &sub.Error,
		&source)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, err
	}

	if err != nil {
		return sub, fmt.Errorf("history: scanning submission: %w", err)
	}

	sub.SubmittedAt = time.Unix(0, at)
	sub.Status = Status(status)
	sub.Source = Source(source)

	return sub, nil
}

func (s *Store) loadChildren(ctx context.Context, sub *Submission) error {
	items, err := s.db.QueryContext(ctx, sqlListItems, sub.ID)
	if err != nil {
		return fmt.Errorf("history: loading items of %s: %w", sub.ID, err)
	}
	defer items.Close()

	for items.Next() {
		var it Item
		if err := items.Scan(&it.ID, &it.Name); err != nil {
			return fmt.Errorf("history: scanning item: %w", err)
		}

		sub.Items = append(sub.Items, it)
	}

	if err := items.Err(); err != nil {
		return fmt.Errorf("history: loading items of %s: %w", sub.ID, err)
	}

	results, err := s.db.QueryContext(ctx, sqlListResults, sub.ID)
	if err != nil {
		return fmt.Errorf("history: loading results of %s: %w", sub.ID, err)
	}
	defer results.Close()

	for results.Next() {
		var (
			r      Result
			chunks sql.NullInt64
		)

		if err := results.Scan(&r.Filename, &r.Status, &chunks, &r.Reason); err != nil {
			return fmt.Errorf("history: scanning result: %w", err)
		}

		if chunks.Valid {
			n := int(chunks.Int64)
			r.Chunks = &n
		}

		sub.Results = append(sub.Results, r)
	}

	return results.Err()
}
