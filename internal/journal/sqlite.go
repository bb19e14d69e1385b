// Package journal keeps an append-only log of committed board changes in a
// SQLite database beside the markdown files. The files stay the source of
// truth; the journal is history.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Kind classifies a journal event.
type Kind string

const (
	KindIssueCreated  Kind = "issue.created"
	KindIssueMoved    Kind = "issue.moved"
	KindIssueUpdated  Kind = "issue.updated"
	KindIssueArchived Kind = "issue.archived"
	KindIssueDeleted  Kind = "issue.deleted"
	KindSpecCreated   Kind = "spec.created"
	KindSpecStatus    Kind = "spec.status"
	KindSpecDeleted   Kind = "spec.deleted"
	KindGuidance      Kind = "guidance.updated"
)

// Event is one committed change.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Issue     string    `json:"issue"`
	Spec      string    `json:"spec,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter narrows List results. A zero Limit means no limit.
type ListFilter struct {
	Issue string
	Kind  Kind
	Limit int
}

// Recorder is the write side used by the board service.
type Recorder interface {
	Record(ctx context.Context, e *Event) error
}

// SQLiteJournal implements Recorder using modernc.org/sqlite (pure Go, no CGO).
type SQLiteJournal struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// Open opens (or creates) a journal database at the given path.
func Open(dbPath string) (*SQLiteJournal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// Single writer; see SQLite locking.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(pragma), err)
		}
	}

	return &SQLiteJournal{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:     time.Now,
	}, nil
}

// newULID generates a ULID that sorts after every earlier one from this journal.
func (j *SQLiteJournal) newULID(t time.Time) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), j.entropy).String()
}

// Migrate runs all embedded SQL migration files in order.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, k int) bool {
		return entries[i].Name() < entries[k].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := j.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := j.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Record appends e, filling ID and CreatedAt when unset.
func (j *SQLiteJournal) Record(ctx context.Context, e *Event) error {
	if e.Kind == "" || e.Issue == "" {
		return fmt.Errorf("record event: kind and issue are required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now().UTC()
	}
	if e.ID == "" {
		e.ID = j.newULID(e.CreatedAt)
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (id, kind, issue, spec, from_state, to_state, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Issue, e.Spec, e.From, e.To, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// List returns events newest first.
func (j *SQLiteJournal) List(ctx context.Context, filter ListFilter) ([]*Event, error) {
	query := `SELECT id, kind, issue, spec, from_state, to_state, detail, created_at FROM events`
	var (
		where []string
		args  []any
	)
	if filter.Issue != "" {
		where = append(where, "issue = ?")
		args = append(args, filter.Issue)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Issue, &e.Spec, &e.From, &e.To, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = Kind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Nop discards every event. It stands in when the journal is disabled.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, *Event) error { return nil }
