// Package journal records CLI operations in SQLite so an interrupted move
// or delete can be found and finished by `shuttle recover`.
package journal

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// Op is the kind of operation journaled.
type Op string

const (
	OpCopy   Op = "copy"
	OpMove   Op = "move"
	OpDelete Op = "delete"
)

// Phases recorded besides the engine's move phases.
const (
	PhaseStarted = "started"
	PhaseDone    = "done"
)

// Outcomes. An empty outcome means the operation never finished.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeRecovered = "recovered"
	OutcomeAbandoned = "abandoned"
)

var (
	// ErrPending is returned by Begin when the same operation is already
	// journaled as unfinished.
	ErrPending = errors.New("unfinished operation on the same paths, run shuttle recover")
	// ErrNotFound is returned for an unknown entry ID.
	ErrNotFound = errors.New("journal entry not found")
)

// Entry is one journaled operation.
type Entry struct {
	Started time.Time
	Updated time.Time
	Op      Op
	Src     string
	Dst     string
	Key     string
	Phase   string
	Outcome string
	Error   string
	ID      uuid.UUID
}

// Pending reports whether the operation never finished.
func (e Entry) Pending() bool { return e.Outcome == "" }

// Journal is an open journal database.
type Journal struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// DefaultPath returns $XDG_STATE_HOME/shuttle/journal.db, falling back to
// ~/.local/state when XDG_STATE_HOME is unset.
func DefaultPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "shuttle", "journal.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "shuttle-journal.db")
	}
	return filepath.Join(home, ".local", "state", "shuttle", "journal.db")
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	j := &Journal{db: db, path: path, now: time.Now}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS operations (
			id      TEXT PRIMARY KEY,
			op      TEXT NOT NULL,
			src     TEXT NOT NULL,
			dst     TEXT NOT NULL,
			key     TEXT NOT NULL,
			phase   TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			error   TEXT NOT NULL DEFAULT '',
			started INTEGER NOT NULL,
			updated INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS operations_pending ON operations (outcome, key);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Begin records the start of an operation and returns its ID.
func (j *Journal) Begin(op Op, src, dst string) (uuid.UUID, error) {
	key := opKey(op, src, dst)

	var existing string
	err := j.db.QueryRow(
		"SELECT id FROM operations WHERE outcome = '' AND key = ?", key,
	).Scan(&existing)
	switch {
	case err == nil:
		return uuid.Nil, fmt.Errorf("%s %s: %w (%s)", op, src, ErrPending, existing)
	case !errors.Is(err, sql.ErrNoRows):
		return uuid.Nil, fmt.Errorf("query pending: %w", err)
	}

	id := uuid.New()
	now := j.now().UnixNano()
	_, err = j.db.Exec(
		"INSERT INTO operations (id, op, src, dst, key, phase, started, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		id.String(), string(op), src, dst, key, PhaseStarted, now, now,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert operation: %w", err)
	}
	return id, nil
}

// SetPhase records progress through a multi-step operation.
func (j *Journal) SetPhase(id uuid.UUID, phase string) error {
	return j.update(id, "UPDATE operations SET phase = ?, updated = ? WHERE id = ?",
		phase, j.now().UnixNano(), id.String())
}

// Finish marks the operation as ended with outcome. cause may be nil.
func (j *Journal) Finish(id uuid.UUID, outcome string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return j.update(id, "UPDATE operations SET outcome = ?, error = ?, updated = ? WHERE id = ?",
		outcome, msg, j.now().UnixNano(), id.String())
}

func (j *Journal) update(id uuid.UUID, query string, args ...any) error {
	res, err := j.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	return nil
}

const selectEntry = "SELECT id, op, src, dst, key, phase, outcome, error, started, updated FROM operations"

// Get returns one entry.
func (j *Journal) Get(id uuid.UUID) (Entry, error) {
	row := j.db.QueryRow(selectEntry+" WHERE id = ?", id.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return e, err
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (j *Journal) List(limit int, pendingOnly bool) ([]Entry, error) {
	query := selectEntry
	if pendingOnly {
		query += " WHERE outcome = ''"
	}
	query += " ORDER BY started DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := j.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes finished entries last updated before cutoff.
func (j *Journal) Prune(cutoff time.Time) (int64, error) {
	res, err := j.db.Exec("DELETE FROM operations WHERE outcome != '' AND updated < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the path to the journal database file.
func (j *Journal) Path() string {
	return j.path
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                        Entry
		id, op                   string
		startedNano, updatedNano int64
	)
	if err := s.Scan(&id, &op, &e.Src, &e.Dst, &e.Key, &e.Phase, &e.Outcome, &e.Error, &startedNano, &updatedNano); err != nil {
		return Entry{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Entry{}, fmt.Errorf("bad entry id %q: %w", id, err)
	}
	e.ID = parsed
	e.Op = Op(op)
	e.Started = time.Unix(0, startedNano)
	e.Updated = time.Unix(0, updatedNano)
	return e, nil
}

// opKey computes a deterministic key for an operation on a path pair.
func opKey(op Op, src, dst string) string {
	h := blake3.New()
	h.Write([]byte(op))
	h.Write([]byte{0})
	h.Write([]byte(src))
	h.Write([]byte{0})
	h.Write([]byte(dst))
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}
