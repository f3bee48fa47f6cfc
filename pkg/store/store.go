// Package store manages SQLite persistence for incr sheets.
//
// The store holds the raw inputs a Timeline computes over: named cells and
// their formulas. Every mutation is also appended to a change log, tagged
// with the writing session and the revision it declared, so a run can be
// audited afterwards. Cached derived values are never persisted.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daviddao/incr/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a cell does not exist.
var ErrNotFound = errors.New("not found")

// Store manages all SQLite operations with WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// retryOnContention wraps retryOp with the default config. All writes go
// through it.
func retryOnContention(fn func() error) error {
	return retryOp(defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cells (
		name       TEXT PRIMARY KEY,
		formula    TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS changes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session    TEXT NOT NULL,
		kind       TEXT NOT NULL,
		cell       TEXT NOT NULL,
		formula    TEXT,
		revision   INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_changes_cell ON changes(cell, id);
	CREATE INDEX IF NOT EXISTS idx_changes_session ON changes(session, revision);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Cells
// ---------------------------------------------------------------------------

// PutCell creates or replaces a cell's formula.
func (s *Store) PutCell(name, formula string) (*model.Cell, error) {
	now := time.Now().UTC()
	err := retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO cells (name, formula, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET
			   formula = excluded.formula,
			   updated_at = excluded.updated_at`,
			name, formula, now.Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("put cell %s: %w", name, err)
	}
	return &model.Cell{Name: name, Formula: formula, UpdatedAt: now}, nil
}

// GetCell retrieves a cell by name. Returns ErrNotFound if it does not exist.
func (s *Store) GetCell(name string) (*model.Cell, error) {
	row := s.db.QueryRow(`SELECT name, formula, updated_at FROM cells WHERE name = ?`, name)
	c, err := scanCell(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cell %s: %w", name, ErrNotFound)
	}
	return c, err
}

// DeleteCell removes a cell. Deleting a missing cell is not an error.
func (s *Store) DeleteCell(name string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM cells WHERE name = ?`, name)
		return err
	})
}

// ListCells returns all cells ordered by name.
func (s *Store) ListCells() ([]model.Cell, error) {
	rows, err := s.db.Query(`SELECT name, formula, updated_at FROM cells ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []model.Cell
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, *c)
	}
	return cells, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCell(row scanner) (*model.Cell, error) {
	var c model.Cell
	var updStr string
	if err := row.Scan(&c.Name, &c.Formula, &updStr); err != nil {
		return nil, err
	}
	var err error
	c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updStr)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for cell %s: %w", c.Name, err)
	}
	return &c, nil
}

// ---------------------------------------------------------------------------
// Change log
// ---------------------------------------------------------------------------

// AppendChange appends an entry to the change log. Returns the row ID.
func (s *Store) AppendChange(c *model.Change) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	var lastID int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(
			`INSERT INTO changes (session, kind, cell, formula, revision, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.Session, string(c.Kind), c.Cell, c.Formula, int64(c.Revision),
			c.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		lastID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append change: %w", err)
	}
	c.ID = lastID
	return lastID, nil
}

// ListChanges returns change log entries with ID > sinceID, oldest first.
func (s *Store) ListChanges(sinceID int64, limit int) ([]model.Change, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, session, kind, cell, COALESCE(formula,''), revision, created_at
		 FROM changes WHERE id > ?
		 ORDER BY id ASC LIMIT ?`,
		sinceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChanges(rows)
}

// ListChangesForCell returns the change history of one cell, oldest first.
func (s *Store) ListChangesForCell(name string, limit int) ([]model.Change, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, session, kind, cell, COALESCE(formula,''), revision, created_at
		 FROM changes WHERE cell = ?
		 ORDER BY id ASC LIMIT ?`,
		name, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChanges(rows)
}

// CountChanges returns the total number of change log entries.
func (s *Store) CountChanges() int64 {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM changes`).Scan(&count); err != nil {
		return 0
	}
	return count
}

func scanChanges(rows *sql.Rows) ([]model.Change, error) {
	var changes []model.Change
	for rows.Next() {
		var c model.Change
		var kindStr, createdStr string
		var rev int64
		if err := rows.Scan(&c.ID, &c.Session, &kindStr, &c.Cell, &c.Formula, &rev, &createdStr); err != nil {
			return nil, err
		}
		c.Kind = model.ChangeKind(kindStr)
		c.Revision = uint64(rev)
		var parseErr error
		c.CreatedAt, parseErr = time.Parse(time.RFC3339Nano, createdStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse created_at for change %d: %w", c.ID, parseErr)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
