// iface.go defines the StoreInterface for dependency injection and testing.
//
// The concrete *Store type satisfies this interface. The sheet and the cmd
// layer accept StoreInterface so tests can swap in an in-memory fake.
package store

import "github.com/daviddao/incr/pkg/model"

// StoreInterface defines the full set of store operations.
type StoreInterface interface {
	// Close closes the database connection.
	Close() error

	// --- Cells ---

	// PutCell creates or replaces a cell's formula.
	PutCell(name, formula string) (*model.Cell, error)

	// GetCell retrieves a cell by name; ErrNotFound if missing.
	GetCell(name string) (*model.Cell, error)

	// DeleteCell removes a cell.
	DeleteCell(name string) error

	// ListCells returns all cells ordered by name.
	ListCells() ([]model.Cell, error)

	// --- Change log ---

	// AppendChange appends a change log entry. Returns the row ID.
	AppendChange(c *model.Change) (int64, error)

	// ListChanges returns change log entries with ID > sinceID.
	ListChanges(sinceID int64, limit int) ([]model.Change, error)

	// ListChangesForCell returns the change history of one cell.
	ListChangesForCell(name string, limit int) ([]model.Change, error)

	// CountChanges returns the number of change log entries.
	CountChanges() int64
}

// Compile-time check that *Store implements StoreInterface.
var _ StoreInterface = (*Store)(nil)
