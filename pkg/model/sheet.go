package model

import "time"

// Cell is a named sheet input holding an expression over other cells.
type Cell struct {
	Name      string    `json:"name"`
	Formula   string    `json:"formula"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InputID returns the input identifier a cell's formula is tracked under.
func (c Cell) InputID() InputID { return CellInput(c.Name) }

// CellInput returns the input identifier for the cell called name.
func CellInput(name string) InputID { return InputID("cell:" + name) }

// ChangeKind enumerates entries of the append-only change log.
type ChangeKind string

const (
	ChangeSet    ChangeKind = "set"
	ChangeDelete ChangeKind = "delete"
)

// Change is one entry of the change log. Revision is the revision the
// writing process declared for the change; revisions are process-local, so
// it is only meaningful together with Session.
type Change struct {
	ID        int64      `json:"id"`
	Session   string     `json:"session"`
	Kind      ChangeKind `json:"kind"`
	Cell      string     `json:"cell"`
	Formula   string     `json:"formula,omitempty"`
	Revision  uint64     `json:"revision"`
	CreatedAt time.Time  `json:"created_at"`
}
