package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/daviddao/incr/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Cell tests ---

func TestPutAndGetCell(t *testing.T) {
	s := newTestStore(t)
	c, err := s.PutCell("a", "1 + 2")
	if err != nil {
		t.Fatalf("PutCell: %v", err)
	}
	if c.Name != "a" || c.Formula != "1 + 2" {
		t.Fatalf("PutCell returned %+v", c)
	}

	got, err := s.GetCell("a")
	if err != nil {
		t.Fatalf("GetCell: %v", err)
	}
	if got.Formula != "1 + 2" {
		t.Fatalf("formula = %q, want %q", got.Formula, "1 + 2")
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt should be set")
	}
}

func TestPutCell_Replaces(t *testing.T) {
	s := newTestStore(t)
	s.PutCell("a", "1")
	s.PutCell("a", "b * 2")

	got, err := s.GetCell("a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Formula != "b * 2" {
		t.Fatalf("formula = %q, want replaced value", got.Formula)
	}
	cells, _ := s.ListCells()
	if len(cells) != 1 {
		t.Fatalf("got %d cells, want 1", len(cells))
	}
}

func TestGetCell_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCell("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCell(missing): got %v, want ErrNotFound", err)
	}
}

func TestDeleteCell(t *testing.T) {
	s := newTestStore(t)
	s.PutCell("a", "1")
	if err := s.DeleteCell("a"); err != nil {
		t.Fatalf("DeleteCell: %v", err)
	}
	if _, err := s.GetCell("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteCell("a"); err != nil {
		t.Fatalf("deleting a missing cell should succeed: %v", err)
	}
}

func TestListCells_Ordered(t *testing.T) {
	s := newTestStore(t)
	for _, n := range []string{"carol", "alice", "bob"} {
		if _, err := s.PutCell(n, "0"); err != nil {
			t.Fatal(err)
		}
	}
	cells, err := s.ListCells()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range cells {
		names = append(names, c.Name)
	}
	if fmt.Sprint(names) != "[alice bob carol]" {
		t.Fatalf("cells not ordered: %v", names)
	}
}

// --- Change log tests ---

func TestAppendAndListChanges(t *testing.T) {
	s := newTestStore(t)
	c := &model.Change{Session: "s1", Kind: model.ChangeSet, Cell: "a", Formula: "1", Revision: 1}
	id, err := s.AppendChange(c)
	if err != nil {
		t.Fatalf("AppendChange: %v", err)
	}
	if id <= 0 || c.ID != id {
		t.Fatalf("AppendChange id=%d c.ID=%d", id, c.ID)
	}
	s.AppendChange(&model.Change{Session: "s1", Kind: model.ChangeDelete, Cell: "a", Revision: 2})

	changes, err := s.ListChanges(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	first := changes[0]
	if first.Kind != model.ChangeSet || first.Formula != "1" || first.Revision != 1 || first.Session != "s1" {
		t.Fatalf("first change = %+v", first)
	}
	if changes[1].Kind != model.ChangeDelete || changes[1].Formula != "" {
		t.Fatalf("second change = %+v", changes[1])
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("CreatedAt should default to now")
	}

	tail, _ := s.ListChanges(first.ID, 10)
	if len(tail) != 1 || tail[0].ID != changes[1].ID {
		t.Fatalf("ListChanges(since=%d) = %+v", first.ID, tail)
	}
	if n := s.CountChanges(); n != 2 {
		t.Fatalf("CountChanges = %d, want 2", n)
	}
}

func TestListChanges_DefaultLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 120; i++ {
		s.AppendChange(&model.Change{Session: "s", Kind: model.ChangeSet, Cell: "a", Formula: fmt.Sprint(i)})
	}
	changes, err := s.ListChanges(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 100 {
		t.Fatalf("default limit: got %d, want 100", len(changes))
	}
}

func TestListChangesForCell(t *testing.T) {
	s := newTestStore(t)
	s.AppendChange(&model.Change{Session: "s", Kind: model.ChangeSet, Cell: "a", Formula: "1"})
	s.AppendChange(&model.Change{Session: "s", Kind: model.ChangeSet, Cell: "b", Formula: "2"})
	s.AppendChange(&model.Change{Session: "s", Kind: model.ChangeSet, Cell: "a", Formula: "3"})

	changes, err := s.ListChangesForCell("a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 || changes[0].Formula != "1" || changes[1].Formula != "3" {
		t.Fatalf("history of a = %+v", changes)
	}
}

func TestStoreSatisfiesInterface(t *testing.T) {
	var iface StoreInterface = newTestStore(t)
	if _, err := iface.PutCell("x", "1"); err != nil {
		t.Fatal(err)
	}
	if n := iface.CountChanges(); n != 0 {
		t.Fatalf("CountChanges = %d, want 0", n)
	}
}
