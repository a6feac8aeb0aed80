package selection

import (
	"testing"

	"github.com/yjkwon/devpin/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return New(kv)
}

func TestLoadUnset(t *testing.T) {
	s := newTestStore(t)
	if got := s.Load(); len(got) != 0 {
		t.Errorf("Load with nothing saved = %v, want empty", got)
	}
}

func TestAddRemoveSurvivors(t *testing.T) {
	s := newTestStore(t)

	s.Add("[button]#submit")
	s.Add("[div].card")
	s.Add("[Screen Area: 120x80 at (10, 20)]")

	// Remove the middle element; later indices shift down.
	s.Remove(1)

	got := s.Load()
	if len(got) != 2 {
		t.Fatalf("got %d elements, want 2", len(got))
	}
	if got[0] != "[button]#submit" || got[1] != "[Screen Area: 120x80 at (10, 20)]" {
		t.Errorf("survivors out of order: %v", got)
	}
}

func TestRemoveOutOfRange(t *testing.T) {
	s := newTestStore(t)

	s.Add("[only]")
	s.Remove(5)
	s.Remove(-1)

	if got := s.Load(); len(got) != 1 || got[0] != "[only]" {
		t.Errorf("out-of-range remove changed the list: %v", got)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)

	s.Add("[old]")
	s.Save([]string{"[a]", "[b]"})

	got := s.Load()
	if len(got) != 2 || got[0] != "[a]" {
		t.Errorf("Save did not overwrite: %v", got)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)

	s.Add("[x]")
	s.Clear()
	if got := s.Load(); len(got) != 0 {
		t.Errorf("Load after Clear = %v", got)
	}
}
