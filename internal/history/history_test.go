package history

import (
	"strings"
	"testing"
	"time"

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

func TestSaveItemAssignsFields(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time { return time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC) }

	saved, ok := s.SaveItem(Item{Category: "ui", Location: "[button]#submit", Text: "make it blue", Priority: "P1"})
	if !ok {
		t.Fatal("SaveItem reported failure")
	}

	items := s.LoadAll()
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	it := items[0]
	if it.ID == "" || it.Timestamp == "" {
		t.Error("id/timestamp not assigned at save time")
	}
	if it.Date != "2026.08.29" {
		t.Errorf("Date = %q, want 2026.08.29", it.Date)
	}
	if saved != it {
		t.Errorf("returned item %+v differs from stored %+v", saved, it)
	}
}

func TestSaveItemFailedWriteReportsFalse(t *testing.T) {
	kv, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	s := New(kv)
	kv.Close()

	if _, ok := s.SaveItem(Item{Text: "lost"}); ok {
		t.Error("SaveItem reported success on a closed store")
	}
}

func TestSaveItemIDsUnique(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.SaveItem(Item{Text: "first"})
	s.SaveItem(Item{Text: "second"})
	s.SaveItem(Item{Text: "third"})

	items := s.LoadAll()
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.ID] {
			t.Fatalf("duplicate id %q with a frozen clock", it.ID)
		}
		seen[it.ID] = true
	}
}

func TestLoadAllInsertionOrder(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(Item{Text: "one"})
	s.SaveItem(Item{Text: "two"})
	s.SaveItem(Item{Text: "three"})

	items := s.LoadAll()
	if len(items) != 3 || items[0].Text != "one" || items[2].Text != "three" {
		t.Errorf("insertion order not preserved: %+v", items)
	}
}

func TestFilterByCategory(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(Item{Category: "ui", Text: "a"})
	s.SaveItem(Item{Category: "bug", Text: "b"})
	s.SaveItem(Item{Category: "ui", Text: "c"})

	all := s.FilterByCategory("all")
	if len(all) != 3 {
		t.Errorf("FilterByCategory(all) = %d items, want 3", len(all))
	}

	ui := s.FilterByCategory("ui")
	if len(ui) != 2 || ui[0].Text != "a" || ui[1].Text != "c" {
		t.Errorf("FilterByCategory(ui) = %+v", ui)
	}
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(Item{Location: "[header].nav", Text: "Fix the Login button"})
	s.SaveItem(Item{Location: "[footer]", Text: "update copyright"})
	s.SaveItem(Item{Location: "login-form", Text: "widen input"})

	got := s.Search("LOGIN")
	if len(got) != 2 {
		t.Fatalf("Search(LOGIN) = %d items, want 2 (text and location matches)", len(got))
	}
	for _, it := range got {
		text := strings.ToLower(it.Text + it.Location)
		if !strings.Contains(text, "login") {
			t.Errorf("item %+v does not contain keyword", it)
		}
	}

	// Idempotent: searching twice yields the same set.
	again := s.Search("LOGIN")
	if len(again) != len(got) || again[0].ID != got[0].ID {
		t.Error("Search is not idempotent")
	}
}

func TestSearchEmptyKeywordMatchesAll(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(Item{Text: "a"})
	s.SaveItem(Item{Text: "b"})

	if got := s.Search(""); len(got) != 2 {
		t.Errorf("Search(\"\") = %d items, want all 2", len(got))
	}
}

func TestDeleteItem(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(Item{Text: "keep"})
	s.SaveItem(Item{Text: "drop"})

	items := s.LoadAll()
	s.DeleteItem(items[1].ID)

	left := s.LoadAll()
	if len(left) != 1 || left[0].Text != "keep" {
		t.Errorf("after delete: %+v", left)
	}
}

func TestDeleteItemUnknownIDIsNoop(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(Item{Text: "a"})
	s.SaveItem(Item{Text: "b"})
	before := s.LoadAll()

	s.DeleteItem("no-such-id")

	after := s.LoadAll()
	if len(after) != len(before) {
		t.Fatalf("length changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("item %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestExportToMarkdown(t *testing.T) {
	s := newTestStore(t)

	day1 := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return day1 }
	s.SaveItem(Item{Category: "ui", Location: "[button]#submit", Text: "older first", Priority: "P2"})
	s.SaveItem(Item{Category: "bug", Location: "[form]", Text: "older second"})
	s.now = func() time.Time { return day2 }
	s.SaveItem(Item{Category: "function", Location: "[nav]", Text: "newer", Priority: "P0"})

	md := s.ExportToMarkdown()

	// Most recent date block first.
	i28 := strings.Index(md, "## 2026.08.28")
	i27 := strings.Index(md, "## 2026.08.27")
	if i28 == -1 || i27 == -1 || i28 > i27 {
		t.Fatalf("date blocks missing or out of order:\n%s", md)
	}

	// Insertion order inside a block.
	iFirst := strings.Index(md, "older first")
	iSecond := strings.Index(md, "older second")
	if iFirst == -1 || iSecond == -1 || iFirst > iSecond {
		t.Error("chronological order not kept within a date block")
	}

	if !strings.Contains(md, "### [ui] [button]#submit") {
		t.Error("item heading missing")
	}
	if !strings.Contains(md, "**Priority**: P0") {
		t.Error("priority line missing")
	}

	// No item omitted or duplicated.
	if strings.Count(md, "newer") != 1 {
		t.Error("item duplicated or missing in export")
	}
}

func TestExportOmitsPriorityWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	s.SaveItem(Item{Category: "other", Location: "x", Text: "no priority"})

	md := s.ExportToMarkdown()
	if strings.Contains(md, "**Priority**:") {
		t.Error("priority line rendered for item without priority")
	}
}
