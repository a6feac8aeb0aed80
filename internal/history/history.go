// Package history keeps the requirement log: categorized, prioritized
// records produced by the analysis flow or saved manually. The log is
// append-only except for deletion by id; there is no edit operation.
package history

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yjkwon/devpin/internal/storage"
)

const key = "requirements_history"

// dateLayout is the display form items group under. Lexicographic order of
// this layout equals chronological order, which the export relies on.
const dateLayout = "2006.01.02"

// Item is one recorded requirement. ID, Timestamp and Date are assigned at
// save time.
type Item struct {
	ID        string `json:"id"`
	Category  string `json:"category"` // ui, function, style, bug, other
	Location  string `json:"location"`
	Text      string `json:"text"`
	Priority  string `json:"priority"` // P0, P1, P2
	Timestamp string `json:"timestamp"`
	Date      string `json:"date"`
}

type Store struct {
	kv *storage.Store

	// now is the save-time clock; overridden in tests.
	now func() time.Time
}

func New(kv *storage.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

// SaveItem assigns id, timestamp and display date, then appends the item
// and returns it completed. Missing optional fields are stored as-is;
// nothing is rejected. ok is false when the write failed, in which case
// nothing was appended.
func (s *Store) SaveItem(item Item) (Item, bool) {
	items := s.LoadAll()

	now := s.now()
	item.ID = uniqueID(items, now)
	item.Timestamp = now.UTC().Format(time.RFC3339)
	item.Date = now.Format(dateLayout)

	items = append(items, item)
	if !s.kv.SaveJSON(key, items) {
		return Item{}, false
	}
	return item, true
}

// uniqueID derives an id from the save-time clock. Two saves inside the
// same millisecond would collide, so the candidate is bumped until free.
func uniqueID(items []Item, now time.Time) string {
	ms := now.UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		taken := false
		for _, it := range items {
			if it.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
		ms++
	}
}

// LoadAll returns the full log in insertion order, oldest first.
func (s *Store) LoadAll() []Item {
	var items []Item
	s.kv.LoadJSON(key, &items)
	return items
}

// FilterByCategory returns items with an exactly matching category, order
// preserved. "all" is the identity filter.
func (s *Store) FilterByCategory(category string) []Item {
	items := s.LoadAll()
	if category == "all" {
		return items
	}
	var out []Item
	for _, it := range items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out
}

// Search returns items whose text or location contains keyword,
// case-insensitively. An empty keyword matches everything; callers wanting
// the "empty input means no filter" UI shortcut implement it themselves.
func (s *Store) Search(keyword string) []Item {
	lower := strings.ToLower(keyword)
	var out []Item
	for _, it := range s.LoadAll() {
		if strings.Contains(strings.ToLower(it.Text), lower) ||
			strings.Contains(strings.ToLower(it.Location), lower) {
			out = append(out, it)
		}
	}
	return out
}

// DeleteItem removes the item with the given id. Deleting an unknown id
// leaves the log unchanged.
func (s *Store) DeleteItem(id string) bool {
	items := s.LoadAll()
	out := items[:0:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return s.kv.SaveJSON(key, out)
}

// Clear drops the whole log.
func (s *Store) Clear() bool {
	return s.kv.Remove(key)
}

// ExportToMarkdown renders the full log as a Markdown document: per-date
// sections, most recent date first, each item under its own heading with
// the original insertion order kept inside a date block. Grouping is by
// the display date string on purpose, so items sharing a displayed day end
// up together regardless of sub-day timestamp differences.
func (s *Store) ExportToMarkdown() string {
	items := s.LoadAll()

	var b strings.Builder
	b.WriteString("# Requirements\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", s.now().Format(dateLayout))
	b.WriteString("---\n\n")

	var dates []string
	grouped := make(map[string][]Item)
	for _, it := range items {
		if _, seen := grouped[it.Date]; !seen {
			dates = append(dates, it.Date)
		}
		grouped[it.Date] = append(grouped[it.Date], it)
	}

	// Descending display-date order; the layout makes string order
	// chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	for _, date := range dates {
		fmt.Fprintf(&b, "## %s\n\n", date)
		for _, it := range grouped[date] {
			fmt.Fprintf(&b, "### [%s] %s\n\n", it.Category, it.Location)
			fmt.Fprintf(&b, "%s\n\n", it.Text)
			if it.Priority != "" {
				fmt.Fprintf(&b, "**Priority**: %s\n\n", it.Priority)
			}
			b.WriteString("---\n\n")
		}
	}

	return b.String()
}
