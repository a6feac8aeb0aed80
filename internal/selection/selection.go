// Package selection persists location tags: the ordered list of element and
// screen-region descriptors picked in the preview. Entries are addressed by
// position, so removal shifts every later index down by one — callers that
// cache indices must treat them as shifted or re-read the list.
package selection

import "github.com/yjkwon/devpin/internal/storage"

const key = "selected_elements"

type Store struct {
	kv *storage.Store
}

func New(kv *storage.Store) *Store {
	return &Store{kv: kv}
}

// Save overwrites the whole persisted sequence.
func (s *Store) Save(elements []string) bool {
	return s.kv.SaveJSON(key, elements)
}

// Load returns the persisted sequence, empty if unset.
func (s *Store) Load() []string {
	var elements []string
	s.kv.LoadJSON(key, &elements)
	return elements
}

// Add appends one descriptor.
func (s *Store) Add(descriptor string) bool {
	return s.Save(append(s.Load(), descriptor))
}

// Remove deletes the element at index. Out-of-range indices are ignored.
func (s *Store) Remove(index int) bool {
	elements := s.Load()
	if index < 0 || index >= len(elements) {
		return true
	}
	return s.Save(append(elements[:index], elements[index+1:]...))
}

// Clear empties the sequence.
func (s *Store) Clear() bool {
	return s.kv.Remove(key)
}
