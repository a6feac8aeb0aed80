// Package chat persists the conversation transcript. Messages are
// append-only and immutable once saved; insertion order is chronological
// order.
package chat

import (
	"strconv"
	"time"

	"github.com/yjkwon/devpin/internal/storage"
)

const key = "chat_history"

// Message is one transcript entry. Timestamp and ID are assigned at save
// time.
type Message struct {
	Type      string `json:"type"` // user, assistant, system
	Name      string `json:"name"`
	Text      string `json:"text"`
	Info      string `json:"info,omitempty"`
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
}

type Store struct {
	kv *storage.Store

	now func() time.Time
}

func New(kv *storage.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

// SaveMessage appends msg with a save-time timestamp and clock-derived id.
func (s *Store) SaveMessage(msg Message) bool {
	msgs := s.LoadAll()

	now := s.now()
	msg.Timestamp = now.UTC().Format(time.RFC3339)
	msg.ID = uniqueID(msgs, now)

	msgs = append(msgs, msg)
	return s.kv.SaveJSON(key, msgs)
}

func uniqueID(msgs []Message, now time.Time) string {
	ms := now.UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		taken := false
		for _, m := range msgs {
			if m.ID == id {
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

// LoadAll returns the transcript in insertion order.
func (s *Store) LoadAll() []Message {
	var msgs []Message
	s.kv.LoadJSON(key, &msgs)
	return msgs
}

// GetLastN returns the trailing n messages, or the whole transcript when it
// is shorter than n.
func (s *Store) GetLastN(n int) []Message {
	msgs := s.LoadAll()
	if n >= len(msgs) {
		return msgs
	}
	if n <= 0 {
		return nil
	}
	return msgs[len(msgs)-n:]
}

// Clear drops the transcript.
func (s *Store) Clear() bool {
	return s.kv.Remove(key)
}
