// Package history keeps the bounded conversation log consumed as planning
// context. Entries are appended only after a turn fully completes; the log
// evicts oldest-first once it reaches its bound.
package history

import (
	"context"
	"sync"
	"time"
)

// Role values for history entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Defaults: keep the most recent 20 entries, feed the most recent 12 into
// the planning prompt.
const (
	DefaultKeep    = 20
	DefaultContext = 12
)

// Entry is one logged conversation turn half.
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the conversation history contract. Append adds entries in order;
// Recent returns up to n of the newest entries, oldest first.
type Store interface {
	Append(ctx context.Context, userID string, entries ...Entry) error
	Recent(ctx context.Context, userID string, n int) ([]Entry, error)
}

// MemoryStore is the in-process implementation, bounded FIFO per user.
type MemoryStore struct {
	mu   sync.RWMutex
	keep int
	logs map[string][]Entry
}

// NewMemoryStore creates a store keeping at most keep entries per user.
func NewMemoryStore(keep int) *MemoryStore {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &MemoryStore{keep: keep, logs: make(map[string][]Entry)}
}

// Append adds entries, evicting the oldest once the bound is exceeded.
func (s *MemoryStore) Append(ctx context.Context, userID string, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := append(s.logs[userID], entries...)
	if len(log) > s.keep {
		log = log[len(log)-s.keep:]
	}
	s.logs[userID] = log
	return nil
}

// Recent returns up to n of the newest entries in chronological order.
func (s *MemoryStore) Recent(ctx context.Context, userID string, n int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.logs[userID]
	if n <= 0 || n > len(log) {
		n = len(log)
	}
	out := make([]Entry, n)
	copy(out, log[len(log)-n:])
	return out, nil
}
