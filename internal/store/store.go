// Package store persists per-user planner data and accounts as JSON files.
// It is deliberately simple: one file per user under the data directory,
// guarded by a per-user mutex so concurrent turns cannot interleave writes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/daybreak-hq/daybreak/internal/planner"
)

// ErrNotFound is returned when a user or record does not exist.
var ErrNotFound = errors.New("store: not found")

// UserRecord is everything persisted for one account.
type UserRecord struct {
	ID            string            `json:"id"`
	Email         string            `json:"email"`
	PasswordHash  string            `json:"password_hash"`
	Provider      string            `json:"provider,omitempty"` // preferred LLM backend
	CalendarToken string            `json:"calendar_token,omitempty"`
	Data          *planner.Snapshot `json:"data"`
}

// FileStore keeps one JSON document per user id.
type FileStore struct {
	dir string

	mu     sync.Mutex // guards locks and the indexes
	locks  map[string]*sync.Mutex
	email  map[string]string // email -> user id
	tokens map[string]string // calendar token -> user id
}

// NewFileStore opens (and creates) the data directory and indexes existing
// users by email.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &FileStore{dir: dir, locks: map[string]*sync.Mutex{}, email: map[string]string{}, tokens: map[string]string{}}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue // skip unreadable records, don't refuse to start
		}
		s.email[strings.ToLower(rec.Email)] = rec.ID
		if rec.CalendarToken != "" {
			s.tokens[rec.CalendarToken] = rec.ID
		}
	}
	return s, nil
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

func (s *FileStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *FileStore) load(userID string) (*UserRecord, error) {
	b, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec UserRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", userID, err)
	}
	if rec.Data == nil {
		rec.Data = &planner.Snapshot{}
	}
	return &rec, nil
}

func (s *FileStore) save(rec *UserRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(rec.ID) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(rec.ID))
}

// CreateUser registers a new account. Email comparison is case-insensitive.
func (s *FileStore) CreateUser(email, passwordHash string) (*UserRecord, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return nil, errors.New("store: empty email")
	}
	s.mu.Lock()
	if _, exists := s.email[key]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("store: user %s already exists", key)
	}
	rec := &UserRecord{ID: uuid.NewString(), Email: key, PasswordHash: passwordHash, Data: &planner.Snapshot{}}
	s.email[key] = rec.ID
	s.mu.Unlock()

	lock := s.userLock(rec.ID)
	lock.Lock()
	defer lock.Unlock()
	if err := s.save(rec); err != nil {
		s.mu.Lock()
		delete(s.email, key)
		s.mu.Unlock()
		return nil, err
	}
	return rec, nil
}

// UserByEmail resolves an account for login.
func (s *FileStore) UserByEmail(email string) (*UserRecord, error) {
	s.mu.Lock()
	id, ok := s.email[strings.ToLower(strings.TrimSpace(email))]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.User(id)
}

// User loads one account by id.
func (s *FileStore) User(userID string) (*UserRecord, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.load(userID)
}

// GetUserData returns the user's planner snapshot.
func (s *FileStore) GetUserData(userID string) (*planner.Snapshot, error) {
	rec, err := s.User(userID)
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

// SaveUserData replaces the user's planner snapshot.
func (s *FileStore) SaveUserData(userID string, data *planner.Snapshot) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	rec, err := s.load(userID)
	if err != nil {
		return err
	}
	rec.Data = data
	return s.save(rec)
}

// SetProvider records the user's preferred backend.
func (s *FileStore) SetProvider(userID, provider string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	rec, err := s.load(userID)
	if err != nil {
		return err
	}
	rec.Provider = provider
	return s.save(rec)
}

// EnsureCalendarToken returns the user's calendar feed token, minting one
// on first use.
func (s *FileStore) EnsureCalendarToken(userID string) (string, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	rec, err := s.load(userID)
	if err != nil {
		return "", err
	}
	if rec.CalendarToken == "" {
		rec.CalendarToken = uuid.NewString()
		if err := s.save(rec); err != nil {
			return "", err
		}
		s.mu.Lock()
		s.tokens[rec.CalendarToken] = rec.ID
		s.mu.Unlock()
	}
	return rec.CalendarToken, nil
}

// UserByCalendarToken resolves a calendar feed token.
func (s *FileStore) UserByCalendarToken(token string) (*UserRecord, error) {
	s.mu.Lock()
	id, ok := s.tokens[token]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.User(id)
}
