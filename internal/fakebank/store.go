package fakebank

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"
)

// Store persists the account map across restarts.
type Store interface {
	Load() (map[string]*User, error)
	Save(users map[string]*User) error
}

type memoryStore struct {
	mu    sync.Mutex
	users map[string]*User
}

// NewMemoryStore constructs a volatile store for tests and ephemeral runs.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Load() (map[string]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		return make(map[string]*User), nil
	}
	return s.users, nil
}

func (s *memoryStore) Save(users map[string]*User) error {
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

// FileStore snapshots accounts to a JSON file. Writes go to a temporary file
// first and are renamed into place so an interrupted write cannot corrupt the
// snapshot.
type FileStore struct {
	path string
}

// NewFileStore builds a store backed by the JSON snapshot at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot. A missing or unreadable snapshot yields an empty
// account map, matching the production demo's reset-on-corruption behavior.
func (s *FileStore) Load() (map[string]*User, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]*User), nil
		}
		return nil, err
	}

	var users map[string]*User
	if err := json.Unmarshal(data, &users); err != nil {
		return make(map[string]*User), nil
	}
	if users == nil {
		users = make(map[string]*User)
	}
	return users, nil
}

// Save writes the snapshot atomically.
func (s *FileStore) Save(users map[string]*User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
