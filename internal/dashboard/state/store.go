package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store persists sanitized view preferences keyed by entity name.
type Store interface {
	Load(key string) (Persisted, bool, error)
	Save(key string, p Persisted) error
	Delete(key string) error
}

// FileStore keeps one JSON file per key under a directory, written
// atomically via rename. Corrupt payloads are discarded and the key
// cleared so the next session starts from defaults.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Load(key string) (Persisted, bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return Persisted{}, false, nil
	}
	if err != nil {
		return Persisted{}, false, err
	}
	var p Persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("discarding corrupt view state", "key", key, "error", err)
		_ = s.Delete(key)
		return Persisted{}, false, nil
	}
	return p, true, nil
}

func (s *FileStore) Save(key string, p Persisted) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStore backs tests and ephemeral sessions.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Load(key string) (Persisted, bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return Persisted{}, false, nil
	}
	var p Persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		_ = s.Delete(key)
		return Persisted{}, false, nil
	}
	return p, true, nil
}

func (s *MemoryStore) Save(key string, p Persisted) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Corrupt plants an invalid payload for a key. Test helper.
func (s *MemoryStore) Corrupt(key string) {
	s.mu.Lock()
	s.data[key] = []byte("{not json")
	s.mu.Unlock()
}
