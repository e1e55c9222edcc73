// Package memory keeps the persisted session in process memory. Used for tests
// and for the local environment where nothing has to survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
)

type Storage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewStorage() *Storage {
	return &Storage{values: make(map[string]string)}
}

func (s *Storage) Save(_ context.Context, c models.Credentials) error {
	values, err := storage.Encode(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
	return nil
}

func (s *Storage) Load(_ context.Context) (models.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return storage.Decode(s.values)
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	return nil
}

// Get returns one raw entry, mirroring what an extension storage area exposes.
func (s *Storage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}
