package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-loop-client/core"
)

// MemoryPreferenceStore keeps preferences for the life of the process.
type MemoryPreferenceStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{values: map[string]string{}}
}

func (s *MemoryPreferenceStore) GetCharPref(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[strings.TrimSpace(key)]
	return value, ok, nil
}

func (s *MemoryPreferenceStore) SetCharPref(_ context.Context, key string, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return core.MissingParameterError("set_pref", "key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	return nil
}

func (s *MemoryPreferenceStore) ClearPref(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, strings.TrimSpace(key))
	return nil
}

var _ core.PreferenceStore = (*MemoryPreferenceStore)(nil)
