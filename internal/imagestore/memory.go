package imagestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(_ context.Context, session, name string, content []byte) error {
	key, err := imageKey(session, name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, session, name string) ([]byte, error) {
	key, err := imageKey(session, name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) List(_ context.Context, session string) ([]string, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, fmt.Errorf("session is required")
	}
	prefix := session + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for key := range s.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, strings.TrimPrefix(key, prefix))
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Purge(_ context.Context, session string) error {
	session = strings.TrimSpace(session)
	if session == "" {
		return fmt.Errorf("session is required")
	}
	prefix := session + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			delete(s.data, key)
		}
	}
	return nil
}

func (s *MemoryStore) GetURL(_ context.Context, _, _ string) (string, error) {
	// Memory store has no external URLs; callers fall back to serving bytes.
	return "", nil
}

func imageKey(session, name string) (string, error) {
	session = strings.TrimSpace(session)
	name = strings.TrimSpace(name)
	if session == "" {
		return "", fmt.Errorf("session is required")
	}
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	return session + "/" + strings.TrimLeft(name, "/"), nil
}
