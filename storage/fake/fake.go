// Package fake provides an in-memory Store for tests.
package fake

import (
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rankmaniac/rankmaniac/storage"
)

// InMemory implements storage.Store with a map. List returns keys in lexical
// order so "first output key" semantics are deterministic.
type InMemory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewInMemory() *InMemory {
	return &InMemory{objects: make(map[string][]byte)}
}

func (s *InMemory) List(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *InMemory) Delete(keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.objects, key)
	}
	return nil
}

func (s *InMemory) Copy(key, destPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contents, ok := s.objects[key]
	if !ok {
		return &storage.NotFoundError{Key: key}
	}
	dup := make([]byte, len(contents))
	copy(dup, contents)
	s.objects[storage.JoinKey(destPrefix, path.Base(key))] = dup
	return nil
}

func (s *InMemory) GetContents(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contents, ok := s.objects[key]
	if !ok {
		return nil, &storage.NotFoundError{Key: key}
	}
	dup := make([]byte, len(contents))
	copy(dup, contents)
	return dup, nil
}

func (s *InMemory) PutContents(key string, contents []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := make([]byte, len(contents))
	copy(dup, contents)
	s.objects[key] = dup
	return nil
}
