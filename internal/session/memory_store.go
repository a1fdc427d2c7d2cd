package session

import (
	"context"
	"sync"
	"time"
)

type principalKey struct {
	scope Scope
	id    int64
}

// MemoryStore is a process-local Store for tests and single-node dev runs.
type MemoryStore struct {
	mu    sync.Mutex
	m     map[string]Session
	index map[principalKey]map[string]struct{}
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:     make(map[string]Session),
		index: make(map[principalKey]map[string]struct{}),
		now:   time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, key string, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = sess
	pk := principalKey{scope: sess.Scope, id: sess.PrincipalID}
	if s.index[pk] == nil {
		s.index[pk] = make(map[string]struct{})
	}
	s.index[pk][key] = struct{}{}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.m[key]
	if !ok || sess.Expired(s.now()) {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.m[key]
	if !ok {
		return nil
	}
	delete(s.m, key)
	delete(s.index[principalKey{scope: sess.Scope, id: sess.PrincipalID}], key)
	return nil
}

func (s *MemoryStore) DeleteForPrincipal(_ context.Context, scope Scope, principalID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk := principalKey{scope: scope, id: principalID}
	for key := range s.index[pk] {
		delete(s.m, key)
	}
	delete(s.index, pk)
	return nil
}

// Len reports live entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
