package evaluation

import (
	"context"
	"sync"

	"drive-eval/backend/app/models"
)

// Store keeps one session per owner between requests.
type Store interface {
	// Load returns the owner's session, or a new idle session.
	Load(ctx context.Context, owner string) (*Session, error)
	Save(ctx context.Context, owner string, s *Session) error
	Delete(ctx context.Context, owner string) error
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Load(_ context.Context, owner string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[models.UsernameKey(owner)]; ok {
		return s.clone(), nil
	}
	return New(), nil
}

func (m *MemoryStore) Save(_ context.Context, owner string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[models.UsernameKey(owner)] = s.clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, models.UsernameKey(owner))
	return nil
}
