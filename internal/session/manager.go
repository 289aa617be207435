package session

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cutdeck/cutdeck-agent/internal/media"
)

var ErrNotFound = errors.New("session not found")

// Manager keeps the live sessions by id.
type Manager struct {
	resolver   media.Resolver
	prefetcher *media.Prefetcher
	opts       Options
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(resolver media.Resolver, prefetcher *media.Prefetcher, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		resolver:   resolver,
		prefetcher: prefetcher,
		opts:       opts,
		logger:     logger,
		sessions:   make(map[string]*Session),
	}
}

func (m *Manager) Create(title string) *Session {
	id := uuid.NewString()
	s := New(id, title, m.resolver, m.prefetcher, m.opts, m.logger)

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", id, "sessions", n)
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns the sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close tears down one session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return s.Close()
}

// CloseAll tears down every session and returns the joined release errors.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
