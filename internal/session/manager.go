package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultIdleTTL is how long a session lives without requests
	DefaultIdleTTL = 30 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = 30 * time.Second

	maxIDLength = 64
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrInvalidID     = errors.New("invalid session id")
)

// Manager keeps the live sessions and expires idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     Deps
	idleTTL  time.Duration
	logger   *zap.Logger

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

// NewManager creates a manager and starts its cleanup goroutine.
func NewManager(deps Deps, idleTTL time.Duration) *Manager {
	return newManager(deps, idleTTL, CleanupInterval)
}

func newManager(deps Deps, idleTTL, cleanupInterval time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	m := &Manager{
		sessions:    make(map[string]*Session),
		deps:        deps,
		idleTTL:     idleTTL,
		logger:      deps.Logger.Named("session"),
		stopCleanup: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop(cleanupInterval)

	return m
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.expireIdle(time.Now())
		case <-m.stopCleanup:
			return
		}
	}
}

// expireIdle drops sessions idle for longer than the TTL. Their saved carts
// stay in the persistence slot.
func (m *Manager) expireIdle(now time.Time) int {
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince(now) > m.idleTTL {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
		m.logger.Info("session expired", zap.String("session_id", s.ID))
	}
	return len(expired)
}

// Get returns the live session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, starting one when none is live. An
// empty id creates a session with a fresh id.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if !validID(id) {
		return nil, ErrInvalidID
	}

	if s, ok := m.Get(id); ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := newSession(id, m.deps)
	m.sessions[id] = s
	m.logger.Debug("session started", zap.String("session_id", id))
	return s, nil
}

// validID accepts ids that are safe to embed in storage keys.
func validID(id string) bool {
	if len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops the background cleanup and every session loop.
func (m *Manager) Close() error {
	close(m.stopCleanup)
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	return nil
}

// Shutdown is Close bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
