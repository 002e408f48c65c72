package session

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// state is one live session's mutable record.
type state struct {
	info  Info
	turns []Turn
}

// Memory is the in-memory Backend. Safe for concurrent use; a single
// mutex serializes all session mutation, which is plenty for the
// bounded session counts this store is configured for.
type Memory struct {
	window      int
	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*state
	evicted  int64
	expired  int64
}

// Option configures a Memory store.
type Option func(*Memory)

// WithWindow sets how many turns a session retains.
func WithWindow(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.window = n
		}
	}
}

// WithIdleTimeout sets how long a session may idle before expiring.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Memory) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithMaxSessions sets the session capacity.
func WithMaxSessions(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// withClock replaces the time source; tests only.
func withClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an in-memory session store. logger may be nil.
func NewMemory(logger *slog.Logger, opts ...Option) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Memory{
		window:      DefaultWindow,
		idleTimeout: DefaultIdleTimeout,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		logger:      logger,
		sessions:    make(map[string]*state),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create implements Backend. When the store is full the least recently
// active session is evicted to make room.
func (m *Memory) Create(_ context.Context, sessionContext map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	if len(m.sessions) >= m.maxSessions {
		m.evictOldestLocked()
	}

	id := uuid.NewString()
	now := m.now()
	m.sessions[id] = &state{info: Info{
		ID:         id,
		CreatedAt:  now,
		LastActive: now,
		Context:    maps.Clone(sessionContext),
	}}
	m.logger.Debug("created session", "session_id", id, "active", len(m.sessions))
	return id, nil
}

// Append implements Backend.
func (m *Memory) Append(_ context.Context, id string, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.liveLocked(id)
	if !ok {
		return ErrSessionNotFound
	}

	if turn.At.IsZero() {
		turn.At = m.now()
	}
	st.turns = append(st.turns, turn)
	if len(st.turns) > m.window {
		st.turns = st.turns[len(st.turns)-m.window:]
	}
	// TurnCount counts every turn ever appended, not just the retained
	// window.
	st.info.TurnCount++
	st.info.LastActive = m.now()
	return nil
}

// History implements Backend.
func (m *Memory) History(_ context.Context, id string, limit int) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.liveLocked(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	turns := st.turns
	if limit > 0 && limit < len(turns) {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Get implements Backend.
func (m *Memory) Get(_ context.Context, id string) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.liveLocked(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	info := st.info
	info.Context = maps.Clone(st.info.Context)
	return &info, nil
}

// UpdateContext implements Backend.
func (m *Memory) UpdateContext(_ context.Context, id string, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.liveLocked(id)
	if !ok {
		return ErrSessionNotFound
	}

	if st.info.Context == nil {
		st.info.Context = make(map[string]string, len(entries))
	}
	for k, v := range entries {
		if v == "" {
			delete(st.info.Context, k)
			continue
		}
		st.info.Context[k] = v
	}
	st.info.LastActive = m.now()
	return nil
}

// Delete implements Backend.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// ExpireIdle implements Backend.
func (m *Memory) ExpireIdle(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(), nil
}

// Stats implements Backend.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	return Stats{
		Active:      len(m.sessions),
		MaxSessions: m.maxSessions,
		Window:      m.window,
		Evicted:     m.evicted,
		Expired:     m.expired,
	}, nil
}

// StartSweeper launches a goroutine that expires idle sessions every
// interval until ctx is done. Expiry is also applied lazily on access,
// so the sweeper only bounds memory held by fully abandoned sessions.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.idleTimeout / 2
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, _ := m.ExpireIdle(ctx); n > 0 {
					m.logger.Debug("expired idle sessions", "count", n)
				}
			}
		}
	}()
}

// liveLocked returns the session if present and not idle-expired,
// removing it when expired. Callers hold mu.
func (m *Memory) liveLocked(id string) (*state, bool) {
	st, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if m.now().Sub(st.info.LastActive) > m.idleTimeout {
		delete(m.sessions, id)
		m.expired++
		return nil, false
	}
	return st, true
}

// sweepLocked removes every idle-expired session. Callers hold mu.
func (m *Memory) sweepLocked() int {
	now := m.now()
	removed := 0
	for id, st := range m.sessions {
		if now.Sub(st.info.LastActive) > m.idleTimeout {
			delete(m.sessions, id)
			m.expired++
			removed++
		}
	}
	return removed
}

// evictOldestLocked removes the least recently active session. Callers
// hold mu.
func (m *Memory) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, st := range m.sessions {
		if oldestID == "" || st.info.LastActive.Before(oldest) {
			oldestID = id
			oldest = st.info.LastActive
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
		m.evicted++
		m.logger.Debug("evicted oldest session", "session_id", oldestID)
	}
}
