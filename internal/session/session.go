// Package session provides bounded, expiring conversation sessions.
//
// A session holds a sliding window of recent turns plus a small context
// map (e.g. the collection a conversation is scoped to). Sessions expire
// after idling past the timeout and the store holds at most a fixed
// number of them, evicting the least recently active when full.
package session

import (
	"context"
	"errors"
	"time"
)

// Defaults matching typical conversational use.
const (
	DefaultWindow      = 20
	DefaultIdleTimeout = time.Hour
	DefaultMaxSessions = 100
)

// ErrSessionNotFound indicates the session does not exist or has
// expired. Expired sessions are indistinguishable from never-created
// ones.
var ErrSessionNotFound = errors.New("session not found")

// Turn is one conversational exchange entry.
type Turn struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Info is a session's metadata snapshot.
type Info struct {
	ID         string    `json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	// TurnCount counts every turn ever appended, including turns the
	// window has since discarded.
	TurnCount int               `json:"turn_count"`
	Context   map[string]string `json:"context,omitempty"`
}

// Stats reports store-level session counts.
type Stats struct {
	Active      int `json:"active"`
	MaxSessions int `json:"max_sessions"`
	Window      int `json:"window"`
	// Evicted counts sessions dropped to make room since the store was
	// created; Expired counts sessions removed for idling too long.
	Evicted int64 `json:"evicted"`
	Expired int64 `json:"expired"`
}

// Backend is the session storage contract. The in-memory implementation
// in this package is the only one today; the interface keeps a durable
// backend possible without touching callers.
type Backend interface {
	// Create starts a session with an optional initial context and
	// returns its ID.
	Create(ctx context.Context, sessionContext map[string]string) (string, error)
	// Append records a turn and refreshes the session's idle clock.
	// Turns beyond the window are discarded oldest-first.
	Append(ctx context.Context, id string, turn Turn) error
	// History returns the retained turns, oldest first. A positive limit
	// returns only the most recent limit turns; zero or negative returns
	// everything retained.
	History(ctx context.Context, id string, limit int) ([]Turn, error)
	// Get returns the session's metadata snapshot.
	Get(ctx context.Context, id string) (*Info, error)
	// UpdateContext merges entries into the session context; an empty
	// value deletes its key.
	UpdateContext(ctx context.Context, id string, entries map[string]string) error
	// Delete removes a session. Deleting an absent session is a no-op.
	Delete(ctx context.Context, id string) error
	// ExpireIdle removes every session idle past the timeout and
	// returns how many it removed.
	ExpireIdle(ctx context.Context) (int, error)
	// Stats reports current counts.
	Stats(ctx context.Context) (Stats, error)
}
