package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"jira_code_agent/pkg"
)

// MemorySessionStore is the in-process session repository. The map lock is
// only held while swapping records; each session additionally carries an
// operation lock that callers hold across collaborator calls.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

type sessionEntry struct {
	session *pkg.Session
	lock    chan struct{}
}

// NewMemorySessionStore creates an empty in-memory store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Create registers a new session in the first workflow state
func (m *MemorySessionStore) Create(ctx context.Context, itemKey string, maxIterations int) (*pkg.Session, error) {
	if itemKey == "" {
		return nil, pkg.NewError(pkg.KindValidation, "item key cannot be empty")
	}
	if maxIterations < 1 {
		return nil, pkg.NewError(pkg.KindValidation, "max iterations must be at least 1, got %d", maxIterations)
	}

	now := m.now()
	session := &pkg.Session{
		ID:              uuid.NewString(),
		ItemKey:         itemKey,
		State:           pkg.StateFetchingItem,
		IterationCount:  1,
		MaxIterations:   maxIterations,
		Artifacts:       []pkg.Artifact{},
		FeedbackHistory: []pkg.Feedback{},
		Errors:          []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = &sessionEntry{
		session: session.Clone(),
		lock:    make(chan struct{}, 1),
	}
	m.mu.Unlock()

	return session, nil
}

// Get returns a snapshot of the session
func (m *MemorySessionStore) Get(ctx context.Context, id string) (*pkg.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, pkg.NewError(pkg.KindNotFound, "session not found: %s", id)
	}
	return entry.session.Clone(), nil
}

// Update replaces the stored record and stamps UpdatedAt on both copies
func (m *MemorySessionStore) Update(ctx context.Context, session *pkg.Session) error {
	if session == nil || session.ID == "" {
		return pkg.NewError(pkg.KindValidation, "session id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[session.ID]
	if !ok {
		return pkg.NewError(pkg.KindNotFound, "session not found: %s", session.ID)
	}
	stored := entry.session.State
	if stored.IsTerminal() {
		return pkg.NewError(pkg.KindInvalidState, "session %s is %s and can no longer change", session.ID, stored)
	}
	if session.State != stored && !stored.CanTransitionTo(session.State) {
		return pkg.NewError(pkg.KindInvalidState, "illegal transition %s -> %s for session %s", stored, session.State, session.ID)
	}

	session.UpdatedAt = m.now()
	entry.session = session.Clone()
	return nil
}

// Delete removes a session once no operation holds its lock
func (m *MemorySessionStore) Delete(ctx context.Context, id string) error {
	unlock, err := m.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// List returns snapshots ordered by creation time
func (m *MemorySessionStore) List(ctx context.Context) ([]*pkg.Session, error) {
	m.mu.RLock()
	sessions := make([]*pkg.Session, 0, len(m.sessions))
	for _, entry := range m.sessions {
		sessions = append(sessions, entry.session.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Sweep removes terminal sessions at least maxAge old. Sessions whose lock is
// held are skipped and picked up by a later sweep.
func (m *MemorySessionStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge < 0 {
		return 0, pkg.NewError(pkg.KindValidation, "max age cannot be negative")
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.sessions {
		if !entry.session.State.IsTerminal() || entry.session.CreatedAt.After(cutoff) {
			continue
		}
		select {
		case entry.lock <- struct{}{}:
			delete(m.sessions, id)
			<-entry.lock
			removed++
		default:
		}
	}
	return removed, nil
}

// Lock acquires the per-session operation lock, honoring ctx while waiting
func (m *MemorySessionStore) Lock(ctx context.Context, id string) (func(), error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, pkg.NewError(pkg.KindNotFound, "session not found: %s", id)
	}

	select {
	case entry.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.RLock()
	current, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || current != entry {
		<-entry.lock
		return nil, pkg.NewError(pkg.KindNotFound, "session not found: %s", id)
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-entry.lock })
	}, nil
}

// Count returns the number of tracked sessions
func (m *MemorySessionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
