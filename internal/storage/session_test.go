package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira_code_agent/internal/core"
	"jira_code_agent/pkg"
)

var _ core.SessionStore = (*MemorySessionStore)(nil)

func TestMemorySessionStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	s, err := store.Create(ctx, "ABC-1", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, pkg.StateFetchingItem, s.State)
	assert.Equal(t, 1, s.IterationCount)
	assert.Equal(t, 5, s.MaxIterations)

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	// snapshots are independent of the stored record
	got.Artifacts = append(got.Artifacts, pkg.NewArtifact("a.ts", "x", pkg.KindSource, "typescript"))
	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Artifacts)
}

func TestMemorySessionStore_CreateValidation(t *testing.T) {
	store := NewMemorySessionStore()

	_, err := store.Create(context.Background(), "", 5)
	assert.ErrorIs(t, err, pkg.ErrValidation)

	_, err = store.Create(context.Background(), "ABC-1", 0)
	assert.ErrorIs(t, err, pkg.ErrValidation)
	assert.Equal(t, 0, store.Count())
}

func TestMemorySessionStore_UniqueIDs(t *testing.T) {
	store := NewMemorySessionStore()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, err := store.Create(context.Background(), "ABC-1", 1)
		require.NoError(t, err)
		require.False(t, seen[s.ID])
		seen[s.ID] = true
	}
}

func TestMemorySessionStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	s, err := store.Create(ctx, "ABC-1", 2)
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, s.Transition(pkg.StateAnalyzingRequirements))
	require.NoError(t, store.Update(ctx, s))
	assert.Equal(t, base.Add(time.Minute), s.UpdatedAt)

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, pkg.StateAnalyzingRequirements, got.State)
	assert.Equal(t, base, got.CreatedAt)
	assert.Equal(t, base.Add(time.Minute), got.UpdatedAt)
}

func TestMemorySessionStore_UpdateRejectsIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	s, err := store.Create(ctx, "ABC-1", 2)
	require.NoError(t, err)

	s.State = pkg.StateCompleted
	assert.ErrorIs(t, store.Update(ctx, s), pkg.ErrInvalidState)

	s.State = pkg.StateFailed
	require.NoError(t, store.Update(ctx, s))

	// terminal sessions are immutable
	s.Errors = append(s.Errors, "late write")
	assert.ErrorIs(t, store.Update(ctx, s), pkg.ErrInvalidState)
}

func TestMemorySessionStore_UpdateUnknown(t *testing.T) {
	err := NewMemorySessionStore().Update(context.Background(), &pkg.Session{ID: "missing"})
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestMemorySessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	s, err := store.Create(ctx, "ABC-1", 1)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, s.ID), pkg.ErrNotFound)
}

func TestMemorySessionStore_DeleteWaitsForLock(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	s, err := store.Create(ctx, "ABC-1", 1)
	require.NoError(t, err)

	unlock, err := store.Lock(ctx, s.ID)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, store.Delete(short, s.ID), context.DeadlineExceeded)

	unlock()
	unlock() // idempotent
	require.NoError(t, store.Delete(ctx, s.ID))
}

func TestMemorySessionStore_LockIsPerSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	a, err := store.Create(ctx, "A-1", 1)
	require.NoError(t, err)
	b, err := store.Create(ctx, "B-1", 1)
	require.NoError(t, err)

	unlockA, err := store.Lock(ctx, a.ID)
	require.NoError(t, err)
	defer unlockA()

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	unlockB, err := store.Lock(short, b.ID)
	require.NoError(t, err, "locking a different session must not block")
	unlockB()

	_, err = store.Lock(short, a.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemorySessionStore_LockSerializesUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	s, err := store.Create(ctx, "ABC-1", 1)
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := store.Lock(ctx, s.ID)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			current, err := store.Get(ctx, s.ID)
			if !assert.NoError(t, err) {
				return
			}
			current.TokensUsed++
			assert.NoError(t, store.Update(ctx, current))
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, got.TokensUsed)
}

func TestMemorySessionStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	completed, _ := store.Create(ctx, "A-1", 1)
	failed, _ := store.Create(ctx, "B-1", 1)
	active, _ := store.Create(ctx, "C-1", 1)

	finish := func(s *pkg.Session, states ...pkg.WorkflowState) {
		for _, st := range states {
			require.NoError(t, s.Transition(st))
			require.NoError(t, store.Update(ctx, s))
		}
	}
	finish(completed, pkg.StateAnalyzingRequirements, pkg.StateGeneratingArtifacts, pkg.StateAwaitingApproval, pkg.StateCompleted)
	finish(failed, pkg.StateFailed)

	store.now = func() time.Time { return base.Add(48 * time.Hour) }

	removed, err := store.Sweep(ctx, 1<<62)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	removed, err = store.Sweep(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	removed, err = store.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Get(ctx, active.ID)
	assert.NoError(t, err, "non-terminal sessions are never swept")
	assert.Equal(t, 1, store.Count())

	_, err = store.Sweep(ctx, -time.Second)
	assert.ErrorIs(t, err, pkg.ErrValidation)
}

func TestMemorySessionStore_SweepSkipsLockedSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	s, _ := store.Create(ctx, "A-1", 1)
	require.NoError(t, s.Transition(pkg.StateFailed))
	require.NoError(t, store.Update(ctx, s))

	unlock, err := store.Lock(ctx, s.ID)
	require.NoError(t, err)

	removed, err := store.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	unlock()
	removed, err = store.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestMemorySessionStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"A-1", "B-1", "C-1"} {
		offset := time.Duration(i) * time.Second
		store.now = func() time.Time { return base.Add(offset) }
		_, err := store.Create(ctx, key, 1)
		require.NoError(t, err)
	}

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "A-1", sessions[0].ItemKey)
	assert.Equal(t, "C-1", sessions[2].ItemKey)
}
