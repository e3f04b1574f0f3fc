package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tether/internal/adapters/storage"
	"tether/internal/domain"
)

func newRecoveryFixture(t *testing.T) (*RecoveryService, *SessionService, string) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return NewRecoveryService(repo), NewSessionService(repo), t.TempDir()
}

func TestRecoveryService_PausesActiveSessions(t *testing.T) {
	recovery, sessions, projectDir := newRecoveryFixture(t)
	ctx := context.Background()

	// Simulates a crash: the session was left active in storage with
	// unsaved working context.
	crashed, err := sessions.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)
	_, err = sessions.Transition(ctx, crashed.ID, domain.StatusCreated, domain.StatusActive)
	require.NoError(t, err)
	_, err = sessions.UpdateContext(ctx, crashed.ID, map[string]any{
		"task": "mid-flight refactor",
	})
	require.NoError(t, err)

	recovered, err := recovery.Recover(ctx)

	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.Equal(t, crashed.ID, recovered[0].ID)
	assert.Equal(t, domain.StatusPaused, recovered[0].Status)
	assert.Contains(t, recovered[0].Context, domain.ContextKeyRecoveredAt)

	// Prior context survives recovery.
	assert.Equal(t, "mid-flight refactor", recovered[0].Context["task"])
}

func TestRecoveryService_LeavesOtherStatusesAlone(t *testing.T) {
	recovery, sessions, projectDir := newRecoveryFixture(t)
	ctx := context.Background()

	created, err := sessions.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)

	recovered, err := recovery.Recover(ctx)
	require.NoError(t, err)
	assert.Empty(t, recovered)

	got, err := sessions.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, got.Status)
	assert.NotContains(t, got.Context, domain.ContextKeyRecoveredAt)
}

func TestRecoveryService_SecondRunIsNoOp(t *testing.T) {
	recovery, sessions, projectDir := newRecoveryFixture(t)
	ctx := context.Background()

	session, err := sessions.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)
	_, err = sessions.Transition(ctx, session.ID, domain.StatusCreated, domain.StatusActive)
	require.NoError(t, err)

	first, err := recovery.Recover(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := recovery.Recover(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestRecoveryService_RecoveredSessionCanResume(t *testing.T) {
	recovery, sessions, projectDir := newRecoveryFixture(t)
	ctx := context.Background()

	session, err := sessions.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)
	_, err = sessions.Transition(ctx, session.ID, domain.StatusCreated, domain.StatusActive)
	require.NoError(t, err)

	_, err = recovery.Recover(ctx)
	require.NoError(t, err)

	resumed, err := sessions.Transition(ctx, session.ID, domain.StatusPaused, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, resumed.Status)
}
