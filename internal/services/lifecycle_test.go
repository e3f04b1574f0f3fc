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

func newSessionFixture(t *testing.T) (*SessionService, string) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return NewSessionService(repo), t.TempDir()
}

func TestSessionService_CreateStartsCreated(t *testing.T) {
	service, projectDir := newSessionFixture(t)

	session, err := service.Create(context.Background(), projectDir, "thread-1")

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, domain.StatusCreated, session.Status)
	assert.Equal(t, projectDir, session.ProjectPath)
	assert.Contains(t, session.Context, domain.ContextKeyUpdatedAt)
}

func TestSessionService_CreateRejectsMissingDirectory(t *testing.T) {
	service, _ := newSessionFixture(t)

	_, err := service.Create(context.Background(), "/does/not/exist", "thread-1")

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "project_path", validationErr.Field)
}

func TestSessionService_CreateRejectsEmptyThread(t *testing.T) {
	service, projectDir := newSessionFixture(t)

	_, err := service.Create(context.Background(), projectDir, "")

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "thread_id", validationErr.Field)
}

func TestSessionService_TransitionWalksLifecycle(t *testing.T) {
	service, projectDir := newSessionFixture(t)
	ctx := context.Background()

	session, err := service.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)

	session, err = service.Transition(ctx, session.ID, domain.StatusCreated, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, session.Status)

	session, err = service.Transition(ctx, session.ID, domain.StatusActive, domain.StatusPaused)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, session.Status)

	session, err = service.Transition(ctx, session.ID, domain.StatusPaused, domain.StatusTerminated)
	require.NoError(t, err)
	assert.True(t, session.Terminated())
}

func TestSessionService_TransitionRejectsIllegalEdge(t *testing.T) {
	service, projectDir := newSessionFixture(t)
	ctx := context.Background()

	session, err := service.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)

	// created -> terminated is not in the graph, rejected before any
	// write happens.
	_, err = service.Transition(ctx, session.ID, domain.StatusCreated, domain.StatusTerminated)
	var transitionErr *domain.StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.False(t, transitionErr.Stale)

	got, err := service.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, got.Status)
}

func TestSessionService_TransitionRejectsStaleExpectation(t *testing.T) {
	service, projectDir := newSessionFixture(t)
	ctx := context.Background()

	session, err := service.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)

	_, err = service.Transition(ctx, session.ID, domain.StatusCreated, domain.StatusActive)
	require.NoError(t, err)

	// A second caller still believing the session is created loses.
	_, err = service.Transition(ctx, session.ID, domain.StatusCreated, domain.StatusActive)
	var transitionErr *domain.StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.True(t, transitionErr.Stale)
}

func TestSessionService_TerminatedIsImmutable(t *testing.T) {
	service, projectDir := newSessionFixture(t)
	ctx := context.Background()

	session, err := service.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)

	_, err = service.Transition(ctx, session.ID, domain.StatusCreated, domain.StatusActive)
	require.NoError(t, err)
	_, err = service.Transition(ctx, session.ID, domain.StatusActive, domain.StatusTerminated)
	require.NoError(t, err)

	_, err = service.Transition(ctx, session.ID, domain.StatusTerminated, domain.StatusActive)
	require.Error(t, err)
}

func TestSessionService_UpdateContextStampsTimestamp(t *testing.T) {
	service, projectDir := newSessionFixture(t)
	ctx := context.Background()

	session, err := service.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)

	updated, err := service.UpdateContext(ctx, session.ID, map[string]any{
		"task": "wire the gateway",
	})
	require.NoError(t, err)
	assert.Equal(t, "wire the gateway", updated.Context["task"])
	assert.Contains(t, updated.Context, domain.ContextKeyUpdatedAt)
}

func TestSessionService_RecordActivityAppends(t *testing.T) {
	service, projectDir := newSessionFixture(t)
	ctx := context.Background()

	session, err := service.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)

	_, err = service.RecordActivity(ctx, session.ID, "edited main.go")
	require.NoError(t, err)
	updated, err := service.RecordActivity(ctx, session.ID, "ran tests")
	require.NoError(t, err)

	activity, ok := updated.Context[domain.ContextKeyActivity].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"edited main.go", "ran tests"}, activity)
}

func TestSessionService_FindActiveByThread(t *testing.T) {
	service, projectDir := newSessionFixture(t)
	ctx := context.Background()

	session, err := service.Create(ctx, projectDir, "thread-1")
	require.NoError(t, err)

	found, err := service.FindActiveByThread(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)

	_, err = service.Transition(ctx, session.ID, domain.StatusCreated, domain.StatusActive)
	require.NoError(t, err)
	_, err = service.Transition(ctx, session.ID, domain.StatusActive, domain.StatusTerminated)
	require.NoError(t, err)

	_, err = service.FindActiveByThread(ctx, "thread-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
