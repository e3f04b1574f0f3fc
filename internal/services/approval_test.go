package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tether/internal/clock"
	"tether/internal/domain"
)

func newApprovalFixture(t *testing.T) (*ApprovalService, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewApprovalService(clk, 10*time.Minute), clk
}

func TestApprovalService_RequestStartsPending(t *testing.T) {
	service, clk := newApprovalFixture(t)

	request := service.Request(domain.ActionDescriptor{
		Tool:   "write_file",
		Target: "main.go",
		Reason: "apply fix",
	})

	assert.NotEmpty(t, request.ID)
	assert.Equal(t, domain.ApprovalPending, request.State)
	assert.Equal(t, clk.Now().UTC(), request.CreatedAt)
	assert.True(t, request.ResolvedAt.IsZero())
}

func TestApprovalService_ApproveResolvesRequest(t *testing.T) {
	service, _ := newApprovalFixture(t)
	request := service.Request(domain.ActionDescriptor{Tool: "run_command"})

	resolved, err := service.Approve(request.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, resolved.State)
	assert.False(t, resolved.ResolvedAt.IsZero())
}

func TestApprovalService_ApproveIsIdempotent(t *testing.T) {
	service, _ := newApprovalFixture(t)
	request := service.Request(domain.ActionDescriptor{Tool: "git_push"})

	first, err := service.Approve(request.ID)
	require.NoError(t, err)

	second, err := service.Approve(request.ID)
	require.NoError(t, err)
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.ResolvedAt, second.ResolvedAt)
}

func TestApprovalService_ApproveAfterRejectFails(t *testing.T) {
	service, _ := newApprovalFixture(t)
	request := service.Request(domain.ActionDescriptor{Tool: "delete_file"})

	_, err := service.Reject(request.ID)
	require.NoError(t, err)

	_, err = service.Approve(request.ID)
	require.Error(t, err)

	var transitionErr *domain.StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, string(domain.ApprovalRejected), transitionErr.From)
	assert.Equal(t, string(domain.ApprovalApproved), transitionErr.To)
}

func TestApprovalService_UnknownRequest(t *testing.T) {
	service, _ := newApprovalFixture(t)

	_, err := service.Approve("does-not-exist")
	assert.ErrorIs(t, err, domain.ErrApprovalNotFound)

	_, err = service.Get("does-not-exist")
	assert.ErrorIs(t, err, domain.ErrApprovalNotFound)
}

func TestApprovalService_ApproveAllSnapshotsPending(t *testing.T) {
	service, _ := newApprovalFixture(t)
	first := service.Request(domain.ActionDescriptor{Tool: "write_file"})
	second := service.Request(domain.ActionDescriptor{Tool: "edit_file"})
	rejected := service.Request(domain.ActionDescriptor{Tool: "git_commit"})

	_, err := service.Reject(rejected.ID)
	require.NoError(t, err)

	approved := service.ApproveAll()

	require.Len(t, approved, 2)
	for _, request := range approved {
		assert.Equal(t, domain.ApprovalApproved, request.State)
	}

	got, err := service.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, got.State)

	got, err = service.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, got.State)

	got, err = service.Get(rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalRejected, got.State)
}

func TestApprovalService_CheckTimeouts(t *testing.T) {
	service, clk := newApprovalFixture(t)
	stale := service.Request(domain.ActionDescriptor{Tool: "run_command"})

	// Nothing expires before the threshold.
	clk.Advance(9 * time.Minute)
	assert.Empty(t, service.CheckTimeouts())

	fresh := service.Request(domain.ActionDescriptor{Tool: "write_file"})

	clk.Advance(2 * time.Minute)
	timedOut := service.CheckTimeouts()

	require.Len(t, timedOut, 1)
	assert.Equal(t, stale.ID, timedOut[0].ID)
	assert.Equal(t, domain.ApprovalTimedOut, timedOut[0].State)

	got, err := service.Get(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, got.State)
}

func TestApprovalService_TimedOutStaysTimedOut(t *testing.T) {
	service, clk := newApprovalFixture(t)
	request := service.Request(domain.ActionDescriptor{Tool: "git_push"})

	clk.Advance(11 * time.Minute)
	require.Len(t, service.CheckTimeouts(), 1)

	_, err := service.Approve(request.ID)
	require.Error(t, err)

	var transitionErr *domain.StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, string(domain.ApprovalTimedOut), transitionErr.From)
}

func TestApprovalService_AwaitUnblocksOnResolve(t *testing.T) {
	service, _ := newApprovalFixture(t)
	request := service.Request(domain.ActionDescriptor{Tool: "write_file"})

	results := make(chan domain.ApprovalState, 1)
	go func() {
		state, err := service.Await(context.Background(), request.ID)
		if err == nil {
			results <- state
		}
	}()

	_, err := service.Approve(request.ID)
	require.NoError(t, err)

	select {
	case state := <-results:
		assert.Equal(t, domain.ApprovalApproved, state)
	case <-time.After(2 * time.Second):
		t.Fatal("Await did not unblock after approval")
	}
}

func TestApprovalService_AwaitHonorsContext(t *testing.T) {
	service, _ := newApprovalFixture(t)
	request := service.Request(domain.ActionDescriptor{Tool: "write_file"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Await(ctx, request.ID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApprovalService_PendingSortsOldestFirst(t *testing.T) {
	service, _ := newApprovalFixture(t)
	first := service.Request(domain.ActionDescriptor{Tool: "write_file"})
	second := service.Request(domain.ActionDescriptor{Tool: "edit_file"})
	third := service.Request(domain.ActionDescriptor{Tool: "git_commit"})

	_, err := service.Approve(second.ID)
	require.NoError(t, err)

	pending := service.Pending()

	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, third.ID, pending[1].ID)
}
