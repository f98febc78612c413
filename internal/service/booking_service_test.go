package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mansoorceksport/coachmatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stubAssigner always picks the same trainer
type stubAssigner struct {
	trainer *domain.TrainerProfile
	err     error
}

func (s *stubAssigner) AssignTrainer(_ context.Context, _ *domain.AssignmentRequest) (*domain.AssignmentResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.AssignmentResult{Success: true, Trainer: s.trainer, Confidence: 0.8}, nil
}

func TestBookingService_Book(t *testing.T) {
	f := newFixture(t, yogaTrainer("A", 40, 4.8))
	booking := NewBookingService(f.matching, f.assignments, zaptest.NewLogger(t))
	ctx := context.Background()

	req := request(slotAt(9, 0), 45, maxBudget(50))
	req.PreferredSpecialty = "  Yoga "
	assignment, result, err := booking.Book(ctx, req)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, "a1", assignment.ID)
	assert.Len(t, assignment.ClientID, 26)
	assert.Equal(t, "A", assignment.TrainerID)
	assert.Equal(t, tenantID, assignment.TenantID)
	assert.Equal(t, "yoga", assignment.Specialty)
	assert.Equal(t, domain.AssignmentStatusScheduled, assignment.Status)
	assert.InDelta(t, 30.0, assignment.Amount, 1e-9)

	// The only trainer is now busy
	_, result, err = booking.Book(ctx, request(slotAt(9, 30), 30, nil))
	assert.ErrorIs(t, err, domain.ErrNoTrainerAvailable)
	require.NotNil(t, result)
	assert.Equal(t, domain.RelaxedTimeSlot, result.Relaxed)
	assert.Equal(t, 1, f.assignments.count())
}

func TestBookingService_SlotTakenAfterMatching(t *testing.T) {
	repo := &fakeAssignmentRepo{}
	require.NoError(t, repo.Create(context.Background(), &domain.TrainerAssignment{
		TrainerID: "A", ScheduledAt: slotAt(9, 0), DurationMinutes: 60, Status: domain.AssignmentStatusRescheduled,
	}))
	booking := NewBookingService(&stubAssigner{trainer: yogaTrainer("A", 40, 4.8)}, repo, zaptest.NewLogger(t))

	_, result, err := booking.Book(context.Background(), request(slotAt(9, 30), 60, nil))
	assert.ErrorIs(t, err, domain.ErrSlotTaken)
	assert.NotNil(t, result)
	assert.Equal(t, 1, repo.count())
}

func TestBookingService_AssignerError(t *testing.T) {
	boom := errors.New("roster unavailable")
	booking := NewBookingService(&stubAssigner{err: boom}, &fakeAssignmentRepo{}, zaptest.NewLogger(t))

	_, result, err := booking.Book(context.Background(), request(slotAt(9, 0), 60, nil))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, result)
}

func TestBookingService_ConcurrentBookingsOfOneSlot(t *testing.T) {
	repo := &fakeAssignmentRepo{}
	booking := NewBookingService(&stubAssigner{trainer: yogaTrainer("A", 40, 4.8)}, repo, zaptest.NewLogger(t))

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		taken     atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := booking.Book(context.Background(), request(slotAt(9, 0), 60, nil))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrSlotTaken):
				taken.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(7), taken.Load())
	assert.Equal(t, 1, repo.count())
}

func TestBookingService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	newBooking := func(t *testing.T) (*BookingService, *fakeAssignmentRepo) {
		repo := &fakeAssignmentRepo{}
		require.NoError(t, repo.Create(ctx, &domain.TrainerAssignment{
			TenantID: tenantID, BranchID: branchID, TrainerID: "A", ScheduledAt: slotAt(9, 0), DurationMinutes: 60,
			Status: domain.AssignmentStatusScheduled,
		}))
		return NewBookingService(&stubAssigner{}, repo, zaptest.NewLogger(t)), repo
	}
	scope := domain.AccessScope{TenantID: tenantID}
	branchOnly := func(allowed string) domain.AccessScope {
		return domain.AccessScope{
			TenantID:        tenantID,
			CanAccessBranch: func(id string) bool { return id == allowed },
		}
	}

	t.Run("completes a scheduled session", func(t *testing.T) {
		booking, repo := newBooking(t)
		got, err := booking.UpdateStatus(ctx, scope, "a1", domain.AssignmentStatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, domain.AssignmentStatusCompleted, got.Status)

		stored, err := repo.GetByID(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, domain.AssignmentStatusCompleted, stored.Status)
	})

	t.Run("finished sessions are final", func(t *testing.T) {
		booking, _ := newBooking(t)
		_, err := booking.UpdateStatus(ctx, scope, "a1", domain.AssignmentStatusCancelled)
		require.NoError(t, err)
		_, err = booking.UpdateStatus(ctx, scope, "a1", domain.AssignmentStatusCompleted)
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})

	t.Run("rescheduled sessions can still finish", func(t *testing.T) {
		booking, _ := newBooking(t)
		_, err := booking.UpdateStatus(ctx, scope, "a1", domain.AssignmentStatusRescheduled)
		require.NoError(t, err)
		got, err := booking.UpdateStatus(ctx, scope, "a1", domain.AssignmentStatusNoShow)
		require.NoError(t, err)
		assert.Equal(t, domain.AssignmentStatusNoShow, got.Status)
	})

	tests := []struct {
		name   string
		scope  domain.AccessScope
		id     string
		status domain.AssignmentStatus
		want   error
	}{
		{"unknown status", scope, "a1", "paused", domain.ErrInvalidStatus},
		{"back to scheduled", scope, "a1", domain.AssignmentStatusScheduled, domain.ErrInvalidStatus},
		{"other tenant", domain.AccessScope{TenantID: "tenant-2"}, "a1", domain.AssignmentStatusCompleted, domain.ErrForbidden},
		{"other branch", branchOnly("branch-2"), "a1", domain.AssignmentStatusNoShow, domain.ErrForbidden},
		{"missing session", scope, "a9", domain.AssignmentStatusCompleted, domain.ErrAssignmentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking, _ := newBooking(t)
			_, err := booking.UpdateStatus(ctx, tt.scope, tt.id, tt.status)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("a forbidden branch leaves the session untouched", func(t *testing.T) {
		booking, repo := newBooking(t)
		_, err := booking.UpdateStatus(ctx, branchOnly("branch-2"), "a1", domain.AssignmentStatusNoShow)
		require.ErrorIs(t, err, domain.ErrForbidden)

		stored, err := repo.GetByID(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, domain.AssignmentStatusScheduled, stored.Status)

		got, err := booking.UpdateStatus(ctx, branchOnly(branchID), "a1", domain.AssignmentStatusNoShow)
		require.NoError(t, err)
		assert.Equal(t, domain.AssignmentStatusNoShow, got.Status)
	})
}

func TestSessionAmount(t *testing.T) {
	assert.InDelta(t, 30.0, sessionAmount(40, 45), 1e-9)
	assert.InDelta(t, 33.33, sessionAmount(40, 50), 1e-9)
	assert.Zero(t, sessionAmount(0, 60))
}
