package service

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/mansoorceksport/coachmatch/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// TrainerAssigner picks a trainer for a request; MatchingService implements it
type TrainerAssigner interface {
	AssignTrainer(ctx context.Context, req *domain.AssignmentRequest) (*domain.AssignmentResult, error)
}

// BookingService turns a successful auto-assignment into a persisted session
type BookingService struct {
	assigner       TrainerAssigner
	assignmentRepo domain.TrainerAssignmentRepository
	logger         *zap.Logger

	// Serializes the conflict check and insert per trainer within this process
	locks sync.Map
}

func NewBookingService(
	assigner TrainerAssigner,
	assignmentRepo domain.TrainerAssignmentRepository,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		assigner:       assigner,
		assignmentRepo: assignmentRepo,
		logger:         logger,
	}
}

// Book auto-assigns a trainer and stores the session.
// The engine result is returned alongside ErrNoTrainerAvailable so callers can show the alternatives.
func (s *BookingService) Book(ctx context.Context, req *domain.AssignmentRequest) (*domain.TrainerAssignment, *domain.AssignmentResult, error) {
	result, err := s.assigner.AssignTrainer(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if !result.Success {
		return nil, result, fmt.Errorf("%w: %s", domain.ErrNoTrainerAvailable, result.Error)
	}

	trainer := result.Trainer
	mu := s.lockFor(trainer.ID)
	mu.Lock()
	defer mu.Unlock()

	// The roster snapshot may be stale by now
	taken, err := s.assignmentRepo.HasConflict(ctx, trainer.ID, req.ScheduledAt, req.End())
	if err != nil {
		return nil, result, fmt.Errorf("failed to check trainer schedule: %w", err)
	}
	if taken {
		s.logger.Warn("slot taken between matching and booking",
			zap.String("trainer_id", trainer.ID),
			zap.Time("scheduled_at", req.ScheduledAt),
		)
		return nil, result, domain.ErrSlotTaken
	}

	assignment := &domain.TrainerAssignment{
		ClientID:        ulid.Make().String(),
		TenantID:        trainer.TenantID,
		BranchID:        req.BranchID,
		TrainerID:       trainer.ID,
		MemberID:        req.MemberID,
		Specialty:       domain.NormalizeSpecialty(req.PreferredSpecialty),
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Status:          domain.AssignmentStatusScheduled,
		Amount:          sessionAmount(trainer.HourlyRate, req.DurationMinutes),
	}

	if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		return nil, result, fmt.Errorf("failed to create assignment: %w", err)
	}

	s.logger.Info("session booked",
		zap.String("assignment_id", assignment.ID),
		zap.String("client_id", assignment.ClientID),
		zap.String("trainer_id", trainer.ID),
		zap.String("member_id", req.MemberID),
	)
	return assignment, result, nil
}

// UpdateStatus moves a scheduled session to its next state. Finished sessions are final.
// Sessions outside the caller's tenant or branches are forbidden.
func (s *BookingService) UpdateStatus(ctx context.Context, scope domain.AccessScope, id string, status domain.AssignmentStatus) (*domain.TrainerAssignment, error) {
	if !status.Valid() || status == domain.AssignmentStatusScheduled {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	assignment, err := s.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(assignment.TenantID, assignment.BranchID) {
		return nil, domain.ErrForbidden
	}
	if !assignment.BlocksSlot() {
		return nil, fmt.Errorf("%w: session is already %s", domain.ErrInvalidStatus, assignment.Status)
	}

	if err := s.assignmentRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	assignment.Status = status

	s.logger.Info("session status updated",
		zap.String("assignment_id", id),
		zap.String("status", string(status)),
	)
	return assignment, nil
}

func (s *BookingService) lockFor(trainerID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(trainerID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// sessionAmount prices a session pro rata, rounded to cents
func sessionAmount(hourlyRate float64, minutes int) float64 {
	return math.Round(hourlyRate*float64(minutes)/60*100) / 100
}
