package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mansoorceksport/coachmatch/internal/domain"
	"github.com/mansoorceksport/coachmatch/internal/matching"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/mansoorceksport/coachmatch/internal/service"

// MatchingService feeds the auto-assignment engine with the branch roster and assignment history
type MatchingService struct {
	engine         *matching.Engine
	trainerRepo    domain.TrainerRepository
	assignmentRepo domain.TrainerAssignmentRepository
	branchRepo     domain.BranchRepository
	logger         *zap.Logger
	now            func() time.Time

	tracer     trace.Tracer
	decisions  metric.Int64Counter
	confidence metric.Float64Histogram
}

func NewMatchingService(
	engine *matching.Engine,
	trainerRepo domain.TrainerRepository,
	assignmentRepo domain.TrainerAssignmentRepository,
	branchRepo domain.BranchRepository,
	logger *zap.Logger,
) *MatchingService {
	meter := otel.Meter(instrumentationName)

	decisions, err := meter.Int64Counter("coachmatch.assignments.decisions",
		metric.WithDescription("Auto-assignment decisions by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create decisions counter", zap.Error(err))
	}
	confidence, err := meter.Float64Histogram("coachmatch.assignments.confidence",
		metric.WithDescription("Confidence of successful auto-assignments"),
	)
	if err != nil {
		logger.Warn("failed to create confidence histogram", zap.Error(err))
	}

	return &MatchingService{
		engine:         engine,
		trainerRepo:    trainerRepo,
		assignmentRepo: assignmentRepo,
		branchRepo:     branchRepo,
		logger:         logger,
		now:            time.Now,
		tracer:         otel.Tracer(instrumentationName),
		decisions:      decisions,
		confidence:     confidence,
	}
}

// AssignTrainer runs the engine for a session request. A result with Success=false is not an error.
func (s *MatchingService) AssignTrainer(ctx context.Context, req *domain.AssignmentRequest) (*domain.AssignmentResult, error) {
	ctx, span := s.tracer.Start(ctx, "matching.AssignTrainer")
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("branch.id", req.BranchID),
		attribute.String("member.id", req.MemberID),
		attribute.String("request.specialty", req.PreferredSpecialty),
	)

	local, trainers, assignments, err := s.load(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result, err := s.engine.AssignTrainer(local, trainers, assignments)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.record(ctx, span, local, result, len(trainers))
	return result, nil
}

// Recommend ranks the branch roster for browsing. Schedule conflicts are ignored.
func (s *MatchingService) Recommend(ctx context.Context, req *domain.AssignmentRequest) ([]domain.TrainerMatch, error) {
	ctx, span := s.tracer.Start(ctx, "matching.Recommend")
	defer span.End()

	if err := req.ValidateForBrowse(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("branch.id", req.BranchID))

	local, trainers, assignments, err := s.load(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	matches, err := s.engine.GetRecommendations(local, trainers, assignments)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("recommendations.count", len(matches)))
	s.logger.Debug("recommendations computed",
		zap.String("branch_id", req.BranchID),
		zap.Int("roster_size", len(trainers)),
		zap.Int("count", len(matches)),
	)
	return matches, nil
}

// TrainerUtilization reports load and reliability of one trainer over [from, to).
// Session counts cover the same period.
func (s *MatchingService) TrainerUtilization(ctx context.Context, tenantID, branchID, trainerID string, from, to time.Time) (domain.UtilizationMetric, error) {
	if !to.After(from) {
		return domain.UtilizationMetric{}, fmt.Errorf("%w: period end must be after its start", domain.ErrInvalidRequest)
	}

	trainer, err := s.trainerRepo.GetByID(ctx, trainerID)
	if err != nil {
		return domain.UtilizationMetric{}, err
	}
	if trainer.BranchID != branchID || (tenantID != "" && trainer.TenantID != tenantID) {
		return domain.UtilizationMetric{}, domain.ErrBranchMismatch
	}

	assignments, err := s.assignmentRepo.GetByTrainer(ctx, trainerID, from, to)
	if err != nil {
		return domain.UtilizationMetric{}, fmt.Errorf("failed to load assignments: %w", err)
	}

	period := matching.Window{Start: from, End: to}
	return matching.CalculateUtilization(trainer, assignments, period, period, s.engine.UtilizationConfig()), nil
}

// CurrentWeek returns the utilization window containing now, in the branch's timezone
func (s *MatchingService) CurrentWeek(ctx context.Context, branchID string) (matching.Window, error) {
	branch, err := s.branchRepo.GetByID(ctx, branchID)
	if err != nil {
		return matching.Window{}, err
	}
	return matching.WeekWindow(s.now().In(branch.Location()), s.engine.UtilizationConfig().WindowDays), nil
}

// load resolves the branch, moves the request into its timezone and fetches roster and history concurrently
func (s *MatchingService) load(ctx context.Context, req *domain.AssignmentRequest) (
	*domain.AssignmentRequest, []*domain.TrainerProfile, []*domain.TrainerAssignment, error,
) {
	branch, err := s.branchRepo.GetByID(ctx, req.BranchID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("branch %s: %w", req.BranchID, domain.ErrNotFound)
		}
		return nil, nil, nil, fmt.Errorf("failed to load branch: %w", err)
	}
	if req.TenantID != "" && branch.TenantID != req.TenantID {
		return nil, nil, nil, domain.ErrForbidden
	}

	local := *req
	if !local.ScheduledAt.IsZero() {
		local.ScheduledAt = local.ScheduledAt.In(branch.Location())
	}

	var (
		trainers    []*domain.TrainerProfile
		assignments []*domain.TrainerAssignment
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		roster, err := s.trainerRepo.GetByBranch(gCtx, local.TenantID, local.BranchID)
		if err != nil {
			return fmt.Errorf("failed to load trainers: %w", err)
		}
		trainers = roster
		return nil
	})

	// Without a slot the engine neither checks conflicts nor measures load
	if !local.ScheduledAt.IsZero() {
		g.Go(func() error {
			from, to := s.historyRange(&local)
			history, err := s.assignmentRepo.GetByBranch(gCtx, local.BranchID, from, to)
			if err != nil {
				return fmt.Errorf("failed to load assignments: %w", err)
			}
			assignments = history
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return &local, trainers, assignments, nil
}

// historyRange covers the utilization week, the reliability lookback and the requested slot.
// Sessions are fetched by start time, so the range opens one day early to catch sessions running into the slot.
func (s *MatchingService) historyRange(req *domain.AssignmentRequest) (time.Time, time.Time) {
	ucfg := s.engine.UtilizationConfig()
	week := matching.WeekWindow(req.ScheduledAt, ucfg.WindowDays)
	history := matching.HistoryWindow(req.ScheduledAt, ucfg.HistoryDays)

	from := week.Start
	if history.Start.Before(from) {
		from = history.Start
	}
	if slotFrom := req.ScheduledAt.Add(-24 * time.Hour); slotFrom.Before(from) {
		from = slotFrom
	}

	to := week.End
	if req.End().After(to) {
		to = req.End()
	}
	return from, to
}

func (s *MatchingService) record(ctx context.Context, span trace.Span, req *domain.AssignmentRequest, result *domain.AssignmentResult, rosterSize int) {
	outcome := "assigned"
	if !result.Success {
		outcome = "unassigned"
	}

	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
		attribute.String("relaxed", result.Relaxed),
	}
	if s.decisions != nil {
		s.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.SetAttributes(append(attrs,
		attribute.Float64("assignment.confidence", result.Confidence),
		attribute.Int("roster.size", rosterSize),
	)...)

	if !result.Success {
		s.logger.Info("no trainer assigned",
			zap.String("branch_id", req.BranchID),
			zap.String("member_id", req.MemberID),
			zap.String("relaxed", result.Relaxed),
			zap.Any("rejections", result.Rejections),
			zap.String("error", result.Error),
		)
		return
	}

	if s.confidence != nil {
		s.confidence.Record(ctx, result.Confidence)
	}
	span.SetAttributes(attribute.String("trainer.id", result.Trainer.ID))
	s.logger.Info("trainer assigned",
		zap.String("branch_id", req.BranchID),
		zap.String("member_id", req.MemberID),
		zap.String("trainer_id", result.Trainer.ID),
		zap.Float64("confidence", result.Confidence),
		zap.String("reason", result.Reason),
		zap.Int("alternatives", len(result.Alternatives)),
	)
}
