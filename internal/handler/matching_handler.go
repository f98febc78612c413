package handler

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/coachmatch/internal/domain"
	"github.com/mansoorceksport/coachmatch/internal/matching"
	"github.com/mansoorceksport/coachmatch/internal/middleware"
	"go.uber.org/zap"
)

// Matcher is the read side of trainer matching
type Matcher interface {
	AssignTrainer(ctx context.Context, req *domain.AssignmentRequest) (*domain.AssignmentResult, error)
	Recommend(ctx context.Context, req *domain.AssignmentRequest) ([]domain.TrainerMatch, error)
	TrainerUtilization(ctx context.Context, tenantID, branchID, trainerID string, from, to time.Time) (domain.UtilizationMetric, error)
	CurrentWeek(ctx context.Context, branchID string) (matching.Window, error)
}

// Booker persists assignments
type Booker interface {
	Book(ctx context.Context, req *domain.AssignmentRequest) (*domain.TrainerAssignment, *domain.AssignmentResult, error)
	UpdateStatus(ctx context.Context, scope domain.AccessScope, id string, status domain.AssignmentStatus) (*domain.TrainerAssignment, error)
}

type MatchingHandler struct {
	matcher  Matcher
	booker   Booker
	validate *validator.Validate
	logger   *zap.Logger
}

func NewMatchingHandler(matcher Matcher, booker Booker, logger *zap.Logger) *MatchingHandler {
	return &MatchingHandler{
		matcher:  matcher,
		booker:   booker,
		validate: validator.New(),
		logger:   logger,
	}
}

type assignmentPayload struct {
	MemberID           string    `json:"member_id" validate:"omitempty,max=64"`
	PreferredSpecialty string    `json:"preferred_specialty" validate:"omitempty,max=64"`
	ScheduledAt        time.Time `json:"scheduled_at"`
	DurationMinutes    int       `json:"duration_minutes" validate:"gt=0,lte=480"`
	MaxBudget          *float64  `json:"max_budget" validate:"omitempty,gte=0"`
}

type statusPayload struct {
	Status domain.AssignmentStatus `json:"status" validate:"required,oneof=completed cancelled no_show rescheduled"`
}

// AutoAssign POST /v1/branches/:branch_id/assignments/auto
func (h *MatchingHandler) AutoAssign(c *fiber.Ctx) error {
	req, err := h.parseAssignment(c)
	if err != nil {
		return h.respondError(c, err)
	}

	result, err := h.matcher.AssignTrainer(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}

	// A failed match is still a valid answer
	return c.JSON(result)
}

// Book POST /v1/branches/:branch_id/assignments
func (h *MatchingHandler) Book(c *fiber.Ctx) error {
	req, err := h.parseAssignment(c)
	if err != nil {
		return h.respondError(c, err)
	}

	assignment, result, err := h.booker.Book(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, domain.ErrNoTrainerAvailable) || errors.Is(err, domain.ErrSlotTaken) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  err.Error(),
				"result": result,
			})
		}
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"assignment": assignment,
		"result":     result,
	})
}

// Recommendations GET /v1/branches/:branch_id/recommendations
func (h *MatchingHandler) Recommendations(c *fiber.Ctx) error {
	branchID := c.Params("branch_id")
	if !middleware.CanAccessBranch(c, branchID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No access to this branch"})
	}

	req := &domain.AssignmentRequest{
		TenantID:           middleware.TenantID(c),
		BranchID:           branchID,
		MemberID:           middleware.UserID(c),
		PreferredSpecialty: c.Query("specialty"),
	}

	if raw := c.Query("max_budget"); raw != "" {
		budget, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(budget) || math.IsInf(budget, 0) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "max_budget must be a number"})
		}
		req.MaxBudget = &budget
	}
	if raw := c.Query("scheduled_at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_at must be RFC3339"})
		}
		req.ScheduledAt = at
		req.DurationMinutes = c.QueryInt("duration", 60)
	}

	matches, err := h.matcher.Recommend(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(matches)
}

// TrainerUtilization GET /v1/branches/:branch_id/trainers/:trainer_id/utilization
// from/to default to the current week of the branch.
func (h *MatchingHandler) TrainerUtilization(c *fiber.Ctx) error {
	branchID := c.Params("branch_id")
	if !middleware.CanAccessBranch(c, branchID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No access to this branch"})
	}

	fromRaw, toRaw := c.Query("from"), c.Query("to")
	var from, to time.Time
	if fromRaw == "" || toRaw == "" {
		week, err := h.matcher.CurrentWeek(c.UserContext(), branchID)
		if err != nil {
			return h.respondError(c, err)
		}
		from, to = week.Start, week.End
	}
	if fromRaw != "" {
		t, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be RFC3339"})
		}
		from = t
	}
	if toRaw != "" {
		t, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be RFC3339"})
		}
		to = t
	}

	metric, err := h.matcher.TrainerUtilization(c.UserContext(), middleware.TenantID(c), branchID, c.Params("trainer_id"), from, to)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(metric)
}

// UpdateStatus PATCH /v1/assignments/:id/status
func (h *MatchingHandler) UpdateStatus(c *fiber.Ctx) error {
	var payload statusPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(payload); err != nil {
		return h.respondError(c, err)
	}

	scope := domain.AccessScope{
		TenantID: middleware.TenantID(c),
		CanAccessBranch: func(branchID string) bool {
			return middleware.CanAccessBranch(c, branchID)
		},
	}
	assignment, err := h.booker.UpdateStatus(c.UserContext(), scope, c.Params("id"), payload.Status)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(assignment)
}

// parseAssignment builds a request for the branch in the path. Members always book for themselves.
func (h *MatchingHandler) parseAssignment(c *fiber.Ctx) (*domain.AssignmentRequest, error) {
	branchID := c.Params("branch_id")
	if !middleware.CanAccessBranch(c, branchID) {
		return nil, domain.ErrForbidden
	}

	var payload assignmentPayload
	if err := c.BodyParser(&payload); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(payload); err != nil {
		return nil, err
	}

	memberID := payload.MemberID
	if memberID == "" || !(middleware.IsAdmin(c) || middleware.HasRole(c, domain.RoleCoach)) {
		memberID = middleware.UserID(c)
	}

	return &domain.AssignmentRequest{
		TenantID:           middleware.TenantID(c),
		BranchID:           branchID,
		MemberID:           memberID,
		PreferredSpecialty: payload.PreferredSpecialty,
		ScheduledAt:        payload.ScheduledAt,
		DurationMinutes:    payload.DurationMinutes,
		MaxBudget:          payload.MaxBudget,
	}, nil
}

// respondError maps domain errors to status codes
func (h *MatchingHandler) respondError(c *fiber.Ctx, err error) error {
	var validationErrs validator.ValidationErrors
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &validationErrs):
		details := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			details = append(details, fe.Field()+" failed "+fe.Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "details": details})
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrInvalidID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrBranchMismatch):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrTrainerNotFound), errors.Is(err, domain.ErrAssignmentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrSlotTaken), errors.Is(err, domain.ErrNoTrainerAvailable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	h.logger.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}
