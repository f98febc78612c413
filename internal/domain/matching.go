package domain

import (
	"fmt"
	"math"
	"time"
)

// MaxSessionMinutes bounds a single session to one day
const MaxSessionMinutes = 24 * 60

// AssignmentRequest is a member's ask for a personal training session
type AssignmentRequest struct {
	TenantID           string    `json:"tenant_id,omitempty"`
	BranchID           string    `json:"branch_id"`
	MemberID           string    `json:"member_id"`
	PreferredSpecialty string    `json:"preferred_specialty,omitempty"`
	ScheduledAt        time.Time `json:"scheduled_at"`
	DurationMinutes    int       `json:"duration_minutes"`
	MaxBudget          *float64  `json:"max_budget,omitempty"` // Max hourly rate, nil = no limit
}

// End returns the exclusive end of the requested slot
func (r *AssignmentRequest) End() time.Time {
	return r.ScheduledAt.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// HasBudget reports whether a budget limit was given
func (r *AssignmentRequest) HasBudget() bool {
	return r.MaxBudget != nil
}

// Validate checks a request that is about to commit a time slot
func (r *AssignmentRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	if r.MemberID == "" {
		return fmt.Errorf("%w: member_id is required", ErrInvalidRequest)
	}
	if r.BranchID == "" {
		return fmt.Errorf("%w: branch_id is required", ErrInvalidRequest)
	}
	if r.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled_at is required", ErrInvalidRequest)
	}
	if r.DurationMinutes <= 0 || r.DurationMinutes > MaxSessionMinutes {
		return fmt.Errorf("%w: duration must be between 1 and %d minutes, got %d", ErrInvalidRequest, MaxSessionMinutes, r.DurationMinutes)
	}
	return r.validateBudget()
}

// ValidateForBrowse checks a request used for recommendations, where the time slot is optional
func (r *AssignmentRequest) ValidateForBrowse() error {
	if r == nil {
		return fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	if r.BranchID == "" {
		return fmt.Errorf("%w: branch_id is required", ErrInvalidRequest)
	}
	if r.DurationMinutes < 0 || r.DurationMinutes > MaxSessionMinutes {
		return fmt.Errorf("%w: duration must be between 0 and %d minutes, got %d", ErrInvalidRequest, MaxSessionMinutes, r.DurationMinutes)
	}
	return r.validateBudget()
}

func (r *AssignmentRequest) validateBudget() error {
	if r.MaxBudget == nil {
		return nil
	}
	if b := *r.MaxBudget; math.IsNaN(b) || math.IsInf(b, 0) || b < 0 {
		return fmt.Errorf("%w: max_budget must be a finite non-negative number", ErrInvalidRequest)
	}
	return nil
}

// ScoreBreakdown holds the per-factor scores of a trainer, each in [0, 1]
type ScoreBreakdown struct {
	Specialty   float64 `json:"specialty"`
	Utilization float64 `json:"utilization"`
	Performance float64 `json:"performance"`
	PriceFit    float64 `json:"price_fit"`
	Total       float64 `json:"total"` // Weighted mean of the factors
}

// TrainerMatch is a scored candidate
type TrainerMatch struct {
	Trainer     *TrainerProfile   `json:"trainer"`
	Score       ScoreBreakdown    `json:"score"`
	Utilization UtilizationMetric `json:"utilization"`
}

// Constraints that can be relaxed when no trainer survives filtering
const (
	RelaxedBudget   = "budget"
	RelaxedTimeSlot = "time_slot"
)

// Rejection causes reported in AssignmentResult.Rejections
const (
	RejectInactive    = "inactive"
	RejectOtherBranch = "other_branch"
	RejectConflict    = "conflict"
	RejectUnavailable = "unavailable"
	RejectOverBudget  = "over_budget"
)

// AssignmentResult is the decision of the auto-assignment engine
type AssignmentResult struct {
	Success      bool            `json:"success"`
	Trainer      *TrainerProfile `json:"trainer,omitempty"`
	Score        *ScoreBreakdown `json:"score,omitempty"`
	Confidence   float64         `json:"confidence"`
	Alternatives []TrainerMatch  `json:"alternatives"`
	Reason       string          `json:"reason,omitempty"`
	Error        string          `json:"error,omitempty"`
	Relaxed      string          `json:"relaxed,omitempty"`    // Constraint relaxed to build failure alternatives
	Rejections   map[string]int  `json:"rejections,omitempty"` // Candidates removed per cause
}

// UtilizationMetric is the derived load and reliability of a trainer over a period
type UtilizationMetric struct {
	TrainerID         string    `json:"trainer_id"`
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
	AvailableHours    float64   `json:"available_hours"`
	BookedHours       float64   `json:"booked_hours"`
	UtilizationRate   float64   `json:"utilization_rate"`
	Unavailable       bool      `json:"unavailable"` // No working hours in the period, rate forced to 0
	TotalSessions     int       `json:"total_sessions"`
	CompletedSessions int       `json:"completed_sessions"`
	CancelledSessions int       `json:"cancelled_sessions"`
	NoShowSessions    int       `json:"no_show_sessions"`
	PunctualityScore  float64   `json:"punctuality_score"`
	AverageRating     float64   `json:"average_rating"`
}
