package domain

import (
	"context"
	"time"
)

// AssignmentStatus is the lifecycle state of a booked training session
type AssignmentStatus string

const (
	AssignmentStatusScheduled   AssignmentStatus = "scheduled"
	AssignmentStatusCompleted   AssignmentStatus = "completed"
	AssignmentStatusCancelled   AssignmentStatus = "cancelled"
	AssignmentStatusNoShow      AssignmentStatus = "no_show"
	AssignmentStatusRescheduled AssignmentStatus = "rescheduled"
)

// Valid reports whether s is a known status
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentStatusScheduled, AssignmentStatusCompleted, AssignmentStatusCancelled,
		AssignmentStatusNoShow, AssignmentStatusRescheduled:
		return true
	}
	return false
}

// TrainerAssignment is a single booked or completed session between a trainer and a member
type TrainerAssignment struct {
	ID              string           `json:"id" bson:"_id,omitempty"`
	ClientID        string           `json:"client_id,omitempty" bson:"client_id,omitempty"` // ULID, stable across retries
	TenantID        string           `json:"tenant_id" bson:"tenant_id"`
	BranchID        string           `json:"branch_id" bson:"branch_id"`
	TrainerID       string           `json:"trainer_id" bson:"trainer_id"`
	MemberID        string           `json:"member_id" bson:"member_id"`
	Specialty       string           `json:"specialty,omitempty" bson:"specialty,omitempty"`
	ScheduledAt     time.Time        `json:"scheduled_at" bson:"scheduled_at"`
	DurationMinutes int              `json:"duration_minutes" bson:"duration_minutes"`
	Status          AssignmentStatus `json:"status" bson:"status"`
	Amount          float64          `json:"amount" bson:"amount"` // Charged for the session
	CreatedAt       time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" bson:"updated_at"`
}

// End returns the exclusive end of the session
func (a *TrainerAssignment) End() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// BlocksSlot reports whether the session still occupies the trainer's calendar
func (a *TrainerAssignment) BlocksSlot() bool {
	return a.Status == AssignmentStatusScheduled || a.Status == AssignmentStatusRescheduled
}

// CountsAsBooked reports whether the session contributes to booked hours
func (a *TrainerAssignment) CountsAsBooked() bool {
	return a.Status == AssignmentStatusScheduled || a.Status == AssignmentStatusCompleted
}

// Overlaps checks half-open intervals [aStart, aEnd) and [bStart, bEnd)
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// TrainerAssignmentRepository provides assignment history and persists new bookings
type TrainerAssignmentRepository interface {
	Create(ctx context.Context, assignment *TrainerAssignment) error
	GetByID(ctx context.Context, id string) (*TrainerAssignment, error)
	GetByClientID(ctx context.Context, clientID string) (*TrainerAssignment, error)
	// GetByBranch returns assignments whose start time falls in [from, to)
	GetByBranch(ctx context.Context, branchID string, from, to time.Time) ([]*TrainerAssignment, error)
	GetByTrainer(ctx context.Context, trainerID string, from, to time.Time) ([]*TrainerAssignment, error)
	UpdateStatus(ctx context.Context, id string, status AssignmentStatus) error
	// HasConflict reports whether a slot-blocking assignment of the trainer overlaps [start, end)
	HasConflict(ctx context.Context, trainerID string, start, end time.Time) (bool, error)
}
