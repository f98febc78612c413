package domain

import (
	"context"
	"strings"
	"time"
)

// TrainerStatus is the employment state of a trainer within a branch
type TrainerStatus string

const (
	TrainerStatusActive   TrainerStatus = "active"
	TrainerStatusInactive TrainerStatus = "inactive"
	TrainerStatusOnLeave  TrainerStatus = "on_leave"
)

// MaxRating is the top of the member rating scale
const MaxRating = 5.0

// TrainerProfile represents a coach that can be auto-assigned to members of a branch
type TrainerProfile struct {
	ID           string               `json:"id" bson:"_id,omitempty"`
	TenantID     string               `json:"tenant_id" bson:"tenant_id"`
	BranchID     string               `json:"branch_id" bson:"branch_id"`
	Name         string               `json:"name" bson:"name"`
	IsActive     bool                 `json:"is_active" bson:"is_active"`
	Status       TrainerStatus        `json:"status" bson:"status"`
	Specialties  []string             `json:"specialties" bson:"specialties"`   // e.g. "yoga", "strength training"
	HourlyRate   float64              `json:"hourly_rate" bson:"hourly_rate"`   // Same currency as AssignmentRequest.MaxBudget
	Rating       float64              `json:"rating" bson:"rating"`             // 0-5, 0 means unrated
	RatingCount  int                  `json:"rating_count" bson:"rating_count"` // Number of member reviews behind Rating
	Availability []AvailabilityWindow `json:"availability" bson:"availability"`
	TimeOff      []TimeOff            `json:"time_off,omitempty" bson:"time_off,omitempty"`
	CreatedAt    time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at" bson:"updated_at"`
}

// AvailabilityWindow is a recurring weekly working window, e.g. Monday 09:00-17:00
type AvailabilityWindow struct {
	Weekday time.Weekday `json:"weekday" bson:"weekday"`
	Start   string       `json:"start" bson:"start"` // "HH:MM"
	End     string       `json:"end" bson:"end"`     // "HH:MM", exclusive
}

// Minutes returns the window bounds as minutes since midnight.
// ok is false for unparseable or empty windows.
func (w AvailabilityWindow) Minutes() (start, end int, ok bool) {
	start, ok = parseClock(w.Start)
	if !ok {
		return 0, 0, false
	}
	end, ok = parseClock(w.End)
	if !ok || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		// "24:00" closes a window at midnight
		if strings.TrimSpace(s) == "24:00" {
			return 24 * 60, true
		}
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// TimeOff is a one-off exception removed from the weekly availability (holiday, sick leave)
type TimeOff struct {
	Start  time.Time `json:"start" bson:"start"`
	End    time.Time `json:"end" bson:"end"`
	Reason string    `json:"reason,omitempty" bson:"reason,omitempty"`
}

// IsCandidateFor reports whether the trainer may be offered to members of the branch.
// An empty tenantID skips the tenant check.
func (t *TrainerProfile) IsCandidateFor(tenantID, branchID string) bool {
	if t == nil || !t.IsActive || t.Status != TrainerStatusActive {
		return false
	}
	if branchID == "" || t.BranchID != branchID {
		return false
	}
	if tenantID != "" && t.TenantID != tenantID {
		return false
	}
	return true
}

// HasSpecialty checks for an exact, case-insensitive specialty match
func (t *TrainerProfile) HasSpecialty(specialty string) bool {
	want := NormalizeSpecialty(specialty)
	if want == "" {
		return false
	}
	for _, s := range t.Specialties {
		if NormalizeSpecialty(s) == want {
			return true
		}
	}
	return false
}

// NormalizeSpecialty lower-cases and collapses whitespace, so "Strength  Training" == "strength training"
func NormalizeSpecialty(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// TrainerRepository provides the branch-scoped trainer roster
type TrainerRepository interface {
	Create(ctx context.Context, trainer *TrainerProfile) error
	GetByID(ctx context.Context, id string) (*TrainerProfile, error)
	// GetByBranch returns every trainer attached to the branch, active or not
	GetByBranch(ctx context.Context, tenantID, branchID string) ([]*TrainerProfile, error)
	Update(ctx context.Context, trainer *TrainerProfile) error
}
