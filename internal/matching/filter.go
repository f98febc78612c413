package matching

import (
	"github.com/mansoorceksport/coachmatch/internal/domain"
)

// candidatePool holds the trainers that survive each filtering stage
type candidatePool struct {
	eligible   []*domain.TrainerProfile // active and in the branch
	free       []*domain.TrainerProfile // eligible, no conflict, working at the slot
	inBudget   []*domain.TrainerProfile // free and within budget
	rejections map[string]int
}

// filterCandidates applies the hard constraints in order: eligibility, time slot, budget.
// checkSlot is false on the browse path.
func (e *Engine) filterCandidates(
	req *domain.AssignmentRequest,
	trainers []*domain.TrainerProfile,
	byTrainer map[string][]*domain.TrainerAssignment,
	checkSlot bool,
) candidatePool {
	pool := candidatePool{rejections: make(map[string]int)}
	seen := make(map[string]bool, len(trainers))

	for _, t := range trainers {
		// Duplicate roster entries are an upstream inconsistency; the first one wins
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		if !t.IsActive || t.Status != domain.TrainerStatusActive {
			pool.rejections[domain.RejectInactive]++
			continue
		}
		if !t.IsCandidateFor(req.TenantID, req.BranchID) {
			pool.rejections[domain.RejectOtherBranch]++
			continue
		}
		pool.eligible = append(pool.eligible, t)

		if checkSlot {
			if hasConflict(byTrainer[t.ID], req) {
				pool.rejections[domain.RejectConflict]++
				continue
			}
			if e.cfg.EnforceAvailability && !coversSlot(t, req.ScheduledAt, req.End()) {
				pool.rejections[domain.RejectUnavailable]++
				continue
			}
		}
		pool.free = append(pool.free, t)

		if !withinBudget(t, req) {
			pool.rejections[domain.RejectOverBudget]++
			continue
		}
		pool.inBudget = append(pool.inBudget, t)
	}

	return pool
}

// hasConflict reports whether any slot-blocking assignment overlaps the requested slot
func hasConflict(assignments []*domain.TrainerAssignment, req *domain.AssignmentRequest) bool {
	start, end := req.ScheduledAt, req.End()
	for _, a := range assignments {
		if !a.BlocksSlot() || a.DurationMinutes <= 0 {
			continue
		}
		if domain.Overlaps(a.ScheduledAt, a.End(), start, end) {
			return true
		}
	}
	return false
}

func withinBudget(t *domain.TrainerProfile, req *domain.AssignmentRequest) bool {
	return !req.HasBudget() || t.HourlyRate <= *req.MaxBudget
}

// indexAssignments groups assignments by trainer, dropping nil entries
func indexAssignments(assignments []*domain.TrainerAssignment) map[string][]*domain.TrainerAssignment {
	byTrainer := make(map[string][]*domain.TrainerAssignment)
	for _, a := range assignments {
		if a == nil {
			continue
		}
		byTrainer[a.TrainerID] = append(byTrainer[a.TrainerID], a)
	}
	return byTrainer
}

// matchingSpecialty keeps the trainers with an exact specialty match.
// It returns nil when the request has no preference or nobody matches.
func matchingSpecialty(trainers []*domain.TrainerProfile, specialty string) []*domain.TrainerProfile {
	if domain.NormalizeSpecialty(specialty) == "" {
		return nil
	}
	var out []*domain.TrainerProfile
	for _, t := range trainers {
		if t.HasSpecialty(specialty) {
			out = append(out, t)
		}
	}
	return out
}

func filterBudget(trainers []*domain.TrainerProfile, req *domain.AssignmentRequest) []*domain.TrainerProfile {
	var out []*domain.TrainerProfile
	for _, t := range trainers {
		if withinBudget(t, req) {
			out = append(out, t)
		}
	}
	return out
}
