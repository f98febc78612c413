// Package matching picks the best available trainer of a branch for a member's session request.
//
// The engine is a pure function of its inputs: it performs no I/O, keeps no mutable state and may be
// called concurrently. Persisting the chosen assignment is the caller's job.
package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mansoorceksport/coachmatch/internal/domain"
)

// Engine ranks trainers with a fixed configuration
type Engine struct {
	cfg  AutoAssignmentConfig
	ucfg UtilizationConfig
}

// NewEngine validates the configuration and returns an engine
func NewEngine(cfg AutoAssignmentConfig, ucfg UtilizationConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auto-assignment config: %w", err)
	}
	if err := ucfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid utilization config: %w", err)
	}
	return &Engine{cfg: cfg, ucfg: ucfg}, nil
}

// Config returns the ranking configuration
func (e *Engine) Config() AutoAssignmentConfig {
	return e.cfg
}

// UtilizationConfig returns the utilization configuration
func (e *Engine) UtilizationConfig() UtilizationConfig {
	return e.ucfg
}

// AssignTrainer picks a trainer for the requested slot.
//
// A request nobody can serve is a normal outcome reported with Success=false; an error is returned only
// for a malformed request.
func (e *Engine) AssignTrainer(
	req *domain.AssignmentRequest,
	trainers []*domain.TrainerProfile,
	assignments []*domain.TrainerAssignment,
) (*domain.AssignmentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	byTrainer := indexAssignments(assignments)
	pool := e.filterCandidates(req, trainers, byTrainer, true)

	if len(pool.inBudget) == 0 {
		return e.failure(req, trainers, pool, byTrainer), nil
	}

	matches := e.rank(req, pool.inBudget, byTrainer)
	winner := matches[0]
	score := winner.Score

	return &domain.AssignmentResult{
		Success:      true,
		Trainer:      winner.Trainer,
		Score:        &score,
		Confidence:   clamp01(score.Total),
		Alternatives: capMatches(matches[1:], e.cfg.MaxAlternatives),
		Reason:       e.explain(matches),
		Rejections:   pool.rejections,
	}, nil
}

// GetRecommendations ranks the branch roster without committing a slot, so schedule conflicts are not
// checked. assignments only feed utilization and may be nil. A zero ScheduledAt skips the load factor.
func (e *Engine) GetRecommendations(
	req *domain.AssignmentRequest,
	trainers []*domain.TrainerProfile,
	assignments []*domain.TrainerAssignment,
) ([]domain.TrainerMatch, error) {
	if err := req.ValidateForBrowse(); err != nil {
		return nil, err
	}

	byTrainer := indexAssignments(assignments)
	pool := e.filterCandidates(req, trainers, byTrainer, false)
	if len(pool.inBudget) == 0 {
		return []domain.TrainerMatch{}, nil
	}

	return capMatches(e.rank(req, pool.inBudget, byTrainer), e.cfg.MaxRecommendations), nil
}

// Utilization computes the metric used for scoring a trainer at the request time
func (e *Engine) Utilization(
	trainer *domain.TrainerProfile,
	req *domain.AssignmentRequest,
	assignments []*domain.TrainerAssignment,
) domain.UtilizationMetric {
	if req.ScheduledAt.IsZero() {
		return domain.UtilizationMetric{
			TrainerID:        trainer.ID,
			PunctualityScore: e.ucfg.NeutralPunctuality,
			AverageRating:    trainer.Rating,
		}
	}
	return CalculateUtilization(
		trainer,
		assignments,
		WeekWindow(req.ScheduledAt, e.ucfg.WindowDays),
		HistoryWindow(req.ScheduledAt, e.ucfg.HistoryDays),
		e.ucfg,
	)
}

// rank scores and orders trainers: total desc, rating desc, utilization asc, id asc
func (e *Engine) rank(
	req *domain.AssignmentRequest,
	trainers []*domain.TrainerProfile,
	byTrainer map[string][]*domain.TrainerAssignment,
) []domain.TrainerMatch {
	matches := make([]domain.TrainerMatch, 0, len(trainers))
	for _, t := range trainers {
		metric := e.Utilization(t, req, byTrainer[t.ID])
		matches = append(matches, domain.TrainerMatch{
			Trainer:     t,
			Score:       e.Score(t, req, metric),
			Utilization: metric,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		if a.Trainer.Rating != b.Trainer.Rating {
			return a.Trainer.Rating > b.Trainer.Rating
		}
		if a.Utilization.UtilizationRate != b.Utilization.UtilizationRate {
			return a.Utilization.UtilizationRate < b.Utilization.UtilizationRate
		}
		return a.Trainer.ID < b.Trainer.ID
	})
	return matches
}

// failure builds the no-candidate result. The budget is relaxed first, then the time slot;
// branch eligibility is never relaxed.
func (e *Engine) failure(
	req *domain.AssignmentRequest,
	trainers []*domain.TrainerProfile,
	pool candidatePool,
	byTrainer map[string][]*domain.TrainerAssignment,
) *domain.AssignmentResult {
	result := &domain.AssignmentResult{
		Success:      false,
		Alternatives: []domain.TrainerMatch{},
		Rejections:   pool.rejections,
	}

	switch {
	case len(trainers) == 0:
		result.Error = fmt.Sprintf("no trainers registered at branch %s", req.BranchID)
		return result

	case len(pool.eligible) == 0:
		result.Error = fmt.Sprintf("no active trainers at branch %s", req.BranchID)
		return result

	case len(pool.free) > 0:
		// Only the budget stands in the way
		relaxed := matchingSpecialty(pool.free, req.PreferredSpecialty)
		if len(relaxed) == 0 {
			relaxed = pool.free
		}
		result.Relaxed = domain.RelaxedBudget
		result.Alternatives = capMatches(e.rank(req, relaxed, byTrainer), e.cfg.MaxAlternatives)
		result.Error = fmt.Sprintf(
			"no trainer within the budget of %.2f per hour: %d available trainer(s) exceed it",
			*req.MaxBudget, len(pool.free),
		)

	default:
		relaxed := filterBudget(pool.eligible, req)
		result.Relaxed = domain.RelaxedTimeSlot
		if len(relaxed) == 0 {
			relaxed = pool.eligible
			result.Relaxed = domain.RelaxedTimeSlot + "," + domain.RelaxedBudget
		}
		result.Alternatives = capMatches(e.rank(req, relaxed, byTrainer), e.cfg.MaxAlternatives)
		result.Error = fmt.Sprintf(
			"all %d active trainer(s) are booked or off duty between %s and %s",
			len(pool.eligible),
			req.ScheduledAt.Format("2006-01-02 15:04"),
			req.End().Format("15:04"),
		)
	}

	result.Reason = result.Error
	return result
}

// explain names the factors on which the winner beats the runner-up the most
func (e *Engine) explain(matches []domain.TrainerMatch) string {
	winner := matches[0]
	if len(matches) == 1 {
		return "only trainer available for the requested slot"
	}
	runnerUp := matches[1]

	if winner.Score.Total == runnerUp.Score.Total {
		switch {
		case winner.Trainer.Rating > runnerUp.Trainer.Rating:
			return "highest rating among equally scored trainers"
		case winner.Utilization.UtilizationRate < runnerUp.Utilization.UtilizationRate:
			return "lowest current load among equally scored trainers"
		default:
			return "equally scored trainers, first by trainer id"
		}
	}

	w := e.cfg.Weights
	type lead struct {
		phrase string
		delta  float64
	}
	leads := []lead{
		{"best specialty match", w.Specialty * (winner.Score.Specialty - runnerUp.Score.Specialty)},
		{"lowest current load", w.Utilization * (winner.Score.Utilization - runnerUp.Score.Utilization)},
		{"strongest rating and attendance record", w.Performance * (winner.Score.Performance - runnerUp.Score.Performance)},
		{"best use of the budget", w.PriceFit * (winner.Score.PriceFit - runnerUp.Score.PriceFit)},
	}
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].delta > leads[j].delta
	})

	var phrases []string
	for _, l := range leads[:2] {
		if l.delta > 0 {
			phrases = append(phrases, l.phrase)
		}
	}
	if len(phrases) == 0 {
		return "highest overall score"
	}
	return strings.Join(phrases, " with ")
}

func capMatches(matches []domain.TrainerMatch, limit int) []domain.TrainerMatch {
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]domain.TrainerMatch, len(matches))
	copy(out, matches)
	return out
}
