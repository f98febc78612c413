package matching

import (
	"strings"

	"github.com/mansoorceksport/coachmatch/internal/domain"
)

const neutralScore = 0.5

// Score rates a trainer against a request. Every factor and the total lie in [0, 1].
// Both the commit and the browse paths rank with this function.
func (e *Engine) Score(
	trainer *domain.TrainerProfile,
	req *domain.AssignmentRequest,
	metric domain.UtilizationMetric,
) domain.ScoreBreakdown {
	b := domain.ScoreBreakdown{
		Specialty:   specialtyScore(trainer, req.PreferredSpecialty),
		Utilization: utilizationScore(metric),
		Performance: performanceScore(trainer, metric),
		PriceFit:    priceFitScore(trainer.HourlyRate, req.MaxBudget),
	}

	w := e.cfg.Weights
	b.Total = clamp01((w.Specialty*b.Specialty +
		w.Utilization*b.Utilization +
		w.Performance*b.Performance +
		w.PriceFit*b.PriceFit) / w.Sum())
	return b
}

// specialtyScore: exact match 1, shared word 0.5 ("strength" vs "strength training"), none 0.
// Without a preference every trainer gets the same neutral score.
func specialtyScore(trainer *domain.TrainerProfile, preferred string) float64 {
	want := domain.NormalizeSpecialty(preferred)
	if want == "" {
		return neutralScore
	}
	if trainer.HasSpecialty(want) {
		return 1
	}

	wantWords := strings.Fields(want)
	for _, s := range trainer.Specialties {
		for _, have := range strings.Fields(domain.NormalizeSpecialty(s)) {
			for _, w := range wantWords {
				if have == w {
					return neutralScore
				}
			}
		}
	}
	return 0
}

// utilizationScore favours trainers with spare capacity.
// Unavailable trainers carry a zero rate and score like an empty calendar.
func utilizationScore(metric domain.UtilizationMetric) float64 {
	return 1 - clamp01(metric.UtilizationRate)
}

// performanceScore averages the normalized rating and punctuality
func performanceScore(trainer *domain.TrainerProfile, metric domain.UtilizationMetric) float64 {
	rating := neutralScore
	if trainer.Rating > 0 {
		rating = clamp01(trainer.Rating / domain.MaxRating)
	}
	return (rating + clamp01(metric.PunctualityScore)) / 2
}

// priceFitScore prefers rates that use the budget rather than the cheapest rate.
// Over-budget rates only reach scoring when the budget is relaxed and decay with the overshoot.
func priceFitScore(rate float64, budget *float64) float64 {
	if budget == nil {
		return neutralScore
	}
	if rate < 0 {
		rate = 0
	}
	limit := *budget
	switch {
	case rate <= limit && limit > 0:
		return rate / limit
	case rate <= limit:
		return 1 // zero budget, free session
	default:
		return clamp01(limit / rate)
	}
}

func clamp01(v float64) float64 {
	if v != v || v < 0 { // NaN
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
