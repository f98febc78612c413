package matching

import (
	"errors"
	"fmt"
)

// ScoreWeights are the relative weights of the soft constraints.
// They do not need to sum to 1; the total score is their weighted mean.
type ScoreWeights struct {
	Specialty   float64 `mapstructure:"specialty" json:"specialty"`
	Utilization float64 `mapstructure:"utilization" json:"utilization"`
	Performance float64 `mapstructure:"performance" json:"performance"`
	PriceFit    float64 `mapstructure:"price_fit" json:"price_fit"`
}

// Sum returns the total weight
func (w ScoreWeights) Sum() float64 {
	return w.Specialty + w.Utilization + w.Performance + w.PriceFit
}

// AutoAssignmentConfig tunes the ranking without touching the algorithm
type AutoAssignmentConfig struct {
	Weights ScoreWeights `mapstructure:"weights" json:"weights"`
	// MaxAlternatives caps the runner-up list returned next to the chosen trainer
	MaxAlternatives int `mapstructure:"max_alternatives" json:"max_alternatives"`
	// MaxRecommendations caps the browse list
	MaxRecommendations int `mapstructure:"max_recommendations" json:"max_recommendations"`
	// EnforceAvailability rejects trainers whose weekly windows or time off do not cover the slot.
	// Trainers without any declared window are never rejected for availability.
	EnforceAvailability bool `mapstructure:"enforce_availability" json:"enforce_availability"`
}

// UtilizationConfig controls how load and reliability are measured
type UtilizationConfig struct {
	// WindowDays is the utilization period, starting on the Monday of the requested week
	WindowDays int `mapstructure:"window_days" json:"window_days"`
	// HistoryDays is how far back completion, cancellation and no-show counts reach
	HistoryDays int `mapstructure:"history_days" json:"history_days"`
	// NeutralPunctuality is used for trainers without any finished session in the history
	NeutralPunctuality float64 `mapstructure:"neutral_punctuality" json:"neutral_punctuality"`
}

// DefaultAutoAssignmentConfig returns the production weights
func DefaultAutoAssignmentConfig() AutoAssignmentConfig {
	return AutoAssignmentConfig{
		Weights: ScoreWeights{
			Specialty:   0.35,
			Utilization: 0.25,
			Performance: 0.25,
			PriceFit:    0.15,
		},
		MaxAlternatives:     2,
		MaxRecommendations:  5,
		EnforceAvailability: true,
	}
}

// DefaultUtilizationConfig measures the current week against the last 90 days of history
func DefaultUtilizationConfig() UtilizationConfig {
	return UtilizationConfig{
		WindowDays:         7,
		HistoryDays:        90,
		NeutralPunctuality: 1.0,
	}
}

// Validate checks that the weights and caps are usable
func (c AutoAssignmentConfig) Validate() error {
	w := c.Weights
	if w.Specialty < 0 || w.Utilization < 0 || w.Performance < 0 || w.PriceFit < 0 {
		return errors.New("score weights must not be negative")
	}
	// A zero specialty weight would let a generalist outrank a specialist on id order alone
	if w.Specialty == 0 {
		return errors.New("specialty weight must be positive")
	}
	if w.Sum() <= 0 {
		return errors.New("score weights must sum to a positive value")
	}
	if c.MaxAlternatives < 0 {
		return fmt.Errorf("max_alternatives must not be negative, got %d", c.MaxAlternatives)
	}
	if c.MaxRecommendations <= 0 {
		return fmt.Errorf("max_recommendations must be positive, got %d", c.MaxRecommendations)
	}
	return nil
}

// Validate checks the utilization periods
func (c UtilizationConfig) Validate() error {
	if c.WindowDays <= 0 {
		return fmt.Errorf("window_days must be positive, got %d", c.WindowDays)
	}
	if c.HistoryDays < 0 {
		return fmt.Errorf("history_days must not be negative, got %d", c.HistoryDays)
	}
	if c.NeutralPunctuality < 0 || c.NeutralPunctuality > 1 {
		return fmt.Errorf("neutral_punctuality must be within [0, 1], got %v", c.NeutralPunctuality)
	}
	return nil
}
