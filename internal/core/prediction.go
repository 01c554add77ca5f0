package core

import (
	"math"

	"herdbook/internal/species"
	"herdbook/pkg/domain"
)

const (
	baseCompatibility   = 90
	riskyCompatibility  = 30
	minCompatibility    = 30
	maxCompatibility    = 100
	minOffspringHealth  = 60
	maxOffspringHealth  = 100
	inbreedingPenalty   = 0.85
	hybridVigorBonus    = 1.05
	offspringCostFactor = 0.4
	referenceTraitLevel = float64(domain.DefaultTraitValue)
)

// Prediction holds the metrics computed for a pairing.
type Prediction struct {
	GeneticCompatibilityScore int `json:"genetic_compatibility_score"`
	PredictedLitterSize       int `json:"predicted_litter_size"`
	PredictedOffspringHealth  int `json:"predicted_offspring_health"`
	PredictedROI              int `json:"predicted_roi"`
}

// Predict computes the expected outcome of pairing male with female.
func Predict(male, female Animal, risky bool, profile species.Profile) Prediction {
	compat := baseCompatibility
	if risky {
		compat -= riskyCompatibility
	}
	compat = clampInt(compat, minCompatibility, maxCompatibility)

	base := profile.LitterBase
	if female.LitterSize != nil {
		base = *female.LitterSize
	}
	litter := int(math.Round(float64(base) * float64(female.FertilityOrDefault()) / referenceTraitLevel))
	if litter < 0 {
		litter = 0
	}

	health := float64(male.HealthOrDefault()+female.HealthOrDefault()) / 2
	if risky {
		health *= inbreedingPenalty
	}
	if male.Breed != female.Breed {
		health *= hybridVigorBonus
	}
	health = math.Max(minOffspringHealth, math.Min(maxOffspringHealth, health))
	offspringHealth := int(math.Round(health))

	value := profile.OffspringValue
	revenue := float64(litter) * value * float64(offspringHealth) / referenceTraitLevel
	cost := float64(litter) * value * offspringCostFactor

	return Prediction{
		GeneticCompatibilityScore: compat,
		PredictedLitterSize:       litter,
		PredictedOffspringHealth:  offspringHealth,
		PredictedROI:              int(math.Round(revenue - cost)),
	}
}

// actualROI scales the predicted ROI by the realised litter. ok is false when
// no prediction is available to scale.
func actualROI(predictedROI, predictedLitter *int, count int) (int, bool) {
	if predictedROI == nil || predictedLitter == nil || *predictedLitter <= 0 {
		return 0, false
	}
	return int(math.Round(float64(*predictedROI) * float64(count) / float64(*predictedLitter))), true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
