package core

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"herdbook/pkg/domain"
)

// BreedingStats summarizes breeding events and their outcomes. Litter and
// ROI figures cover birthed events only.
type BreedingStats struct {
	Total               int                        `json:"total"`
	ByStatus            map[domain.EventStatus]int `json:"by_status"`
	SuccessRate         float64                    `json:"success_rate"`
	BirthsRecorded      int                        `json:"births_recorded"`
	TotalOffspring      int                        `json:"total_offspring"`
	MeanLitterSize      float64                    `json:"mean_litter_size"`
	LitterSizeStdDev    float64                    `json:"litter_size_std_dev"`
	MeanPredictedROI    float64                    `json:"mean_predicted_roi"`
	MeanActualROI       float64                    `json:"mean_actual_roi"`
	MeanLitterDeviation float64                    `json:"mean_litter_prediction_error"`
}

// BreedingStats aggregates the events matching filter. The success rate is
// (birthed + successful) over all resolved events.
func (s *Service) BreedingStats(ctx context.Context, filter EventFilter) (BreedingStats, error) {
	var out BreedingStats
	err := s.run(ctx, "breeding_stats", func(context.Context) (int64, error) {
		out = summarizeEvents(s.store.ListBreedingEvents(filter))
		return 0, nil
	})
	return out, err
}

func summarizeEvents(events []BreedingEvent) BreedingStats {
	out := BreedingStats{Total: len(events), ByStatus: make(map[domain.EventStatus]int)}
	var litters, predictedROI, actualROIs, deviations []float64
	for _, e := range events {
		out.ByStatus[e.Status]++
		if e.Status != domain.EventStatusBirthed || e.ActualOffspringCount == nil {
			continue
		}
		out.BirthsRecorded++
		count := *e.ActualOffspringCount
		out.TotalOffspring += count
		litters = append(litters, float64(count))
		if e.PredictedLitterSize != nil {
			deviations = append(deviations, math.Abs(float64(count-*e.PredictedLitterSize)))
		}
		if e.PredictedROI != nil && e.ActualROI != nil {
			predictedROI = append(predictedROI, float64(*e.PredictedROI))
			actualROIs = append(actualROIs, float64(*e.ActualROI))
		}
	}

	good := out.ByStatus[domain.EventStatusBirthed] + out.ByStatus[domain.EventStatusSuccessful]
	if resolved := good + out.ByStatus[domain.EventStatusUnsuccessful]; resolved > 0 {
		out.SuccessRate = float64(good) / float64(resolved)
	}
	switch {
	case len(litters) > 1:
		out.MeanLitterSize, out.LitterSizeStdDev = stat.MeanStdDev(litters, nil)
	case len(litters) == 1:
		out.MeanLitterSize = litters[0]
	}
	out.MeanPredictedROI = meanOrZero(predictedROI)
	out.MeanActualROI = meanOrZero(actualROIs)
	out.MeanLitterDeviation = meanOrZero(deviations)
	return out
}

func meanOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
