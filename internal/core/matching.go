package core

import (
	"context"

	"herdbook/pkg/domain"
)

// PairAssessment combines a classification with its risk verdict.
type PairAssessment struct {
	Relationship Relationship `json:"relationship"`
	Risk         RiskVerdict  `json:"risk"`
}

// ClassifyPair classifies two animals by id. A missing animal returns a
// NotFound assessment together with a domain.ErrNotFound.
func (s *Service) ClassifyPair(ctx context.Context, aID, bID int64) (PairAssessment, error) {
	var out PairAssessment
	err := s.run(ctx, "classify_pair", func(ctx context.Context) (int64, error) {
		return 0, s.store.View(ctx, func(view TransactionView) error {
			a, okA := view.FindAnimal(aID)
			b, okB := view.FindAnimal(bID)
			if !okA || !okB {
				rel, err := ClassifyByID(view, aID, bID)
				out = PairAssessment{Relationship: rel, Risk: EvaluateRisk(rel.Class)}
				return err
			}
			rel := s.classify(view, a, b)
			out = PairAssessment{Relationship: rel, Risk: EvaluateRisk(rel.Class)}
			return nil
		})
	})
	return out, err
}

// PotentialMates lists active animals of the same species and opposite gender
// whose pairing with the subject is not risky, ordered by id. A missing
// subject yields an empty result and no error.
func (s *Service) PotentialMates(ctx context.Context, animalID int64) ([]Animal, error) {
	mates := []Animal{}
	err := s.run(ctx, "potential_mates", func(ctx context.Context) (int64, error) {
		return animalID, s.store.View(ctx, func(view TransactionView) error {
			subject, ok := view.FindAnimal(animalID)
			if !ok {
				return nil
			}
			filter := domain.AnimalFilter{
				SpeciesType: subject.SpeciesType,
				Gender:      subject.Gender.Opposite(),
				Status:      domain.AnimalStatusActive,
			}
			for _, candidate := range view.ListAnimals() {
				if candidate.ID == subject.ID || !filter.Matches(candidate) {
					continue
				}
				male, female := orient(subject, candidate)
				if EvaluateRisk(s.classify(view, male, female).Class).IsRisky {
					continue
				}
				mates = append(mates, candidate)
			}
			return nil
		})
	})
	return mates, err
}

// PredictPairing computes predicted metrics for a candidate pairing without
// recording an event.
func (s *Service) PredictPairing(ctx context.Context, maleID, femaleID int64) (Prediction, PairAssessment, error) {
	var pred Prediction
	var assessment PairAssessment
	err := s.run(ctx, "predict_pairing", func(ctx context.Context) (int64, error) {
		return 0, s.store.View(ctx, func(view TransactionView) error {
			male, female, err := resolvePair(view, maleID, femaleID)
			if err != nil {
				return err
			}
			rel := s.classify(view, male, female)
			assessment = PairAssessment{Relationship: rel, Risk: EvaluateRisk(rel.Class)}
			pred = Predict(male, female, assessment.Risk.IsRisky, s.species.Lookup(female.SpeciesType))
			return nil
		})
	})
	return pred, assessment, err
}

func (s *Service) classify(lookup AnimalLookup, a, b Animal) Relationship {
	if s.relations != nil {
		if rel, ok := s.relations.Get(a.ID, b.ID); ok {
			return rel
		}
	}
	rel := Classify(lookup, a, b)
	if s.relations != nil {
		s.relations.Add(a.ID, b.ID, rel)
	}
	return rel
}

func orient(a, b Animal) (male, female Animal) {
	if a.Gender == domain.GenderMale {
		return a, b
	}
	return b, a
}

// resolvePair loads both participants and checks that the first is male and
// the second female.
func resolvePair(lookup AnimalLookup, maleID, femaleID int64) (Animal, Animal, error) {
	male, ok := lookup.FindAnimal(maleID)
	if !ok {
		return Animal{}, Animal{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: maleID}
	}
	female, ok := lookup.FindAnimal(femaleID)
	if !ok {
		return Animal{}, Animal{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: femaleID}
	}
	if male.Gender != domain.GenderMale || female.Gender != domain.GenderFemale {
		return Animal{}, Animal{}, domain.ErrInvalidGender{
			MaleID:       maleID,
			FemaleID:     femaleID,
			MaleGender:   male.Gender,
			FemaleGender: female.Gender,
		}
	}
	return male, female, nil
}
