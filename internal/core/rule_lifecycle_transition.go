package core

import (
	"context"
	"fmt"
	"slices"

	"herdbook/pkg/domain"
)

// LifecycleTransitionRule blocks illegal status transitions on animals and
// breeding events, and protects event fields that are written only once.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

var (
	validAnimalStatuses = toSet(
		string(domain.AnimalStatusActive),
		string(domain.AnimalStatusInactive),
		string(domain.AnimalStatusSold),
		string(domain.AnimalStatusDeceased),
	)
	validEventStatuses = toSet(
		string(domain.EventStatusPending),
		string(domain.EventStatusSuccessful),
		string(domain.EventStatusUnsuccessful),
		string(domain.EventStatusBirthed),
	)
)

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		switch change.Entity {
		case domain.EntityAnimal:
			after, ok := change.After.(domain.Animal)
			if !ok {
				continue
			}
			before, hasBefore := change.Before.(domain.Animal)
			evaluateAnimalTransition(&res, before, hasBefore, after)
		case domain.EntityBreedingEvent:
			after, ok := change.After.(domain.BreedingEvent)
			if !ok {
				continue
			}
			before, hasBefore := change.Before.(domain.BreedingEvent)
			evaluateEventTransition(&res, before, hasBefore, after)
		}
	}
	return res, nil
}

func evaluateAnimalTransition(res *domain.Result, before domain.Animal, hasBefore bool, after domain.Animal) {
	if _, ok := validAnimalStatuses[string(after.Status)]; !ok {
		res.Violations = append(res.Violations, transitionViolation(domain.EntityAnimal, after.ID, fmt.Sprintf("animal %d has unsupported status %q", after.ID, after.Status)))
		return
	}
	if hasBefore && before.Status == domain.AnimalStatusDeceased && after.Status != domain.AnimalStatusDeceased {
		res.Violations = append(res.Violations, transitionViolation(domain.EntityAnimal, after.ID, fmt.Sprintf("animal %d is deceased and cannot become %s", after.ID, after.Status)))
	}
}

func evaluateEventTransition(res *domain.Result, before domain.BreedingEvent, hasBefore bool, after domain.BreedingEvent) {
	if _, ok := validEventStatuses[string(after.Status)]; !ok {
		res.Violations = append(res.Violations, transitionViolation(domain.EntityBreedingEvent, after.ID, fmt.Sprintf("breeding event %d has unsupported status %q", after.ID, after.Status)))
		return
	}
	if !hasBefore {
		if after.Status != domain.EventStatusPending {
			res.Violations = append(res.Violations, transitionViolation(domain.EntityBreedingEvent, after.ID, fmt.Sprintf("breeding event %d must start pending", after.ID)))
		}
		return
	}
	if before.Status != after.Status && before.Status.Terminal() {
		res.Violations = append(res.Violations, transitionViolation(domain.EntityBreedingEvent, after.ID, fmt.Sprintf("breeding event %d cannot leave terminal status %s", after.ID, before.Status)))
	}
	if after.Status == domain.EventStatusBirthed && after.ActualBirthDate == nil {
		res.Violations = append(res.Violations, transitionViolation(domain.EntityBreedingEvent, after.ID, fmt.Sprintf("breeding event %d birthed without a birth date", after.ID)))
	}
	if len(before.OffspringIDs) > 0 && !slices.Equal(before.OffspringIDs, after.OffspringIDs) {
		res.Violations = append(res.Violations, transitionViolation(domain.EntityBreedingEvent, after.ID, fmt.Sprintf("breeding event %d offspring are already recorded", after.ID)))
	}
	if before.MaleID != after.MaleID || before.FemaleID != after.FemaleID {
		res.Violations = append(res.Violations, transitionViolation(domain.EntityBreedingEvent, after.ID, fmt.Sprintf("breeding event %d participants are immutable", after.ID)))
	}
	if !equalIntPtr(before.GeneticCompatibilityScore, after.GeneticCompatibilityScore) ||
		!equalIntPtr(before.PredictedLitterSize, after.PredictedLitterSize) ||
		!equalIntPtr(before.PredictedOffspringHealth, after.PredictedOffspringHealth) ||
		!equalIntPtr(before.PredictedROI, after.PredictedROI) {
		res.Violations = append(res.Violations, transitionViolation(domain.EntityBreedingEvent, after.ID, fmt.Sprintf("breeding event %d predictions are immutable", after.ID)))
	}
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func transitionViolation(entity domain.EntityType, id int64, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "lifecycle_transition",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   entity,
		EntityID: id,
	}
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
