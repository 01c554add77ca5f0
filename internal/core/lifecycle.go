package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"herdbook/pkg/domain"
)

const nestBoxLeadDays = 3

// BreedingEventInput describes a new pairing. Empty codes are derived and
// nil predicted metrics are computed.
type BreedingEventInput struct {
	MaleID       int64
	FemaleID     int64
	BreedingDate time.Time
	EventCode    string
	PairCode     string
	Notes        string

	GeneticCompatibilityScore *int
	PredictedLitterSize       *int
	PredictedOffspringHealth  *int
	PredictedROI              *int
}

// BirthRecord carries the outcome of a birth.
type BirthRecord struct {
	ActualBirthDate      time.Time
	ActualOffspringCount int
	Notes                string
}

// BirthOutcome is the updated event plus the offspring created for it.
type BirthOutcome struct {
	Event     BreedingEvent `json:"event"`
	Offspring []Animal      `json:"offspring"`
}

// CreateBreedingEvent validates the pairing, derives codes and dates and
// attaches predicted metrics before persisting a pending event.
func (s *Service) CreateBreedingEvent(ctx context.Context, input BreedingEventInput) (BreedingEvent, Result, error) {
	var created BreedingEvent
	var res Result
	err := s.run(ctx, "create_breeding_event", func(ctx context.Context) (int64, error) {
		if input.BreedingDate.IsZero() {
			return 0, domain.ErrValidation{Field: "breeding_date", Reason: "required"}
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			male, female, err := resolvePair(view, input.MaleID, input.FemaleID)
			if err != nil {
				return err
			}
			event := s.newBreedingEvent(view, male, female, input)
			created, err = tx.CreateBreedingEvent(event)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

func (s *Service) newBreedingEvent(view TransactionView, male, female Animal, input BreedingEventInput) BreedingEvent {
	profile := s.species.Lookup(female.SpeciesType)
	breeding := input.BreedingDate
	expected := breeding.AddDate(0, 0, profile.GestationDays)
	nestBox := expected.AddDate(0, 0, -nestBoxLeadDays)

	event := BreedingEvent{
		EventCode:                 input.EventCode,
		PairCode:                  input.PairCode,
		MaleID:                    male.ID,
		FemaleID:                  female.ID,
		SpeciesType:               female.SpeciesType,
		BreedingDate:              breeding,
		ExpectedBirthDate:         &expected,
		NestBoxDate:               &nestBox,
		Status:                    domain.EventStatusPending,
		GeneticCompatibilityScore: input.GeneticCompatibilityScore,
		PredictedLitterSize:       input.PredictedLitterSize,
		PredictedOffspringHealth:  input.PredictedOffspringHealth,
		PredictedROI:              input.PredictedROI,
		OffspringIDs:              []int64{},
		Notes:                     input.Notes,
	}
	if event.EventCode == "" {
		event.EventCode = newEventCode()
	}
	if event.PairCode == "" {
		event.PairCode = uniquePairCode(view, male.Code+"x"+female.Code)
	}
	if event.GeneticCompatibilityScore == nil || event.PredictedLitterSize == nil ||
		event.PredictedOffspringHealth == nil || event.PredictedROI == nil {
		risky := EvaluateRisk(s.classify(view, male, female).Class).IsRisky
		pred := Predict(male, female, risky, profile)
		if event.GeneticCompatibilityScore == nil {
			event.GeneticCompatibilityScore = intPtr(pred.GeneticCompatibilityScore)
		}
		if event.PredictedLitterSize == nil {
			event.PredictedLitterSize = intPtr(pred.PredictedLitterSize)
		}
		if event.PredictedOffspringHealth == nil {
			event.PredictedOffspringHealth = intPtr(pred.PredictedOffspringHealth)
		}
		if event.PredictedROI == nil {
			event.PredictedROI = intPtr(pred.PredictedROI)
		}
	}
	return event
}

// uniquePairCode suffixes repeat pairings ("AxB", "AxB-2", ...) so that
// offspring codes derived from the pair code stay unique.
func uniquePairCode(view TransactionView, base string) string {
	taken := make(map[string]struct{})
	for _, e := range view.ListBreedingEvents() {
		taken[e.PairCode] = struct{}{}
	}
	code := base
	for n := 2; ; n++ {
		if _, ok := taken[code]; !ok {
			return code
		}
		code = fmt.Sprintf("%s-%d", base, n)
	}
}

func newEventCode() string {
	return "BE-" + strings.ToUpper(uuid.NewString()[:8])
}

// RecordBirth records the outcome of a pending event: it creates one
// offspring per counted animal, computes the actual ROI and wean date, moves
// the event to birthed and updates the parents' counters, all in one
// transaction. Calls for the same event are serialized; a second recording
// fails with a domain.ErrConflict.
func (s *Service) RecordBirth(ctx context.Context, eventID int64, record BirthRecord) (BirthOutcome, Result, error) {
	var out BirthOutcome
	var res Result
	err := s.run(ctx, "record_birth", func(ctx context.Context) (int64, error) {
		if record.ActualBirthDate.IsZero() {
			return eventID, domain.ErrValidation{Field: "actual_birth_date", Reason: "required"}
		}
		if record.ActualOffspringCount < 0 {
			return eventID, domain.ErrValidation{Field: "actual_offspring_count", Reason: "must not be negative"}
		}
		unlock := s.births.Lock(eventID)
		defer unlock()

		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			out, err = s.recordBirth(tx, eventID, record)
			return err
		})
		return eventID, err
	})
	if err == nil && s.archive != nil {
		if _, archiveErr := s.archive.Archive(ctx, LitterReport{Event: out.Event, Offspring: out.Offspring, ArchivedAt: s.now()}); archiveErr != nil {
			s.logger.Warn("litter archive failed", "event_id", eventID, "error", archiveErr)
		}
	}
	return out, res, err
}

func (s *Service) recordBirth(tx Transaction, eventID int64, record BirthRecord) (BirthOutcome, error) {
	event, ok := tx.FindBreedingEvent(eventID)
	if !ok {
		return BirthOutcome{}, domain.ErrNotFound{Entity: domain.EntityBreedingEvent, ID: eventID}
	}
	if len(event.OffspringIDs) > 0 || event.HasRecordedOffspring() || event.Status == domain.EventStatusBirthed {
		return BirthOutcome{}, domain.ErrConflict{Entity: domain.EntityBreedingEvent, ID: eventID, Reason: "birth already recorded"}
	}
	if event.Status.Terminal() {
		return BirthOutcome{}, domain.ErrConflict{Entity: domain.EntityBreedingEvent, ID: eventID, Reason: fmt.Sprintf("event is %s", event.Status)}
	}
	male, ok := tx.FindAnimal(event.MaleID)
	if !ok {
		return BirthOutcome{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: event.MaleID}
	}
	female, ok := tx.FindAnimal(event.FemaleID)
	if !ok {
		return BirthOutcome{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: event.FemaleID}
	}

	born := record.ActualBirthDate
	event.ActualBirthDate = &born
	count := record.ActualOffspringCount

	offspring := make([]Animal, 0, count)
	ids := make([]int64, 0, count)
	for i := 1; i <= count; i++ {
		child, err := tx.CreateAnimal(s.offspring.Generate(male, female, event, i))
		if err != nil {
			return BirthOutcome{}, fmt.Errorf("create offspring %d: %w", i, err)
		}
		offspring = append(offspring, child)
		ids = append(ids, child.ID)
	}

	profile := s.species.Lookup(event.SpeciesType)
	updated, err := tx.UpdateBreedingEvent(eventID, func(e *BreedingEvent) error {
		e.ActualBirthDate = &born
		e.ActualOffspringCount = intPtr(count)
		e.OffspringIDs = ids
		if roi, ok := actualROI(e.PredictedROI, e.PredictedLitterSize, count); ok {
			e.ActualROI = intPtr(roi)
		}
		if e.WeanDate == nil {
			wean := born.AddDate(0, 0, profile.WeanDays)
			e.WeanDate = &wean
		}
		if record.Notes != "" {
			e.Notes = record.Notes
		}
		e.Status = domain.EventStatusBirthed
		return nil
	})
	if err != nil {
		return BirthOutcome{}, err
	}

	if _, err := tx.UpdateAnimal(male.ID, func(a *Animal) error {
		a.OffspringCount += count
		return nil
	}); err != nil {
		return BirthOutcome{}, err
	}
	if _, err := tx.UpdateAnimal(female.ID, func(a *Animal) error {
		a.OffspringCount += count
		if count > 0 {
			a.LitterSize = intPtr(count)
		}
		return nil
	}); err != nil {
		return BirthOutcome{}, err
	}
	return BirthOutcome{Event: updated, Offspring: offspring}, nil
}

// UpdateBreedingEventStatus resolves a pending event as successful or
// unsuccessful. Birthed is reached only through RecordBirth.
func (s *Service) UpdateBreedingEventStatus(ctx context.Context, id int64, status domain.EventStatus) (BreedingEvent, Result, error) {
	var updated BreedingEvent
	var res Result
	err := s.run(ctx, "update_breeding_event_status", func(ctx context.Context) (int64, error) {
		if status != domain.EventStatusSuccessful && status != domain.EventStatusUnsuccessful {
			return id, domain.ErrValidation{Field: "status", Reason: fmt.Sprintf("cannot set %q directly", status)}
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			current, ok := tx.FindBreedingEvent(id)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityBreedingEvent, ID: id}
			}
			if current.Status != domain.EventStatusPending {
				return domain.ErrConflict{Entity: domain.EntityBreedingEvent, ID: id, Reason: fmt.Sprintf("event is already %s", current.Status)}
			}
			var err error
			updated, err = tx.UpdateBreedingEvent(id, func(e *BreedingEvent) error {
				e.Status = status
				return nil
			})
			return err
		})
		return id, err
	})
	return updated, res, err
}

// DeleteBreedingEvent removes an event that has no recorded offspring.
func (s *Service) DeleteBreedingEvent(ctx context.Context, id int64) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_breeding_event", func(ctx context.Context) (int64, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteBreedingEvent(id)
		})
		return id, err
	})
	return res, err
}

// GetBreedingEvent returns the event with id or a domain.ErrNotFound.
func (s *Service) GetBreedingEvent(_ context.Context, id int64) (BreedingEvent, error) {
	e, ok := s.store.GetBreedingEvent(id)
	if !ok {
		return BreedingEvent{}, domain.ErrNotFound{Entity: domain.EntityBreedingEvent, ID: id}
	}
	return e, nil
}

// ListBreedingEvents returns the events matching filter ordered by id.
func (s *Service) ListBreedingEvents(_ context.Context, filter EventFilter) []BreedingEvent {
	return s.store.ListBreedingEvents(filter)
}
