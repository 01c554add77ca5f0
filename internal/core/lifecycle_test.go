package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"herdbook/pkg/domain"
)

type pairFixture struct {
	svc    *Service
	male   Animal
	female Animal
	event  BreedingEvent
}

func newPairFixture(t *testing.T, opts ...Option) pairFixture {
	t.Helper()
	svc := newTestService(t, opts...)
	m := mustCreate(t, svc, rabbit("M", domain.GenderMale))
	f := mustCreate(t, svc, rabbit("F", domain.GenderFemale))
	event, _, err := svc.CreateBreedingEvent(context.Background(), BreedingEventInput{
		MaleID:       m.ID,
		FemaleID:     f.ID,
		BreedingDate: dateOf(2025, 3, 1),
	})
	if err != nil {
		t.Fatalf("create breeding event: %v", err)
	}
	return pairFixture{svc: svc, male: m, female: f, event: event}
}

func TestCreateBreedingEventDerivesDatesAndPredictions(t *testing.T) {
	fx := newPairFixture(t)
	e := fx.event
	if !e.ExpectedBirthDate.Equal(dateOf(2025, 4, 1)) {
		t.Fatalf("expected birth 2025-04-01, got %v", e.ExpectedBirthDate)
	}
	if !e.NestBoxDate.Equal(dateOf(2025, 3, 29)) {
		t.Fatalf("expected nest box 2025-03-29, got %v", e.NestBoxDate)
	}
	if e.Status != domain.EventStatusPending || e.PairCode != "MxF" || e.SpeciesType != "rabbit" {
		t.Fatalf("unexpected event fields %+v", e)
	}
	if !strings.HasPrefix(e.EventCode, "BE-") || len(e.EventCode) != 11 {
		t.Fatalf("unexpected event code %q", e.EventCode)
	}
	if *e.GeneticCompatibilityScore != 90 || *e.PredictedLitterSize != 6 || *e.PredictedOffspringHealth != 85 || *e.PredictedROI != 108 {
		t.Fatalf("unexpected predictions %+v", e)
	}
	if len(e.OffspringIDs) != 0 || e.ActualBirthDate != nil {
		t.Fatalf("new event must have no birth data")
	}
}

func TestCreateBreedingEventKeepsSuppliedValues(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := mustCreate(t, svc, rabbit("M", domain.GenderMale))
	f := mustCreate(t, svc, rabbit("F", domain.GenderFemale))
	e, _, err := svc.CreateBreedingEvent(ctx, BreedingEventInput{
		MaleID: m.ID, FemaleID: f.ID, BreedingDate: dateOf(2025, 1, 10),
		EventCode: "EV-7", PairCode: "CUSTOM", PredictedLitterSize: intPtr(4),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.EventCode != "EV-7" || e.PairCode != "CUSTOM" || *e.PredictedLitterSize != 4 || *e.PredictedROI != 108 {
		t.Fatalf("expected supplied values to win, got %+v", e)
	}
	second, _, err := svc.CreateBreedingEvent(ctx, BreedingEventInput{MaleID: m.ID, FemaleID: f.ID, BreedingDate: dateOf(2025, 6, 1)})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	third, _, err := svc.CreateBreedingEvent(ctx, BreedingEventInput{MaleID: m.ID, FemaleID: f.ID, BreedingDate: dateOf(2025, 9, 1)})
	if err != nil {
		t.Fatalf("third create: %v", err)
	}
	if second.PairCode != "MxF" || third.PairCode != "MxF-2" {
		t.Fatalf("expected repeat pairings to get distinct pair codes, got %s and %s", second.PairCode, third.PairCode)
	}
}

func TestCreateBreedingEventErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := mustCreate(t, svc, rabbit("M", domain.GenderMale))
	m2 := mustCreate(t, svc, rabbit("M2", domain.GenderMale))
	f := mustCreate(t, svc, rabbit("F", domain.GenderFemale))
	date := dateOf(2025, 3, 1)

	cases := []struct {
		name  string
		input BreedingEventInput
		kind  error
	}{
		{"same gender", BreedingEventInput{MaleID: m.ID, FemaleID: m2.ID, BreedingDate: date}, domain.ErrKindInvalidGender},
		{"swapped roles", BreedingEventInput{MaleID: f.ID, FemaleID: m.ID, BreedingDate: date}, domain.ErrKindInvalidGender},
		{"missing male", BreedingEventInput{MaleID: 99, FemaleID: f.ID, BreedingDate: date}, domain.ErrKindNotFound},
		{"missing female", BreedingEventInput{MaleID: m.ID, FemaleID: 98, BreedingDate: date}, domain.ErrKindNotFound},
		{"zero date", BreedingEventInput{MaleID: m.ID, FemaleID: f.ID}, domain.ErrKindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := svc.CreateBreedingEvent(ctx, tc.input); !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
	var ig domain.ErrInvalidGender
	_, _, err := svc.CreateBreedingEvent(ctx, cases[0].input)
	if !errors.As(err, &ig) || ig.FemaleGender != domain.GenderMale {
		t.Fatalf("expected typed invalid gender error, got %v", err)
	}
	if events := svc.ListBreedingEvents(ctx, EventFilter{}); len(events) != 0 {
		t.Fatalf("failed creations must not persist events, got %d", len(events))
	}
}

func TestRecordBirthCreatesOffspring(t *testing.T) {
	ctx := context.Background()
	fx := newPairFixture(t)
	born := dateOf(2025, 4, 2)
	out, _, err := fx.svc.RecordBirth(ctx, fx.event.ID, BirthRecord{ActualBirthDate: born, ActualOffspringCount: 5})
	if err != nil {
		t.Fatalf("record birth: %v", err)
	}
	e := out.Event
	if e.Status != domain.EventStatusBirthed || *e.ActualOffspringCount != 5 || len(e.OffspringIDs) != 5 {
		t.Fatalf("unexpected event after birth %+v", e)
	}
	if *e.ActualROI != 90 {
		t.Fatalf("expected actual ROI round(108*5/6)=90, got %d", *e.ActualROI)
	}
	if !e.WeanDate.Equal(born.AddDate(0, 0, 56)) {
		t.Fatalf("expected wean date 56 days after birth, got %v", e.WeanDate)
	}

	children := fx.svc.ListAnimals(ctx, AnimalFilter{ParentID: &fx.male.ID})
	if len(children) != 5 || len(out.Offspring) != 5 {
		t.Fatalf("expected 5 offspring, got %d/%d", len(children), len(out.Offspring))
	}
	wantAncestry := map[string]bool{fx.male.AncestryToken(): true, fx.female.AncestryToken(): true}
	for i, child := range children {
		if *child.ParentMaleID != fx.male.ID || *child.ParentFemaleID != fx.female.ID {
			t.Fatalf("offspring %d has wrong parents", i)
		}
		if child.ID != e.OffspringIDs[i] || child.Code != out.Offspring[i].Code {
			t.Fatalf("offspring ids out of order")
		}
		if child.Generation != 2 {
			t.Fatalf("expected generation 2, got %d", child.Generation)
		}
		for token := range wantAncestry {
			found := false
			for _, got := range child.Ancestry {
				found = found || got == token
			}
			if !found {
				t.Fatalf("offspring %s missing ancestry token %s", child.Code, token)
			}
		}
	}
	if children[0].Code != "MxF_01" || children[4].Code != "MxF_05" {
		t.Fatalf("unexpected offspring codes %s..%s", children[0].Code, children[4].Code)
	}

	male, _ := fx.svc.GetAnimal(ctx, fx.male.ID)
	female, _ := fx.svc.GetAnimal(ctx, fx.female.ID)
	if male.OffspringCount != 5 || female.OffspringCount != 5 || female.LitterSize == nil || *female.LitterSize != 5 {
		t.Fatalf("expected parent counters updated, got male %d female %d litter %v", male.OffspringCount, female.OffspringCount, female.LitterSize)
	}
	if *e.PredictedLitterSize != 6 {
		t.Fatalf("predictions must not change at birth")
	}
}

func TestRecordBirthTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	fx := newPairFixture(t)
	record := BirthRecord{ActualBirthDate: dateOf(2025, 4, 1), ActualOffspringCount: 5}
	if _, _, err := fx.svc.RecordBirth(ctx, fx.event.ID, record); err != nil {
		t.Fatalf("first record: %v", err)
	}
	_, _, err := fx.svc.RecordBirth(ctx, fx.event.ID, record)
	var conflict domain.ErrConflict
	if !errors.As(err, &conflict) || conflict.ID != fx.event.ID {
		t.Fatalf("expected conflict on second record, got %v", err)
	}
	e, _ := fx.svc.GetBreedingEvent(ctx, fx.event.ID)
	if len(e.OffspringIDs) != 5 {
		t.Fatalf("offspring ids changed after failed call: %d", len(e.OffspringIDs))
	}
	if n := len(fx.svc.ListAnimals(ctx, AnimalFilter{})); n != 7 {
		t.Fatalf("expected 7 animals, got %d", n)
	}
}

func TestRecordBirthConcurrentCallsRecordOnce(t *testing.T) {
	ctx := context.Background()
	fx := newPairFixture(t)
	record := BirthRecord{ActualBirthDate: dateOf(2025, 4, 1), ActualOffspringCount: 3}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := fx.svc.RecordBirth(ctx, fx.event.ID, record)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, domain.ErrKindConflict):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful recording, got %d", succeeded)
	}
	if n := len(fx.svc.ListAnimals(ctx, AnimalFilter{ParentID: &fx.female.ID})); n != 3 {
		t.Fatalf("expected 3 offspring, got %d", n)
	}
}

func TestRecordBirthValidation(t *testing.T) {
	ctx := context.Background()
	fx := newPairFixture(t)
	if _, _, err := fx.svc.RecordBirth(ctx, fx.event.ID, BirthRecord{ActualOffspringCount: 2}); !errors.Is(err, domain.ErrKindValidation) {
		t.Fatalf("expected validation error for missing date, got %v", err)
	}
	if _, _, err := fx.svc.RecordBirth(ctx, fx.event.ID, BirthRecord{ActualBirthDate: dateOf(2025, 4, 1), ActualOffspringCount: -1}); !errors.Is(err, domain.ErrKindValidation) {
		t.Fatalf("expected validation error for negative count, got %v", err)
	}
	if _, _, err := fx.svc.RecordBirth(ctx, 999, BirthRecord{ActualBirthDate: dateOf(2025, 4, 1)}); !errors.Is(err, domain.ErrKindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordBirthZeroPredictedLitterLeavesROIUnset(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := mustCreate(t, svc, rabbit("M", domain.GenderMale))
	f := mustCreate(t, svc, rabbit("F", domain.GenderFemale))
	e, _, err := svc.CreateBreedingEvent(ctx, BreedingEventInput{MaleID: m.ID, FemaleID: f.ID, BreedingDate: dateOf(2025, 3, 1), PredictedLitterSize: intPtr(0)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	out, _, err := svc.RecordBirth(ctx, e.ID, BirthRecord{ActualBirthDate: dateOf(2025, 4, 1), ActualOffspringCount: 0})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if out.Event.ActualROI != nil || len(out.Offspring) != 0 || out.Event.Status != domain.EventStatusBirthed {
		t.Fatalf("unexpected outcome %+v", out.Event)
	}
	if _, _, err := svc.RecordBirth(ctx, e.ID, BirthRecord{ActualBirthDate: dateOf(2025, 4, 1), ActualOffspringCount: 2}); !errors.Is(err, domain.ErrKindConflict) {
		t.Fatalf("expected birthed event to reject another recording, got %v", err)
	}
	if _, err := svc.DeleteBreedingEvent(ctx, e.ID); err != nil {
		t.Fatalf("event without offspring should be deletable: %v", err)
	}
}

func TestUpdateBreedingEventStatus(t *testing.T) {
	ctx := context.Background()
	fx := newPairFixture(t)
	if _, _, err := fx.svc.UpdateBreedingEventStatus(ctx, fx.event.ID, domain.EventStatusBirthed); !errors.Is(err, domain.ErrKindValidation) {
		t.Fatalf("expected birthed to be rejected, got %v", err)
	}
	if _, _, err := fx.svc.UpdateBreedingEventStatus(ctx, fx.event.ID, domain.EventStatusPending); !errors.Is(err, domain.ErrKindValidation) {
		t.Fatalf("expected pending to be rejected, got %v", err)
	}
	updated, _, err := fx.svc.UpdateBreedingEventStatus(ctx, fx.event.ID, domain.EventStatusUnsuccessful)
	if err != nil || updated.Status != domain.EventStatusUnsuccessful {
		t.Fatalf("expected unsuccessful, got %+v %v", updated, err)
	}
	if _, _, err := fx.svc.UpdateBreedingEventStatus(ctx, fx.event.ID, domain.EventStatusSuccessful); !errors.Is(err, domain.ErrKindConflict) {
		t.Fatalf("expected terminal status conflict, got %v", err)
	}
	if _, _, err := fx.svc.RecordBirth(ctx, fx.event.ID, BirthRecord{ActualBirthDate: dateOf(2025, 4, 1), ActualOffspringCount: 1}); !errors.Is(err, domain.ErrKindConflict) {
		t.Fatalf("expected birth on unsuccessful event to conflict, got %v", err)
	}
	if _, _, err := fx.svc.UpdateBreedingEventStatus(ctx, 999, domain.EventStatusSuccessful); !errors.Is(err, domain.ErrKindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteBreedingEvent(t *testing.T) {
	ctx := context.Background()
	fx := newPairFixture(t)
	if _, _, err := fx.svc.RecordBirth(ctx, fx.event.ID, BirthRecord{ActualBirthDate: dateOf(2025, 4, 1), ActualOffspringCount: 2}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := fx.svc.DeleteBreedingEvent(ctx, fx.event.ID); !errors.Is(err, domain.ErrKindConflict) {
		t.Fatalf("expected conflict deleting birthed event, got %v", err)
	}
	pending, _, err := fx.svc.CreateBreedingEvent(ctx, BreedingEventInput{MaleID: fx.male.ID, FemaleID: fx.female.ID, BreedingDate: dateOf(2025, 8, 1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fx.svc.DeleteBreedingEvent(ctx, pending.ID); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
	if _, err := fx.svc.GetBreedingEvent(ctx, pending.ID); !errors.Is(err, domain.ErrKindNotFound) {
		t.Fatalf("expected deleted event to be gone, got %v", err)
	}
}

func TestLifecycleRuleBlocksDirectTerminalChanges(t *testing.T) {
	ctx := context.Background()
	fx := newPairFixture(t)
	if _, _, err := fx.svc.RecordBirth(ctx, fx.event.ID, BirthRecord{ActualBirthDate: dateOf(2025, 4, 1), ActualOffspringCount: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	_, err := fx.svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateBreedingEvent(fx.event.ID, func(e *BreedingEvent) error {
			e.Status = domain.EventStatusPending
			e.OffspringIDs = nil
			e.PredictedROI = intPtr(1)
			return nil
		})
		return err
	})
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(violation.Result.Violations) != 3 {
		t.Fatalf("expected status, offspring and prediction violations, got %+v", violation.Result.Violations)
	}
}
