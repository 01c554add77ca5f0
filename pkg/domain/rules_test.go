package domain

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{}, errors.New("boom")
}

type emptyView struct{}

func (emptyView) ListAnimals() []Animal                         { return nil }
func (emptyView) FindAnimal(int64) (Animal, bool)               { return Animal{}, false }
func (emptyView) ListBreedingEvents() []BreedingEvent           { return nil }
func (emptyView) FindBreedingEvent(int64) (BreedingEvent, bool) { return BreedingEvent{}, false }

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{})
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}})
	if !result.HasBlocking() || len(result.Violations) != 2 {
		t.Fatalf("expected merged blocking result, got %+v", result)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"first"})
	engine.Register(staticRule{"second"})
	if !slices.Equal(engine.Rules(), []string{"first", "second"}) {
		t.Fatalf("unexpected rule order %v", engine.Rules())
	}
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.Violations[1].Rule != "second" {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}

	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}
