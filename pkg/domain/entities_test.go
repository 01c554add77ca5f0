package domain

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestGenderHelpers(t *testing.T) {
	if GenderMale.Opposite() != GenderFemale || GenderFemale.Opposite() != GenderMale {
		t.Fatalf("unexpected opposites")
	}
	if Gender("hermaphrodite").Opposite() != "" || Gender("").Valid() {
		t.Fatalf("unknown genders must have no opposite and be invalid")
	}
}

func TestEventStatusTerminal(t *testing.T) {
	for status, want := range map[EventStatus]bool{
		EventStatusPending:      false,
		EventStatusSuccessful:   true,
		EventStatusUnsuccessful: true,
		EventStatusBirthed:      true,
	} {
		if status.Terminal() != want {
			t.Fatalf("%s: expected terminal=%v", status, want)
		}
	}
}

func TestAnimalHelpers(t *testing.T) {
	a := Animal{Base: Base{ID: 12}, Code: "DOE", ParentFemaleID: ptr(int64(4)), Fertility: ptr(70)}
	if a.AncestryToken() != "DOE-12" {
		t.Fatalf("unexpected token %s", a.AncestryToken())
	}
	if a.HealthOrDefault() != DefaultTraitValue || a.FertilityOrDefault() != 70 || a.GrowthRateOrDefault() != 85 {
		t.Fatalf("unexpected trait defaults")
	}
	if !a.HasParent(4) || a.HasParent(12) {
		t.Fatalf("unexpected parent lookup")
	}
	if !slices.Equal(a.ParentIDs(), []int64{4}) {
		t.Fatalf("unexpected parent ids %v", a.ParentIDs())
	}
	a.ParentMaleID = ptr(int64(3))
	if !slices.Equal(a.ParentIDs(), []int64{3, 4}) {
		t.Fatalf("expected sire first, got %v", a.ParentIDs())
	}
}

func TestHasRecordedOffspring(t *testing.T) {
	born := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		event BreedingEvent
		want  bool
	}{
		{"pending", BreedingEvent{}, false},
		{"count without date", BreedingEvent{ActualOffspringCount: ptr(3)}, false},
		{"zero litter", BreedingEvent{ActualBirthDate: &born, ActualOffspringCount: ptr(0)}, false},
		{"counted", BreedingEvent{ActualBirthDate: &born, ActualOffspringCount: ptr(3)}, true},
		{"ids", BreedingEvent{ActualBirthDate: &born, OffspringIDs: []int64{9}}, true},
	}
	for _, tc := range cases {
		if got := tc.event.HasRecordedOffspring(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestAnimalFilterMatches(t *testing.T) {
	a := Animal{SpeciesType: "goat", Gender: GenderFemale, Status: AnimalStatusActive, ParentMaleID: ptr(int64(2))}
	cases := []struct {
		filter AnimalFilter
		want   bool
	}{
		{AnimalFilter{}, true},
		{AnimalFilter{SpeciesType: "goat", Gender: GenderFemale, Status: AnimalStatusActive, ParentID: ptr(int64(2))}, true},
		{AnimalFilter{SpeciesType: "rabbit"}, false},
		{AnimalFilter{Gender: GenderMale}, false},
		{AnimalFilter{Status: AnimalStatusSold}, false},
		{AnimalFilter{ParentID: ptr(int64(3))}, false},
	}
	for i, tc := range cases {
		if got := tc.filter.Matches(a); got != tc.want {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, got)
		}
	}
}

func TestBreedingEventFilterMatches(t *testing.T) {
	e := BreedingEvent{MaleID: 1, FemaleID: 2, Status: EventStatusPending, SpeciesType: "rabbit"}
	if !(BreedingEventFilter{AnimalID: ptr(int64(2))}).Matches(e) || !(BreedingEventFilter{AnimalID: ptr(int64(1))}).Matches(e) {
		t.Fatalf("expected either participant to match")
	}
	if (BreedingEventFilter{AnimalID: ptr(int64(5))}).Matches(e) || (BreedingEventFilter{Status: EventStatusBirthed}).Matches(e) {
		t.Fatalf("unexpected match")
	}
	if (BreedingEventFilter{SpeciesType: "duck"}).Matches(e) {
		t.Fatalf("unexpected species match")
	}
}

func TestAnimalJSONKeepsNullParents(t *testing.T) {
	data, err := json.Marshal(Animal{Code: "A", Gender: GenderMale})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"parent_male_id", "parent_female_id"} {
		if v, ok := fields[key]; !ok || v != nil {
			t.Fatalf("expected %s to be present and null, got %v", key, v)
		}
	}
	if fields["animal_code"] != "A" {
		t.Fatalf("unexpected code field %v", fields["animal_code"])
	}
}
