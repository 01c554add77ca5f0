// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by herdbook.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAnimal identifies an individual animal record.
	EntityAnimal EntityType = "animal"
	// EntityBreedingEvent identifies a breeding event record.
	EntityBreedingEvent EntityType = "breeding_event"
)

// Gender is the biological sex of an animal.
type Gender string

// Supported genders. Pairings always combine one of each.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Opposite returns the complementary gender, or "" for unknown values.
func (g Gender) Opposite() Gender {
	switch g {
	case GenderMale:
		return GenderFemale
	case GenderFemale:
		return GenderMale
	default:
		return ""
	}
}

// Valid reports whether g is a recognised gender.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// AnimalStatus enumerates animal lifecycle states.
type AnimalStatus string

// Canonical animal statuses.
const (
	AnimalStatusActive   AnimalStatus = "active"
	AnimalStatusInactive AnimalStatus = "inactive"
	AnimalStatusSold     AnimalStatus = "sold"
	// AnimalStatusDeceased is terminal.
	AnimalStatusDeceased AnimalStatus = "deceased"
)

// EventStatus enumerates breeding event states.
type EventStatus string

// Breeding event states. Every state other than pending is terminal.
const (
	EventStatusPending      EventStatus = "pending"
	EventStatusSuccessful   EventStatus = "successful"
	EventStatusUnsuccessful EventStatus = "unsuccessful"
	EventStatusBirthed      EventStatus = "birthed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s EventStatus) Terminal() bool {
	return s == EventStatusSuccessful || s == EventStatusUnsuccessful || s == EventStatusBirthed
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// DefaultTraitValue is assumed for health, fertility and growth rate when unset.
const DefaultTraitValue = 85

// Base contains common fields for all domain records.
type Base struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Animal represents an individual animal tracked by the herd book.
type Animal struct {
	Base
	Code             string       `json:"animal_code"`
	Name             string       `json:"name,omitempty"`
	SpeciesType      string       `json:"species_type"`
	Breed            string       `json:"breed"`
	BreedID          *int64       `json:"breed_id,omitempty"`
	SecondaryBreedID *int64       `json:"secondary_breed_id,omitempty"`
	IsMixed          bool         `json:"is_mixed"`
	MixRatio         string       `json:"mix_ratio,omitempty"`
	Gender           Gender       `json:"gender"`
	DateOfBirth      *time.Time   `json:"date_of_birth,omitempty"`
	Weight           *float64     `json:"weight,omitempty"`
	Color            string       `json:"color,omitempty"`
	Markings         string       `json:"markings,omitempty"`
	ParentMaleID     *int64       `json:"parent_male_id"`
	ParentFemaleID   *int64       `json:"parent_female_id"`
	Generation       int          `json:"generation"`
	Ancestry         []string     `json:"ancestry"`
	PedigreeLevel    int          `json:"pedigree_level"`
	Health           *int         `json:"health,omitempty"`
	Fertility        *int         `json:"fertility,omitempty"`
	GrowthRate       *int         `json:"growth_rate,omitempty"`
	LitterSize       *int         `json:"litter_size,omitempty"`
	OffspringCount   int          `json:"offspring_count"`
	Status           AnimalStatus `json:"status"`
}

// AncestryToken identifies the animal inside descendants' ancestry lists.
func (a Animal) AncestryToken() string {
	return fmt.Sprintf("%s-%d", a.Code, a.ID)
}

// HealthOrDefault returns the recorded health or DefaultTraitValue.
func (a Animal) HealthOrDefault() int { return valueOr(a.Health, DefaultTraitValue) }

// FertilityOrDefault returns the recorded fertility or DefaultTraitValue.
func (a Animal) FertilityOrDefault() int { return valueOr(a.Fertility, DefaultTraitValue) }

// GrowthRateOrDefault returns the recorded growth rate or DefaultTraitValue.
func (a Animal) GrowthRateOrDefault() int { return valueOr(a.GrowthRate, DefaultTraitValue) }

// HasParent reports whether id is recorded as either parent.
func (a Animal) HasParent(id int64) bool {
	return (a.ParentMaleID != nil && *a.ParentMaleID == id) ||
		(a.ParentFemaleID != nil && *a.ParentFemaleID == id)
}

// ParentIDs returns the non-nil parent references, sire first.
func (a Animal) ParentIDs() []int64 {
	ids := make([]int64, 0, 2)
	if a.ParentMaleID != nil {
		ids = append(ids, *a.ParentMaleID)
	}
	if a.ParentFemaleID != nil {
		ids = append(ids, *a.ParentFemaleID)
	}
	return ids
}

// BreedingEvent records a pairing of one male and one female and its outcome.
type BreedingEvent struct {
	Base
	EventCode                 string      `json:"event_code"`
	PairCode                  string      `json:"pair_code"`
	MaleID                    int64       `json:"male_id"`
	FemaleID                  int64       `json:"female_id"`
	SpeciesType               string      `json:"species_type"`
	BreedingDate              time.Time   `json:"breeding_date"`
	NestBoxDate               *time.Time  `json:"nest_box_date,omitempty"`
	ExpectedBirthDate         *time.Time  `json:"expected_birth_date,omitempty"`
	ActualBirthDate           *time.Time  `json:"actual_birth_date,omitempty"`
	WeanDate                  *time.Time  `json:"wean_date,omitempty"`
	Status                    EventStatus `json:"status"`
	GeneticCompatibilityScore *int        `json:"genetic_compatibility_score,omitempty"`
	PredictedLitterSize       *int        `json:"predicted_litter_size,omitempty"`
	PredictedOffspringHealth  *int        `json:"predicted_offspring_health,omitempty"`
	PredictedROI              *int        `json:"predicted_roi,omitempty"`
	ActualOffspringCount      *int        `json:"actual_offspring_count,omitempty"`
	OffspringIDs              []int64     `json:"offspring_ids"`
	ActualROI                 *int        `json:"actual_roi,omitempty"`
	Notes                     string      `json:"notes,omitempty"`
}

// HasRecordedOffspring reports whether a birth with at least one offspring has been recorded.
func (e BreedingEvent) HasRecordedOffspring() bool {
	if e.ActualBirthDate == nil {
		return false
	}
	if len(e.OffspringIDs) > 0 {
		return true
	}
	return e.ActualOffspringCount != nil && *e.ActualOffspringCount > 0
}

// AnimalFilter narrows animal listings. Zero-valued fields match everything.
type AnimalFilter struct {
	SpeciesType string
	Gender      Gender
	Status      AnimalStatus
	ParentID    *int64
}

// Matches reports whether the animal satisfies every set criterion.
func (f AnimalFilter) Matches(a Animal) bool {
	if f.SpeciesType != "" && a.SpeciesType != f.SpeciesType {
		return false
	}
	if f.Gender != "" && a.Gender != f.Gender {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.ParentID != nil && !a.HasParent(*f.ParentID) {
		return false
	}
	return true
}

// BreedingEventFilter narrows breeding event listings.
type BreedingEventFilter struct {
	AnimalID    *int64
	Status      EventStatus
	SpeciesType string
}

// Matches reports whether the event satisfies every set criterion.
func (f BreedingEventFilter) Matches(e BreedingEvent) bool {
	if f.AnimalID != nil && e.MaleID != *f.AnimalID && e.FemaleID != *f.AnimalID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.SpeciesType != "" && e.SpeciesType != f.SpeciesType {
		return false
	}
	return true
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}

func valueOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
