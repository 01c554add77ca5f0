package core

import (
	"fmt"
	"math"

	"herdbook/internal/species"
	"herdbook/pkg/domain"
)

const (
	// healthVariation bounds the random offset applied to inherited health.
	healthVariation   = 5
	defaultFertility  = 90
	mixedBreedRatio   = "50/50"
	offspringCodeFmt  = "%s_%02d"
	breedSeparatorFmt = "%s/%s"
)

// OffspringGenerator derives offspring records from two parents and a
// breeding event. Only gender and health variation are random.
type OffspringGenerator struct {
	random  RandomSource
	species *species.Catalog
}

// NewOffspringGenerator returns a generator drawing from random. Nil
// arguments fall back to an unseeded source and the built-in catalog.
func NewOffspringGenerator(random RandomSource, catalog *species.Catalog) *OffspringGenerator {
	if random == nil {
		random = NewRandomSource(0)
	}
	if catalog == nil {
		catalog = species.Default()
	}
	return &OffspringGenerator{random: random, species: catalog}
}

// Generate builds the index-th offspring (1-based) of event. The result has
// no id; the caller persists it.
func (g *OffspringGenerator) Generate(male, female Animal, event BreedingEvent, index int) Animal {
	profile := g.species.Lookup(event.SpeciesType)
	child := Animal{
		Code:           fmt.Sprintf(offspringCodeFmt, event.PairCode, index),
		SpeciesType:    event.SpeciesType,
		ParentMaleID:   int64Ptr(male.ID),
		ParentFemaleID: int64Ptr(female.ID),
		Generation:     max(male.Generation, female.Generation) + 1,
		Ancestry:       inheritedAncestry(male, female),
		PedigreeLevel:  min(male.PedigreeLevel, female.PedigreeLevel),
		Status:         domain.AnimalStatusActive,
		BreedID:        cloneInt64(male.BreedID),
	}
	if event.ActualBirthDate != nil {
		dob := *event.ActualBirthDate
		child.DateOfBirth = &dob
	}

	if male.Breed == female.Breed {
		child.Breed = male.Breed
	} else {
		child.Breed = fmt.Sprintf(breedSeparatorFmt, male.Breed, female.Breed)
		child.IsMixed = true
		child.MixRatio = mixedBreedRatio
		child.SecondaryBreedID = cloneInt64(female.BreedID)
	}

	child.Gender = domain.GenderFemale
	if g.random.Float64() < profile.MaleRatio {
		child.Gender = domain.GenderMale
	}

	mean := float64(male.HealthOrDefault()+female.HealthOrDefault()) / 2
	offset := g.random.IntN(2*healthVariation+1) - healthVariation
	health := clampInt(int(math.Round(mean))+offset, minOffspringHealth, maxOffspringHealth)
	child.Health = &health

	source := female
	if child.Gender == domain.GenderMale {
		source = male
	}
	fertility := defaultFertility
	if source.Fertility != nil {
		fertility = *source.Fertility
	}
	child.Fertility = &fertility

	return child
}

// inheritedAncestry returns both parents' ancestry followed by the parents'
// own tokens, deduplicated in first-seen order.
func inheritedAncestry(male, female Animal) []string {
	out := make([]string, 0, len(male.Ancestry)+len(female.Ancestry)+2)
	seen := make(map[string]struct{}, cap(out))
	add := func(tokens ...string) {
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	add(male.Ancestry...)
	add(female.Ancestry...)
	add(male.AncestryToken(), female.AncestryToken())
	return out
}

func int64Ptr(v int64) *int64 { return &v }

func intPtr(v int) *int { return &v }

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
