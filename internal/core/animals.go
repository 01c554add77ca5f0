package core

import (
	"context"

	"herdbook/pkg/domain"
)

// CreateAnimal registers an animal. When parents are declared they must exist
// with the matching gender; generation and ancestry are then derived from
// them and any supplied values are replaced.
func (s *Service) CreateAnimal(ctx context.Context, animal Animal) (Animal, Result, error) {
	var created Animal
	var res Result
	err := s.run(ctx, "create_animal", func(ctx context.Context) (int64, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if err := deriveLineage(tx, &animal); err != nil {
				return err
			}
			var err error
			created, err = tx.CreateAnimal(animal)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

func deriveLineage(tx Transaction, animal *Animal) error {
	var parents []Animal
	if animal.ParentMaleID != nil {
		sire, err := findParent(tx, *animal.ParentMaleID, domain.GenderMale, animal.ParentFemaleID)
		if err != nil {
			return err
		}
		parents = append(parents, sire)
	}
	if animal.ParentFemaleID != nil {
		dam, err := findParent(tx, *animal.ParentFemaleID, domain.GenderFemale, animal.ParentMaleID)
		if err != nil {
			return err
		}
		parents = append(parents, dam)
	}
	switch len(parents) {
	case 0:
		if animal.Generation <= 0 {
			animal.Generation = 1
		}
		return nil
	case 1:
		p := parents[0]
		animal.Generation = p.Generation + 1
		animal.Ancestry = appendUnique(append([]string(nil), p.Ancestry...), p.AncestryToken())
	default:
		animal.Generation = max(parents[0].Generation, parents[1].Generation) + 1
		animal.Ancestry = inheritedAncestry(parents[0], parents[1])
	}
	return nil
}

func findParent(tx Transaction, id int64, want domain.Gender, other *int64) (Animal, error) {
	parent, ok := tx.FindAnimal(id)
	if !ok {
		return Animal{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: id}
	}
	if parent.Gender != want {
		e := domain.ErrInvalidGender{}
		if want == domain.GenderMale {
			e.MaleID, e.MaleGender = id, parent.Gender
			if other != nil {
				e.FemaleID = *other
			}
			e.FemaleGender = domain.GenderFemale
		} else {
			e.FemaleID, e.FemaleGender = id, parent.Gender
			if other != nil {
				e.MaleID = *other
			}
			e.MaleGender = domain.GenderMale
		}
		return Animal{}, e
	}
	return parent, nil
}

func appendUnique(tokens []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	for _, t := range extra {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// GetAnimal returns the animal with id or a domain.ErrNotFound.
func (s *Service) GetAnimal(_ context.Context, id int64) (Animal, error) {
	a, ok := s.store.GetAnimal(id)
	if !ok {
		return Animal{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: id}
	}
	return a, nil
}

// ListAnimals returns the animals matching filter ordered by id.
func (s *Service) ListAnimals(_ context.Context, filter AnimalFilter) []Animal {
	return s.store.ListAnimals(filter)
}

// UpdateAnimal applies mutator to an animal. Lineage fields are immutable and
// changing them is rejected by the lineage rule.
func (s *Service) UpdateAnimal(ctx context.Context, id int64, mutator func(*Animal) error) (Animal, Result, error) {
	var updated Animal
	var res Result
	err := s.run(ctx, "update_animal", func(ctx context.Context) (int64, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateAnimal(id, mutator)
			return err
		})
		return id, err
	})
	return updated, res, err
}

// DeleteAnimal removes an animal. Animals still referenced as a parent or
// breeding participant are marked inactive instead and soft is true.
func (s *Service) DeleteAnimal(ctx context.Context, id int64) (soft bool, res Result, err error) {
	err = s.run(ctx, "delete_animal", func(ctx context.Context) (int64, error) {
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			soft, err = tx.DeleteAnimal(id)
			return err
		})
		return id, txErr
	})
	if err == nil && !soft && s.relations != nil {
		s.relations.Forget(id)
	}
	return soft, res, err
}
