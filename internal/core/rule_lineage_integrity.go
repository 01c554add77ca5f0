package core

import (
	"context"
	"fmt"
	"slices"

	"herdbook/pkg/domain"
)

// LineageIntegrityRule keeps the pedigree graph consistent: parent references
// must resolve to animals of the right gender, an animal cannot be its own
// parent, and lineage fields never change after creation.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityAnimal {
			continue
		}
		switch change.Action {
		case domain.ActionCreate:
			if animal, ok := change.After.(domain.Animal); ok {
				checkParents(&res, view, animal)
			}
		case domain.ActionUpdate:
			before, okBefore := change.Before.(domain.Animal)
			after, okAfter := change.After.(domain.Animal)
			if okBefore && okAfter {
				checkLineageUnchanged(&res, before, after)
			}
		}
	}
	return res, nil
}

func checkParents(res *domain.Result, view domain.TransactionView, child domain.Animal) {
	refs := []struct {
		id     *int64
		gender domain.Gender
		label  string
	}{
		{child.ParentMaleID, domain.GenderMale, "sire"},
		{child.ParentFemaleID, domain.GenderFemale, "dam"},
	}
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		if *ref.id == child.ID {
			res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("animal %d references itself as %s", child.ID, ref.label)))
			continue
		}
		parent, ok := view.FindAnimal(*ref.id)
		if !ok {
			res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("animal %d references missing %s %d", child.ID, ref.label, *ref.id)))
			continue
		}
		if parent.Gender != ref.gender {
			res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("animal %d %s %d is %s", child.ID, ref.label, parent.ID, parent.Gender)))
		}
	}
}

func checkLineageUnchanged(res *domain.Result, before, after domain.Animal) {
	switch {
	case !equalInt64Ptr(before.ParentMaleID, after.ParentMaleID), !equalInt64Ptr(before.ParentFemaleID, after.ParentFemaleID):
		res.Violations = append(res.Violations, lineageViolation(after.ID, fmt.Sprintf("animal %d parents are immutable", after.ID)))
	case before.Generation != after.Generation:
		res.Violations = append(res.Violations, lineageViolation(after.ID, fmt.Sprintf("animal %d generation is immutable", after.ID)))
	case !slices.Equal(before.Ancestry, after.Ancestry):
		res.Violations = append(res.Violations, lineageViolation(after.ID, fmt.Sprintf("animal %d ancestry is immutable", after.ID)))
	}
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func lineageViolation(id int64, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "lineage_integrity",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityAnimal,
		EntityID: id,
	}
}
