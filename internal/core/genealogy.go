package core

import "herdbook/pkg/domain"

// RelationshipClass names how two animals are genealogically connected.
type RelationshipClass string

// Relationship classes in classification precedence order.
const (
	ClassParentChild      RelationshipClass = "parent_child"
	ClassSiblings         RelationshipClass = "siblings"
	ClassHalfSiblings     RelationshipClass = "half_siblings"
	ClassGrandparent      RelationshipClass = "grandparent"
	ClassGreatGrandparent RelationshipClass = "great_grandparent"
	ClassCousins          RelationshipClass = "cousins"
	ClassSharedAncestry   RelationshipClass = "shared_ancestry"
	ClassUnrelated        RelationshipClass = "unrelated"
	ClassNotFound         RelationshipClass = "not_found"
)

// maxAncestorDepth bounds ancestor walks: 1 parent, 2 grandparent,
// 3 great-grandparent.
const maxAncestorDepth = 3

// Relationship is a classification result. Degree is informational
// (1 parent/sibling, 2 grandparent/cousin, 3 great-grandparent, 0 otherwise).
type Relationship struct {
	Class  RelationshipClass `json:"class"`
	Degree int               `json:"degree"`
}

// AnimalLookup resolves animals by id during ancestor walks. Any
// TransactionView satisfies it.
type AnimalLookup interface {
	FindAnimal(id int64) (Animal, bool)
}

// Classify returns the first matching relationship between a and b.
// Ancestors missing from lookup are skipped.
func Classify(lookup AnimalLookup, a, b Animal) Relationship {
	if a.HasParent(b.ID) || b.HasParent(a.ID) {
		return Relationship{Class: ClassParentChild, Degree: 1}
	}
	if rel, ok := siblingRelationship(a, b); ok {
		return rel
	}
	if depth := ancestorDepth(lookup, a, b.ID); depth > 1 {
		return generationalRelationship(depth)
	}
	if depth := ancestorDepth(lookup, b, a.ID); depth > 1 {
		return generationalRelationship(depth)
	}
	if areCousins(lookup, a, b) {
		return Relationship{Class: ClassCousins, Degree: 2}
	}
	if sharesAncestry(a, b) {
		return Relationship{Class: ClassSharedAncestry}
	}
	return Relationship{Class: ClassUnrelated}
}

// ClassifyByID resolves both animals and classifies them. A missing animal
// yields ClassNotFound together with a domain.ErrNotFound.
func ClassifyByID(lookup AnimalLookup, aID, bID int64) (Relationship, error) {
	a, ok := lookup.FindAnimal(aID)
	if !ok {
		return Relationship{Class: ClassNotFound}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: aID}
	}
	b, ok := lookup.FindAnimal(bID)
	if !ok {
		return Relationship{Class: ClassNotFound}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: bID}
	}
	return Classify(lookup, a, b), nil
}

func siblingRelationship(a, b Animal) (Relationship, bool) {
	sameSire := a.ParentMaleID != nil && b.ParentMaleID != nil && *a.ParentMaleID == *b.ParentMaleID
	sameDam := a.ParentFemaleID != nil && b.ParentFemaleID != nil && *a.ParentFemaleID == *b.ParentFemaleID
	if sameSire && sameDam {
		return Relationship{Class: ClassSiblings, Degree: 1}, true
	}
	for _, pa := range a.ParentIDs() {
		for _, pb := range b.ParentIDs() {
			if pa == pb {
				return Relationship{Class: ClassHalfSiblings, Degree: 1}, true
			}
		}
	}
	return Relationship{}, false
}

func generationalRelationship(depth int) Relationship {
	if depth == 2 {
		return Relationship{Class: ClassGrandparent, Degree: 2}
	}
	return Relationship{Class: ClassGreatGrandparent, Degree: 3}
}

// ancestorDepth walks from's ancestors breadth-first and returns the
// generation at which target appears, or 0 when it does not appear within
// maxAncestorDepth. The visited set keeps cyclic parent data finite.
func ancestorDepth(lookup AnimalLookup, from Animal, target int64) int {
	visited := map[int64]struct{}{from.ID: {}}
	frontier := from.ParentIDs()
	for depth := 1; depth <= maxAncestorDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, id := range frontier {
			if id == target {
				return depth
			}
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			if parent, ok := lookup.FindAnimal(id); ok {
				next = append(next, parent.ParentIDs()...)
			}
		}
		frontier = next
	}
	return 0
}

// areCousins reports whether a and b have distinct same-side parents that
// share a parent themselves.
func areCousins(lookup AnimalLookup, a, b Animal) bool {
	sides := [][2]*int64{
		{a.ParentMaleID, b.ParentMaleID},
		{a.ParentFemaleID, b.ParentFemaleID},
	}
	for _, side := range sides {
		if side[0] == nil || side[1] == nil || *side[0] == *side[1] {
			continue
		}
		pa, okA := lookup.FindAnimal(*side[0])
		pb, okB := lookup.FindAnimal(*side[1])
		if !okA || !okB {
			continue
		}
		for _, gp := range pa.ParentIDs() {
			if pb.HasParent(gp) {
				return true
			}
		}
	}
	return false
}

func sharesAncestry(a, b Animal) bool {
	if len(a.Ancestry) == 0 || len(b.Ancestry) == 0 {
		return false
	}
	tokens := make(map[string]struct{}, len(a.Ancestry))
	for _, t := range a.Ancestry {
		tokens[t] = struct{}{}
	}
	for _, t := range b.Ancestry {
		if _, ok := tokens[t]; ok {
			return true
		}
	}
	return false
}
