package core

// RiskVerdict is the breed/don't-breed decision for a relationship class.
type RiskVerdict struct {
	IsRisky bool   `json:"is_risky"`
	Reason  string `json:"reason"`
}

var riskReasons = map[RelationshipClass]string{
	ClassParentChild:      "direct parent-offspring relationship",
	ClassSiblings:         "full siblings share both parents",
	ClassHalfSiblings:     "half siblings share one parent",
	ClassGrandparent:      "grandparent-grandchild relationship",
	ClassGreatGrandparent: "great-grandparent relationship",
	ClassCousins:          "first cousins share a grandparent",
	ClassSharedAncestry:   "animals share common ancestors",
}

// EvaluateRisk maps a class to a verdict. Every related class is risky
// regardless of degree; Unrelated and NotFound are not.
func EvaluateRisk(class RelationshipClass) RiskVerdict {
	if reason, ok := riskReasons[class]; ok {
		return RiskVerdict{IsRisky: true, Reason: reason}
	}
	if class == ClassNotFound {
		return RiskVerdict{Reason: "relationship unknown, animal not found"}
	}
	return RiskVerdict{Reason: "no known relationship"}
}
