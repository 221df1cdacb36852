package runtime

import "iter"

// Stage is the introspection contract every pipeline node exposes. The hook,
// lift, and trace components reason about pipelines exclusively through it;
// only assembly adds nodes, so the graph is acyclic and fixed once built.
type Stage interface {
	// Name returns the short role label of the stage ("just", "map", ...).
	Name() string
	// Tags yields the stage's own key/value labels. Tags do not aggregate
	// from parents; a predicate sees exactly the visited node's set.
	Tags() iter.Seq2[string, string]
	// Parents yields the immediate upstream stages in connection order.
	// Sources yield nothing; fan-in stages yield one per input.
	Parents() iter.Seq[Stage]
}

// Tag is one user-attached key/value label on a stage.
type Tag struct {
	Key   string
	Value string
}

// HasTag returns a lift predicate matching stages that carry the given pair.
func HasTag(key, value string) LiftPredicate {
	return func(s Stage) bool {
		for k, v := range s.Tags() {
			if k == key && v == value {
				return true
			}
		}
		return false
	}
}

// ParentCount walks Parents once and reports how many immediate upstream
// stages s has.
func ParentCount(s Stage) int {
	n := 0
	for range s.Parents() {
		n++
	}
	return n
}
