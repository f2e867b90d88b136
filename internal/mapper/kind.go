// Package mapper translates between the remote service's heterogeneous JSON
// issue representations and the normalized local schema. All functions are
// pure: no I/O, total over reasonably shaped input.
package mapper

import "strings"

// Kind discriminates the five issue categories sharing one record shape.
type Kind string

const (
	KindRequirement   Kind = "REQUIREMENT"
	KindTestCase      Kind = "TEST_CASE"
	KindTestPlan      Kind = "TEST_PLAN"
	KindTestExecution Kind = "TEST_EXECUTION"
	KindDefect        Kind = "DEFECT"
)

// Kinds lists all issue kinds in tree-scope order.
var Kinds = []Kind{KindRequirement, KindTestCase, KindTestPlan, KindTestExecution, KindDefect}

// scopeByKind maps each kind to the remote treeType path segment.
var scopeByKind = map[Kind]string{
	KindRequirement:   "requirements",
	KindTestCase:      "test-cases",
	KindTestPlan:      "test-plans",
	KindTestExecution: "test-executions",
	KindDefect:        "defects",
}

// ParseKind normalizes a remote node type tag to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindRequirement:
		return KindRequirement, true
	case KindTestCase:
		return KindTestCase, true
	case KindTestPlan:
		return KindTestPlan, true
	case KindTestExecution:
		return KindTestExecution, true
	case KindDefect:
		return KindDefect, true
	}
	return "", false
}

// KindForScope maps a treeType scope ("test-cases") to its Kind.
func KindForScope(scope string) (Kind, bool) {
	for k, s := range scopeByKind {
		if s == scope {
			return k, true
		}
	}
	return "", false
}

// ScopeForKind maps a Kind to its treeType scope path segment.
func ScopeForKind(kind Kind) string {
	return scopeByKind[kind]
}
