package mapper

import "fmt"

// LinkRef identifies a remote issue referenced by a link-bearing field.
type LinkRef struct {
	TestKey string
	IssueID int64
}

// IssueLink is one generic issue link from the host's standard link array,
// typed by the link name plus a direction suffix, e.g. "Relates (out)".
type IssueLink struct {
	RelType string
	Ref     LinkRef
}

// Step is one normalized test step. Text is plain: markup from the remote
// rich-text representation is stripped on the way in.
type Step struct {
	GroupNo  int
	OrderNo  int
	Action   string
	Input    string
	Expected string
}

// CaseExecution is one test case run row inside a test execution payload.
type CaseExecution struct {
	TestKey     string
	OrderNo     int
	Assignee    string
	Result      string
	Environment string
	Defects     []string
	ActualTime  int
	EntryKey    string
}

// Common is the header shared by all five kinds: descriptive fields plus
// the remote identity and the remote-owned timestamps (mirrored, never
// written back).
type Common struct {
	RemoteKey    string
	Summary      string
	Description  string
	Assignee     string
	Priority     string
	Status       string
	Labels       []string
	Components   []string
	Versions     []string
	TimeEstimate string
	Environment  string
	ProjectKey   string
	ParentKey    string
	Created      string
	Updated      string
}

// RequirementFields is the requirement-specific payload.
type RequirementFields struct {
	EpicName         string
	CoveredTestCases []LinkRef
}

// TestCaseFields is the test-case-specific payload.
type TestCaseFields struct {
	Preconditions       string
	Steps               []Step
	CoveredRequirements []LinkRef
}

// TestPlanFields is the test-plan-specific payload.
type TestPlanFields struct {
	IncludedTestCases []LinkRef
	Executions        []LinkRef
}

// TestExecutionFields is the test-execution-specific payload.
type TestExecutionFields struct {
	Result         string
	TestPlanKey    string
	StartDate      string
	EndDate        string
	ExecutedBy     string
	CaseExecutions []CaseExecution
}

// DefectFields is the defect-specific payload.
type DefectFields struct {
	DetectingExecutions  []LinkRef
	IdentifyingTestCases []LinkRef
}

// Fields is the normalized form of one remote issue: a tagged variant with
// a common header and exactly one kind-specific payload. Construct with New
// so an invalid field-for-kind combination cannot be represented.
type Fields struct {
	Kind Kind
	Common

	// Links holds the generic issue links every kind may carry, separate
	// from the kind-specific coverage fields. They mirror one way: the
	// entity update payload cannot carry them back.
	Links []IssueLink

	Requirement   *RequirementFields
	TestCase      *TestCaseFields
	TestPlan      *TestPlanFields
	TestExecution *TestExecutionFields
	Defect        *DefectFields
}

// New returns a Fields with the payload variant matching kind allocated.
func New(kind Kind) (*Fields, error) {
	f := &Fields{Kind: kind}
	switch kind {
	case KindRequirement:
		f.Requirement = &RequirementFields{}
	case KindTestCase:
		f.TestCase = &TestCaseFields{}
	case KindTestPlan:
		f.TestPlan = &TestPlanFields{}
	case KindTestExecution:
		f.TestExecution = &TestExecutionFields{}
	case KindDefect:
		f.Defect = &DefectFields{}
	default:
		return nil, fmt.Errorf("mapper: unknown kind %q", kind)
	}
	return f, nil
}

// Validate checks that exactly the variant matching Kind is set.
func (f *Fields) Validate() error {
	variants := 0
	match := false
	for _, v := range []struct {
		set  bool
		kind Kind
	}{
		{f.Requirement != nil, KindRequirement},
		{f.TestCase != nil, KindTestCase},
		{f.TestPlan != nil, KindTestPlan},
		{f.TestExecution != nil, KindTestExecution},
		{f.Defect != nil, KindDefect},
	} {
		if v.set {
			variants++
			if v.kind == f.Kind {
				match = true
			}
		}
	}
	if variants != 1 || !match {
		return fmt.Errorf("mapper: fields for kind %q carry %d variant payloads", f.Kind, variants)
	}
	return nil
}
