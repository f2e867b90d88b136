package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/quayside/rtmirror/internal/mapper"
)

// Fingerprint hashes the writable content of a remote payload so a re-pull
// can skip unchanged records without field-by-field comparison. It goes
// through the mapper's normalized form: volatile remote fields that never
// land locally can't perturb the hash, and map iteration order can't either
// because encoding/json sorts object keys.
func Fingerprint(f *mapper.Fields) string {
	buf, err := json.Marshal(fingerprintView(f))
	if err != nil {
		// Fields is plain data; Marshal cannot fail on it.
		return ""
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// fingerprintView projects the fields that participate in change detection.
// Remote timestamps stay out: some hosts touch `updated` on reads.
func fingerprintView(f *mapper.Fields) map[string]any {
	v := map[string]any{
		"kind":         string(f.Kind),
		"summary":      f.Summary,
		"description":  f.Description,
		"assignee":     f.Assignee,
		"priority":     f.Priority,
		"status":       f.Status,
		"labels":       f.Labels,
		"components":   f.Components,
		"versions":     f.Versions,
		"timeEstimate": f.TimeEstimate,
		"environment":  f.Environment,
		"parentKey":    f.ParentKey,
		"links":        f.Links,
	}
	switch f.Kind {
	case mapper.KindRequirement:
		v["epicName"] = f.Requirement.EpicName
		v["coveredTestCases"] = f.Requirement.CoveredTestCases
	case mapper.KindTestCase:
		v["preconditions"] = f.TestCase.Preconditions
		v["steps"] = f.TestCase.Steps
		v["coveredRequirements"] = f.TestCase.CoveredRequirements
	case mapper.KindTestPlan:
		v["includedTestCases"] = f.TestPlan.IncludedTestCases
		v["executions"] = f.TestPlan.Executions
	case mapper.KindTestExecution:
		v["result"] = f.TestExecution.Result
		v["testPlan"] = f.TestExecution.TestPlanKey
		v["startDate"] = f.TestExecution.StartDate
		v["endDate"] = f.TestExecution.EndDate
		v["executedBy"] = f.TestExecution.ExecutedBy
		v["caseExecutions"] = f.TestExecution.CaseExecutions
	case mapper.KindDefect:
		v["detectingExecutions"] = f.Defect.DetectingExecutions
		v["identifyingTestCases"] = f.Defect.IdentifyingTestCases
	}
	return v
}
