package mapper

import "strconv"

// ToLocal extracts the normalized fields for kind from a decoded remote
// payload. It is total over reasonably shaped input: unknown or absent
// fields map to empty values, never to errors.
func ToLocal(kind Kind, payload map[string]any) (*Fields, error) {
	f, err := New(kind)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return f, nil
	}

	f.RemoteKey = str(payload["testKey"])
	f.Summary = str(payload["summary"])
	f.Description = str(payload["description"])
	f.Assignee = str(payload["assigneeId"])
	f.ProjectKey = str(payload["projectKey"])
	f.ParentKey = str(payload["parentTestKey"])
	f.Priority = namedValue(payload["priority"])
	f.Status = statusValue(payload["status"])
	f.Labels = stringList(payload["labels"])
	f.Components = nameList(payload["components"])
	f.Versions = nameList(payload["versions"])
	f.TimeEstimate = str(payload["timeEstimate"])
	f.Environment = str(payload["environment"])
	f.Created = str(payload["created"])
	f.Updated = str(payload["updated"])
	f.Links = issueLinks(payload)

	switch kind {
	case KindRequirement:
		f.Requirement.EpicName = str(payload["epicName"])
		f.Requirement.CoveredTestCases = linkRefs(payload["testCasesCovered"])
	case KindTestCase:
		f.TestCase.Preconditions = str(payload["preconditions"])
		f.TestCase.Steps = stepsFromPayload(payload)
		f.TestCase.CoveredRequirements = linkRefs(payload["coveredRequirements"])
	case KindTestPlan:
		f.TestPlan.IncludedTestCases = linkRefs(payload["includedTestCases"])
		f.TestPlan.Executions = linkRefs(payload["executions"])
	case KindTestExecution:
		f.TestExecution.Result = statusValue(payload["result"])
		f.TestExecution.TestPlanKey = str(payload["testPlan"])
		f.TestExecution.StartDate = str(payload["startDate"])
		f.TestExecution.EndDate = str(payload["endDate"])
		f.TestExecution.ExecutedBy = personName(payload["executedBy"])
		f.TestExecution.CaseExecutions = caseExecutions(payload["testCaseExecutions"])
	case KindDefect:
		f.Defect.DetectingExecutions = linkRefs(payload["detectingExecutions"])
		f.Defect.IdentifyingTestCases = linkRefs(payload["identifyingTestCases"])
	}
	return f, nil
}

// issueLinks parses the host's standard issuelinks array, found either at
// the top level or under a "fields" envelope. The link type name gets a
// direction suffix so both ends of an asymmetric link stay distinguishable.
func issueLinks(payload map[string]any) []IssueLink {
	src := payload
	if fields, ok := payload["fields"].(map[string]any); ok {
		src = fields
	}
	raw, ok := src["issuelinks"].([]any)
	if !ok {
		return nil
	}

	var out []IssueLink
	for _, v := range raw {
		link, ok := v.(map[string]any)
		if !ok {
			continue
		}
		relType := "Link"
		if t, ok := link["type"].(map[string]any); ok {
			if name := str(t["name"]); name != "" {
				relType = name
			}
		}
		other, direction := link["outwardIssue"], "out"
		if _, ok := other.(map[string]any); !ok {
			other, direction = link["inwardIssue"], "in"
		}
		om, ok := other.(map[string]any)
		if !ok {
			continue
		}
		key := str(om["key"])
		if key == "" {
			continue
		}
		out = append(out, IssueLink{
			RelType: relType + " (" + direction + ")",
			Ref:     LinkRef{TestKey: key, IssueID: int64Of(om["id"])},
		})
	}
	return out
}

// str coerces a JSON scalar to a string; nil and non-scalars become "".
func str(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// intOf coerces a JSON number (or numeric string) to an int; 0 otherwise.
func intOf(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n
		}
	}
	return 0
}

// int64Of coerces a JSON number to an int64; 0 otherwise.
func int64Of(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case int64:
		return x
	case int:
		return int64(x)
	}
	return 0
}

// namedValue extracts the name of an {id, name} object, or the scalar
// itself when the remote sends a bare value.
func namedValue(v any) string {
	if m, ok := v.(map[string]any); ok {
		if name := str(m["name"]); name != "" {
			return name
		}
		return str(m["id"])
	}
	return str(v)
}

// statusValue extracts a status-like object, preferring name over
// statusName over id.
func statusValue(v any) string {
	if m, ok := v.(map[string]any); ok {
		if name := str(m["name"]); name != "" {
			return name
		}
		if name := str(m["statusName"]); name != "" {
			return name
		}
		return str(m["id"])
	}
	return str(v)
}

// stringList coerces an array of scalars into a string slice.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s := str(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// nameList extracts names from an array of {id} or {id, name} objects,
// falling back to the id when the name is absent.
func nameList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			if s := str(it); s != "" {
				out = append(out, s)
			}
			continue
		}
		if s := namedValue(m); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// linkRefs extracts [{testKey, issueId}] arrays.
func linkRefs(v any) []LinkRef {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []LinkRef
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		key := str(m["testKey"])
		if key == "" {
			key = str(m["key"])
		}
		if key == "" {
			continue
		}
		out = append(out, LinkRef{TestKey: key, IssueID: int64Of(m["issueId"])})
	}
	return out
}

// caseExecutions extracts the test case run rows of a test execution.
func caseExecutions(v any) []CaseExecution {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []CaseExecution
	for idx, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		key := str(m["testCaseKey"])
		if key == "" {
			key = str(m["testKey"])
		}
		if key == "" {
			key = str(m["key"])
		}
		order := intOf(m["order"])
		if order == 0 {
			order = idx + 1
		}
		result := str(m["result"])
		if result == "" {
			result = statusValue(m["result"])
		}
		if result == "" {
			result = str(m["status"])
		}
		ce := CaseExecution{
			TestKey:     key,
			OrderNo:     order,
			Assignee:    personName(m["assignee"]),
			Result:      result,
			Environment: str(m["environment"]),
			ActualTime:  intOf(m["actualTime"]),
			EntryKey:    entryKey(m),
		}
		if defects, ok := m["defects"].([]any); ok {
			for _, d := range defects {
				switch dd := d.(type) {
				case map[string]any:
					if k := str(dd["key"]); k != "" {
						ce.Defects = append(ce.Defects, k)
					} else if k := str(dd["testKey"]); k != "" {
						ce.Defects = append(ce.Defects, k)
					}
				case string:
					ce.Defects = append(ce.Defects, dd)
				}
			}
		}
		out = append(out, ce)
	}
	return out
}

// personName extracts a person reference, preferring display name.
func personName(v any) string {
	if m, ok := v.(map[string]any); ok {
		for _, k := range []string{"displayName", "name", "key"} {
			if s := str(m[k]); s != "" {
				return s
			}
		}
		return ""
	}
	return str(v)
}

// entryKey finds the run row's own remote key under its known aliases.
func entryKey(m map[string]any) string {
	for _, k := range []string{"testCaseExecutionKey", "tceKey", "executionKey"} {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}
