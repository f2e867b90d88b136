package mapper

// ToRemote renders the writable projection of f as a create/update payload.
// Remote-owned fields (testKey, created, updated) never appear in the
// output. Priority and status go out as {"name": …} objects, components as
// [{"name": …}] and versions as [{"id": …}], matching what the remote write
// endpoints accept.
func ToRemote(f *Fields) (map[string]any, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"summary":     f.Summary,
		"description": f.Description,
	}
	if f.ProjectKey != "" {
		payload["projectKey"] = f.ProjectKey
	}
	if f.ParentKey != "" {
		payload["parentTestKey"] = f.ParentKey
	}
	if f.Assignee != "" {
		payload["assigneeId"] = f.Assignee
	}
	if f.Priority != "" {
		payload["priority"] = map[string]any{"name": f.Priority}
	}
	if f.Status != "" {
		payload["status"] = map[string]any{"name": f.Status}
	}
	if len(f.Labels) > 0 {
		payload["labels"] = append([]string(nil), f.Labels...)
	}
	if len(f.Components) > 0 {
		comps := make([]map[string]any, 0, len(f.Components))
		for _, c := range f.Components {
			comps = append(comps, map[string]any{"name": c})
		}
		payload["components"] = comps
	}
	if len(f.Versions) > 0 {
		vers := make([]map[string]any, 0, len(f.Versions))
		for _, v := range f.Versions {
			vers = append(vers, map[string]any{"id": v})
		}
		payload["versions"] = vers
	}
	if f.TimeEstimate != "" {
		payload["timeEstimate"] = f.TimeEstimate
	}
	if f.Environment != "" {
		payload["environment"] = f.Environment
	}

	switch f.Kind {
	case KindRequirement:
		if f.Requirement.EpicName != "" {
			payload["epicName"] = f.Requirement.EpicName
		}
	case KindTestCase:
		if f.TestCase.Preconditions != "" {
			payload["preconditions"] = f.TestCase.Preconditions
		}
		if len(f.TestCase.Steps) > 0 {
			payload["steps"] = stepsWirePayload(f.TestCase.Steps)
		}
	case KindTestExecution:
		if f.TestExecution.Result != "" {
			payload["result"] = map[string]any{"name": f.TestExecution.Result}
		}
		if f.TestExecution.TestPlanKey != "" {
			payload["testPlan"] = f.TestExecution.TestPlanKey
		}
		if f.TestExecution.StartDate != "" {
			payload["startDate"] = f.TestExecution.StartDate
		}
		if f.TestExecution.EndDate != "" {
			payload["endDate"] = f.TestExecution.EndDate
		}
		if f.TestExecution.ExecutedBy != "" {
			payload["executedBy"] = f.TestExecution.ExecutedBy
		}
	}
	return payload, nil
}

// LinkFields enumerates the link-bearing field names of each kind, i.e. the
// payload keys ApplyLinkUpdates may target for that kind.
func LinkFields(kind Kind) []string {
	switch kind {
	case KindRequirement:
		return []string{"testCasesCovered"}
	case KindTestCase:
		return []string{"coveredRequirements"}
	case KindTestPlan:
		return []string{"includedTestCases", "executions"}
	case KindTestExecution:
		return nil
	case KindDefect:
		return []string{"detectingExecutions", "identifyingTestCases"}
	}
	return nil
}
