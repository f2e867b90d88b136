package mapper

import "strings"

// stepsFromPayload normalizes the remote step representations. The remote
// sends either a stepGroups list (each group holding a steps array or bare
// stepColumns) or a plain steps field that may be a 2D value array. Column
// text is stripped of markup; a step without an action or expected result
// is noise and gets dropped.
func stepsFromPayload(payload map[string]any) []Step {
	var out []Step

	if groups, ok := payload["stepGroups"].([]any); ok {
		for gi, g := range groups {
			group, ok := g.(map[string]any)
			if !ok {
				continue
			}
			if steps, ok := group["steps"].([]any); ok {
				for _, s := range steps {
					sm, ok := s.(map[string]any)
					if !ok {
						continue
					}
					if st, ok := stepFromColumns(sm["stepColumns"]); ok {
						st.GroupNo = gi + 1
						st.OrderNo = len(out) + 1
						out = append(out, st)
					}
				}
				continue
			}
			if st, ok := stepFromColumns(group["stepColumns"]); ok {
				st.GroupNo = gi + 1
				st.OrderNo = len(out) + 1
				out = append(out, st)
			}
		}
		return out
	}

	raw, ok := payload["steps"].([]any)
	if !ok {
		return nil
	}
	for gi, g := range raw {
		switch group := g.(type) {
		case []any:
			// 2D form: each inner item is {value: "<p>…</p>"}.
			for _, it := range group {
				m, ok := it.(map[string]any)
				if !ok {
					continue
				}
				out = append(out, Step{
					GroupNo: gi + 1,
					OrderNo: len(out) + 1,
					Action:  StripTags(str(m["value"])),
				})
			}
		case map[string]any:
			if st, ok := stepFromColumns(group["stepColumns"]); ok {
				st.GroupNo = gi + 1
				st.OrderNo = len(out) + 1
				out = append(out, st)
			}
		}
	}
	return out
}

// stepFromColumns classifies stepColumns rows by column name. Returns false
// when the columns carry neither an action nor an expected result.
func stepFromColumns(v any) (Step, bool) {
	cols, ok := v.([]any)
	if !ok {
		return Step{}, false
	}
	var st Step
	for _, c := range cols {
		col, ok := c.(map[string]any)
		if !ok {
			continue
		}
		name := strings.ToLower(str(col["name"]))
		value := StripTags(str(col["value"]))
		switch {
		case strings.Contains(name, "action") || strings.Contains(name, "step"):
			st.Action = value
		case strings.Contains(name, "input") || strings.Contains(name, "data"):
			st.Input = value
		case strings.Contains(name, "expected") || strings.Contains(name, "result") || strings.Contains(name, "output"):
			st.Expected = value
		}
	}
	if st.Action == "" && st.Expected == "" {
		return Step{}, false
	}
	return st, true
}

// stepsWirePayload renders steps in the 2D form the issue write endpoint
// accepts: one inner list per step, action text re-wrapped as a paragraph.
func stepsWirePayload(steps []Step) []any {
	out := make([]any, 0, len(steps))
	for _, st := range steps {
		out = append(out, []any{map[string]any{"value": WrapText(st.Action)}})
	}
	return out
}

// StepsPayload renders steps for the dedicated steps endpoint in the
// stepGroups form, grouping consecutive steps by GroupNo and keeping all
// three columns.
func StepsPayload(steps []Step) map[string]any {
	var groups []map[string]any
	var cur []map[string]any
	curGroup := 0
	flush := func() {
		if cur != nil {
			groups = append(groups, map[string]any{"steps": cur})
			cur = nil
		}
	}
	for _, st := range steps {
		if st.GroupNo != curGroup {
			flush()
			curGroup = st.GroupNo
		}
		cur = append(cur, map[string]any{
			"stepColumns": []map[string]any{
				{"name": "Action", "value": WrapText(st.Action)},
				{"name": "Input", "value": WrapText(st.Input)},
				{"name": "Expected result", "value": WrapText(st.Expected)},
			},
		})
	}
	flush()
	if groups == nil {
		groups = []map[string]any{}
	}
	return map[string]any{"stepGroups": groups}
}

// PlanEntriesPayload renders a test plan's case membership for the plan
// testcases endpoint.
func PlanEntriesPayload(refs []LinkRef) map[string]any {
	cases := make([]map[string]any, 0, len(refs))
	for i, r := range refs {
		cases = append(cases, map[string]any{"key": r.TestKey, "order": i + 1})
	}
	return map[string]any{"testCases": cases}
}

// ExecutionEntriesPayload renders a test execution's run rows for the
// execution testcases endpoint.
func ExecutionEntriesPayload(entries []CaseExecution) map[string]any {
	cases := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		row := map[string]any{
			"key":   e.TestKey,
			"order": e.OrderNo,
		}
		if e.Result != "" {
			row["result"] = e.Result
		}
		if e.Assignee != "" {
			row["assignee"] = e.Assignee
		}
		if e.Environment != "" {
			row["environment"] = e.Environment
		}
		if e.ActualTime != 0 {
			row["actualTime"] = e.ActualTime
		}
		if len(e.Defects) > 0 {
			defects := make([]map[string]any, 0, len(e.Defects))
			for _, d := range e.Defects {
				defects = append(defects, map[string]any{"key": d})
			}
			row["defects"] = defects
		}
		cases = append(cases, row)
	}
	return map[string]any{"testCases": cases}
}
