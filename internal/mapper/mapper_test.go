package mapper

import (
	"reflect"
	"testing"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"TEST_CASE", KindTestCase, true},
		{"test_case", KindTestCase, true},
		{" requirement ", KindRequirement, true},
		{"DEFECT", KindDefect, true},
		{"FOLDER", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ParseKind(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseKind(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestScopeRoundTrip(t *testing.T) {
	for _, k := range Kinds {
		scope := ScopeForKind(k)
		if scope == "" {
			t.Fatalf("no scope for kind %q", k)
		}
		back, ok := KindForScope(scope)
		if !ok || back != k {
			t.Errorf("KindForScope(%q) = %q, %v; want %q", scope, back, ok, k)
		}
	}
	if _, ok := KindForScope("folders"); ok {
		t.Error("KindForScope accepted unknown scope")
	}
}

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New(Kind("EPIC")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestFieldsValidate(t *testing.T) {
	f, err := New(KindTestPlan)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("fresh fields invalid: %v", err)
	}

	f.Defect = &DefectFields{}
	if err := f.Validate(); err == nil {
		t.Error("two variant payloads accepted")
	}

	f = &Fields{Kind: KindDefect}
	if err := f.Validate(); err == nil {
		t.Error("zero variant payloads accepted")
	}
}

func TestStripTags(t *testing.T) {
	cases := []struct{ in, want string }{
		{"<p>Click the button</p>", "Click the button"},
		{"  <div><b>bold</b> text</div>  ", "bold text"},
		{"no markup", "no markup"},
		{"<p>a &amp; b</p>", "a & b"},
		{"<p></p>", ""},
	}
	for _, c := range cases {
		if got := StripTags(c.in); got != c.want {
			t.Errorf("StripTags(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	if got := WrapText("log in"); got != "<p>log in</p>" {
		t.Errorf("WrapText = %q", got)
	}
	if got := WrapText("a < b"); got != "<p>a &lt; b</p>" {
		t.Errorf("WrapText escaping = %q", got)
	}
	if got := WrapText("   "); got != "<p>-</p>" {
		t.Errorf("WrapText empty = %q", got)
	}
}

func TestStripThenWrapIsLossy(t *testing.T) {
	in := "<div><span>Click <b>Save</b></span></div>"
	plain := StripTags(in)
	if got := WrapText(plain); got != "<p>Click Save</p>" {
		t.Errorf("re-wrap = %q", got)
	}
	// A second strip/wrap cycle is stable.
	if again := WrapText(StripTags(WrapText(plain))); again != WrapText(plain) {
		t.Errorf("strip/wrap not idempotent: %q", again)
	}
}

func TestToLocal_TestCase(t *testing.T) {
	payload := map[string]any{
		"testKey":       "PROJ-101",
		"summary":       "Login works",
		"description":   "Covers the happy path",
		"assigneeId":    "qa.lead",
		"projectKey":    "PROJ",
		"parentTestKey": "PROJ-10",
		"priority":      map[string]any{"id": float64(3), "name": "High"},
		"status":        map[string]any{"id": float64(1), "statusName": "Draft"},
		"labels":        []any{"smoke", "auth"},
		"components":    []any{map[string]any{"id": float64(7), "name": "web"}},
		"versions":      []any{map[string]any{"id": float64(12)}},
		"timeEstimate":  "2h",
		"environment":   "staging",
		"preconditions": "User exists",
		"created":       "2026-08-01T09:00:00Z",
		"updated":       "2026-08-02T10:00:00Z",
		"stepGroups": []any{
			map[string]any{"steps": []any{
				map[string]any{"stepColumns": []any{
					map[string]any{"name": "Action", "value": "<p>Open login page</p>"},
					map[string]any{"name": "Input data", "value": "<p>user / pass</p>"},
					map[string]any{"name": "Expected result", "value": "<p>Dashboard shown</p>"},
				}},
			}},
			map[string]any{"stepColumns": []any{
				map[string]any{"name": "Action", "value": "<p>Log out</p>"},
			}},
		},
		"coveredRequirements": []any{
			map[string]any{"testKey": "PROJ-5", "issueId": float64(5005)},
		},
	}

	f, err := ToLocal(KindTestCase, payload)
	if err != nil {
		t.Fatal(err)
	}
	if f.RemoteKey != "PROJ-101" || f.Summary != "Login works" {
		t.Errorf("header: key=%q summary=%q", f.RemoteKey, f.Summary)
	}
	if f.Priority != "High" {
		t.Errorf("priority = %q", f.Priority)
	}
	if f.Status != "Draft" {
		t.Errorf("status = %q (statusName fallback)", f.Status)
	}
	if !reflect.DeepEqual(f.Labels, []string{"smoke", "auth"}) {
		t.Errorf("labels = %v", f.Labels)
	}
	if !reflect.DeepEqual(f.Components, []string{"web"}) {
		t.Errorf("components = %v", f.Components)
	}
	if !reflect.DeepEqual(f.Versions, []string{"12"}) {
		t.Errorf("versions = %v (id fallback)", f.Versions)
	}
	if f.Created != "2026-08-01T09:00:00Z" || f.Updated != "2026-08-02T10:00:00Z" {
		t.Errorf("timestamps: %q %q", f.Created, f.Updated)
	}
	if f.TestCase.Preconditions != "User exists" {
		t.Errorf("preconditions = %q", f.TestCase.Preconditions)
	}
	wantSteps := []Step{
		{GroupNo: 1, OrderNo: 1, Action: "Open login page", Input: "user / pass", Expected: "Dashboard shown"},
		{GroupNo: 2, OrderNo: 2, Action: "Log out"},
	}
	if !reflect.DeepEqual(f.TestCase.Steps, wantSteps) {
		t.Errorf("steps = %+v", f.TestCase.Steps)
	}
	wantRefs := []LinkRef{{TestKey: "PROJ-5", IssueID: 5005}}
	if !reflect.DeepEqual(f.TestCase.CoveredRequirements, wantRefs) {
		t.Errorf("coveredRequirements = %+v", f.TestCase.CoveredRequirements)
	}
}

func TestToLocal_MissingFieldsAreNeutral(t *testing.T) {
	f, err := ToLocal(KindTestCase, map[string]any{
		"testKey": "PROJ-200",
		"summary": "No optional fields",
	})
	if err != nil {
		t.Fatal(err)
	}
	if f.Priority != "" || f.Status != "" || f.Assignee != "" {
		t.Errorf("missing scalars not neutral: %q %q %q", f.Priority, f.Status, f.Assignee)
	}
	if f.Labels != nil || f.Components != nil || f.Versions != nil {
		t.Errorf("missing lists not nil: %v %v %v", f.Labels, f.Components, f.Versions)
	}
	if len(f.TestCase.Steps) != 0 {
		t.Errorf("steps = %+v", f.TestCase.Steps)
	}
}

func TestToLocal_MalformedShapesAreNeutral(t *testing.T) {
	f, err := ToLocal(KindRequirement, map[string]any{
		"testKey":          "PROJ-1",
		"priority":         []any{"not", "an", "object"},
		"labels":           "not-a-list",
		"components":       float64(42),
		"testCasesCovered": map[string]any{"not": "a list"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if f.Priority != "" || f.Labels != nil || f.Components != nil {
		t.Errorf("malformed input leaked: %q %v %v", f.Priority, f.Labels, f.Components)
	}
	if f.Requirement.CoveredTestCases != nil {
		t.Errorf("links = %+v", f.Requirement.CoveredTestCases)
	}
}

func TestToLocal_NilPayload(t *testing.T) {
	f, err := ToLocal(KindDefect, nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != KindDefect || f.Defect == nil {
		t.Fatalf("fields = %+v", f)
	}
}

func TestToLocal_TestExecution(t *testing.T) {
	f, err := ToLocal(KindTestExecution, map[string]any{
		"testKey":  "PROJ-300",
		"result":   map[string]any{"name": "FAIL", "statusName": "Failed"},
		"testPlan": "PROJ-250",
		"testCaseExecutions": []any{
			map[string]any{
				"testCaseKey":          "PROJ-101",
				"order":                float64(2),
				"result":               "PASS",
				"assignee":             map[string]any{"displayName": "Kim QA"},
				"environment":          "staging",
				"actualTime":           float64(90),
				"testCaseExecutionKey": "PROJ-E-1",
				"defects":              []any{map[string]any{"key": "PROJ-400"}, "PROJ-401"},
			},
			map[string]any{"testKey": "PROJ-102", "status": "BLOCKED"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if f.TestExecution.Result != "FAIL" {
		t.Errorf("result = %q", f.TestExecution.Result)
	}
	if f.TestExecution.TestPlanKey != "PROJ-250" {
		t.Errorf("testPlan = %q", f.TestExecution.TestPlanKey)
	}
	want := []CaseExecution{
		{
			TestKey: "PROJ-101", OrderNo: 2, Assignee: "Kim QA", Result: "PASS",
			Environment: "staging", ActualTime: 90, EntryKey: "PROJ-E-1",
			Defects: []string{"PROJ-400", "PROJ-401"},
		},
		{TestKey: "PROJ-102", OrderNo: 2, Result: "BLOCKED"},
	}
	if !reflect.DeepEqual(f.TestExecution.CaseExecutions, want) {
		t.Errorf("caseExecutions = %+v", f.TestExecution.CaseExecutions)
	}
}

func TestStepsFromPayload_TwoDimensionalForm(t *testing.T) {
	steps := stepsFromPayload(map[string]any{
		"steps": []any{
			[]any{
				map[string]any{"value": "<p>First</p>"},
				map[string]any{"value": "<p>Second</p>"},
			},
			[]any{map[string]any{"value": "<p>Third</p>"}},
		},
	})
	want := []Step{
		{GroupNo: 1, OrderNo: 1, Action: "First"},
		{GroupNo: 1, OrderNo: 2, Action: "Second"},
		{GroupNo: 2, OrderNo: 3, Action: "Third"},
	}
	if !reflect.DeepEqual(steps, want) {
		t.Errorf("steps = %+v", steps)
	}
}

func TestStepsFromPayload_DropsEmptyRows(t *testing.T) {
	steps := stepsFromPayload(map[string]any{
		"stepGroups": []any{
			map[string]any{"stepColumns": []any{
				map[string]any{"name": "Input data", "value": "<p>only input</p>"},
			}},
			map[string]any{"stepColumns": []any{
				map[string]any{"name": "Expected result", "value": "<p>still counts</p>"},
			}},
		},
	})
	if len(steps) != 1 || steps[0].Expected != "still counts" || steps[0].GroupNo != 2 {
		t.Errorf("steps = %+v", steps)
	}
}

func TestToRemote_WritableProjection(t *testing.T) {
	f, _ := New(KindTestCase)
	f.RemoteKey = "PROJ-101"
	f.Summary = "Login works"
	f.Description = "desc"
	f.ProjectKey = "PROJ"
	f.ParentKey = "LOCAL-TEST_CASE-abc123"
	f.Priority = "High"
	f.Status = "Draft"
	f.Components = []string{"web"}
	f.Versions = []string{"12"}
	f.Created = "2026-08-01T09:00:00Z"
	f.Updated = "2026-08-02T10:00:00Z"
	f.TestCase.Preconditions = "User exists"
	f.TestCase.Steps = []Step{{GroupNo: 1, OrderNo: 1, Action: "Open login page"}}

	payload, err := ToRemote(f)
	if err != nil {
		t.Fatal(err)
	}
	for _, forbidden := range []string{"testKey", "created", "updated"} {
		if _, ok := payload[forbidden]; ok {
			t.Errorf("remote-owned field %q in write payload", forbidden)
		}
	}
	if !reflect.DeepEqual(payload["priority"], map[string]any{"name": "High"}) {
		t.Errorf("priority = %v", payload["priority"])
	}
	if !reflect.DeepEqual(payload["components"], []map[string]any{{"name": "web"}}) {
		t.Errorf("components = %v", payload["components"])
	}
	if !reflect.DeepEqual(payload["versions"], []map[string]any{{"id": "12"}}) {
		t.Errorf("versions = %v", payload["versions"])
	}
	steps, ok := payload["steps"].([]any)
	if !ok || len(steps) != 1 {
		t.Fatalf("steps = %v", payload["steps"])
	}
	inner := steps[0].([]any)[0].(map[string]any)
	if inner["value"] != "<p>Open login page</p>" {
		t.Errorf("step value = %v", inner["value"])
	}
}

func TestToRemote_RoundTripWritableFields(t *testing.T) {
	f, _ := New(KindRequirement)
	f.Summary = "Auth requirement"
	f.Description = "Users must authenticate"
	f.Priority = "Medium"
	f.Status = "Approved"
	f.Labels = []string{"auth"}
	f.Requirement.EpicName = "Security"

	payload, err := ToRemote(f)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ToLocal(KindRequirement, payload)
	if err != nil {
		t.Fatal(err)
	}
	if back.Summary != f.Summary || back.Description != f.Description ||
		back.Priority != f.Priority || back.Status != f.Status ||
		!reflect.DeepEqual(back.Labels, f.Labels) ||
		back.Requirement.EpicName != f.Requirement.EpicName {
		t.Errorf("round trip changed writable fields: %+v", back)
	}
}

func TestToRemote_KindMismatchRejected(t *testing.T) {
	f := &Fields{Kind: KindTestCase, Defect: &DefectFields{}}
	if _, err := ToRemote(f); err == nil {
		t.Fatal("mismatched variant accepted")
	}
}

func TestLinkUpdateValidate(t *testing.T) {
	if err := (LinkUpdate{}).Validate(); err == nil {
		t.Error("zero verb accepted")
	}
	if err := (LinkUpdate{Op: "replace"}).Validate(); err == nil {
		t.Error("unknown verb accepted")
	}
	if err := (LinkUpdate{Op: OpSet}).Validate(); err != nil {
		t.Errorf("set with empty refs rejected: %v", err)
	}
}

func TestLinkUpdateApply(t *testing.T) {
	existing := []LinkRef{{TestKey: "PROJ-1"}, {TestKey: "PROJ-2"}}

	got, err := LinkUpdate{Op: OpAdd, Refs: []LinkRef{{TestKey: "PROJ-2"}, {TestKey: "PROJ-3"}}}.Apply(existing)
	if err != nil {
		t.Fatal(err)
	}
	want := []LinkRef{{TestKey: "PROJ-1"}, {TestKey: "PROJ-2"}, {TestKey: "PROJ-3"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("add = %+v", got)
	}

	got, err = LinkUpdate{Op: OpRemove, Refs: []LinkRef{{TestKey: "PROJ-1"}}}.Apply(existing)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []LinkRef{{TestKey: "PROJ-2"}}) {
		t.Errorf("remove = %+v", got)
	}

	got, err = LinkUpdate{Op: OpSet}.Apply(existing)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("set-empty should clear, got %+v", got)
	}
}

func TestApplyLinkUpdates(t *testing.T) {
	payload := map[string]any{"summary": "x"}
	err := ApplyLinkUpdates(payload, map[string]LinkUpdate{
		"includedTestCases": {Op: OpSet, Refs: []LinkRef{{TestKey: "PROJ-7", IssueID: 7007}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	field, ok := payload["includedTestCases"].(map[string]any)
	if !ok {
		t.Fatalf("field = %v", payload["includedTestCases"])
	}
	if field["operation"] != "set" {
		t.Errorf("operation = %v", field["operation"])
	}
	items := field["items"].([]map[string]any)
	if len(items) != 1 || items[0]["testKey"] != "PROJ-7" || items[0]["issueId"] != int64(7007) {
		t.Errorf("items = %+v", items)
	}

	err = ApplyLinkUpdates(payload, map[string]LinkUpdate{"executions": {}})
	if err == nil {
		t.Fatal("verbless update accepted")
	}
}

func TestStepsPayloadGrouping(t *testing.T) {
	payload := StepsPayload([]Step{
		{GroupNo: 1, OrderNo: 1, Action: "a", Input: "i", Expected: "e"},
		{GroupNo: 1, OrderNo: 2, Action: "b"},
		{GroupNo: 2, OrderNo: 3, Action: "c"},
	})
	groups := payload["stepGroups"].([]map[string]any)
	if len(groups) != 2 {
		t.Fatalf("groups = %d", len(groups))
	}
	first := groups[0]["steps"].([]map[string]any)
	if len(first) != 2 {
		t.Errorf("first group = %d steps", len(first))
	}
	cols := first[0]["stepColumns"].([]map[string]any)
	if cols[0]["value"] != "<p>a</p>" || cols[1]["value"] != "<p>i</p>" || cols[2]["value"] != "<p>e</p>" {
		t.Errorf("columns = %+v", cols)
	}
	blank := groups[1]["steps"].([]map[string]any)[0]["stepColumns"].([]map[string]any)
	if blank[1]["value"] != "<p>-</p>" {
		t.Errorf("empty input column = %v", blank[1]["value"])
	}
}

func TestPlanEntriesPayload(t *testing.T) {
	payload := PlanEntriesPayload([]LinkRef{{TestKey: "PROJ-1"}, {TestKey: "PROJ-2"}})
	cases := payload["testCases"].([]map[string]any)
	if len(cases) != 2 || cases[0]["key"] != "PROJ-1" || cases[0]["order"] != 1 || cases[1]["order"] != 2 {
		t.Errorf("testCases = %+v", cases)
	}
}

func TestExecutionEntriesPayload(t *testing.T) {
	payload := ExecutionEntriesPayload([]CaseExecution{
		{TestKey: "PROJ-1", OrderNo: 1, Result: "PASS", Defects: []string{"PROJ-9"}},
		{TestKey: "PROJ-2", OrderNo: 2},
	})
	cases := payload["testCases"].([]map[string]any)
	if len(cases) != 2 {
		t.Fatalf("cases = %+v", cases)
	}
	if cases[0]["result"] != "PASS" {
		t.Errorf("result = %v", cases[0]["result"])
	}
	defects := cases[0]["defects"].([]map[string]any)
	if len(defects) != 1 || defects[0]["key"] != "PROJ-9" {
		t.Errorf("defects = %+v", defects)
	}
	if _, ok := cases[1]["result"]; ok {
		t.Error("empty result emitted")
	}
}

func TestLinkFieldsPerKind(t *testing.T) {
	if got := LinkFields(KindTestPlan); !reflect.DeepEqual(got, []string{"includedTestCases", "executions"}) {
		t.Errorf("test plan link fields = %v", got)
	}
	if got := LinkFields(KindTestExecution); got != nil {
		t.Errorf("test execution link fields = %v", got)
	}
}

func TestToLocal_IssueLinks(t *testing.T) {
	payload := map[string]any{
		"summary": "Login requirement",
		"fields": map[string]any{
			"issuelinks": []any{
				map[string]any{
					"type":         map[string]any{"name": "Relates"},
					"outwardIssue": map[string]any{"key": "PROJ-7", "id": float64(700)},
				},
				map[string]any{
					"type":        map[string]any{"name": "Blocks"},
					"inwardIssue": map[string]any{"key": "PROJ-8"},
				},
				map[string]any{
					// No type name: falls back to the generic label.
					"outwardIssue": map[string]any{"key": "PROJ-9"},
				},
				map[string]any{
					// No counterpart issue: dropped.
					"type": map[string]any{"name": "Clones"},
				},
				map[string]any{
					// Counterpart without a key: dropped.
					"outwardIssue": map[string]any{"id": float64(900)},
				},
			},
		},
	}
	f, err := ToLocal(KindRequirement, payload)
	if err != nil {
		t.Fatal(err)
	}
	want := []IssueLink{
		{RelType: "Relates (out)", Ref: LinkRef{TestKey: "PROJ-7", IssueID: 700}},
		{RelType: "Blocks (in)", Ref: LinkRef{TestKey: "PROJ-8"}},
		{RelType: "Link (out)", Ref: LinkRef{TestKey: "PROJ-9"}},
	}
	if !reflect.DeepEqual(f.Links, want) {
		t.Errorf("links = %+v, want %+v", f.Links, want)
	}
}

func TestToLocal_IssueLinksTopLevel(t *testing.T) {
	payload := map[string]any{
		"issuelinks": []any{
			map[string]any{
				"type":        map[string]any{"name": "Tests"},
				"inwardIssue": map[string]any{"key": "PROJ-3"},
			},
		},
	}
	f, err := ToLocal(KindDefect, payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Links) != 1 || f.Links[0].RelType != "Tests (in)" || f.Links[0].Ref.TestKey != "PROJ-3" {
		t.Errorf("links = %+v", f.Links)
	}
}

func TestToLocal_ExecutionRunMetadata(t *testing.T) {
	payload := map[string]any{
		"summary":    "Regression run",
		"result":     map[string]any{"name": "Pass"},
		"startDate":  "2025-03-01",
		"endDate":    "2025-03-02",
		"executedBy": map[string]any{"displayName": "Dana Park"},
	}
	f, err := ToLocal(KindTestExecution, payload)
	if err != nil {
		t.Fatal(err)
	}
	te := f.TestExecution
	if te.StartDate != "2025-03-01" || te.EndDate != "2025-03-02" {
		t.Errorf("dates = %q..%q", te.StartDate, te.EndDate)
	}
	if te.ExecutedBy != "Dana Park" {
		t.Errorf("executedBy = %q", te.ExecutedBy)
	}

	out, err := ToRemote(f)
	if err != nil {
		t.Fatal(err)
	}
	if out["startDate"] != "2025-03-01" || out["endDate"] != "2025-03-02" || out["executedBy"] != "Dana Park" {
		t.Errorf("payload = %v", out)
	}
}
