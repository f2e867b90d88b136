package rtm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quayside/rtmirror/internal/mapper"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:    srv.URL + "/", // trailing slash must not double up
		Username:   "jira.user",
		APIToken:   "secret",
		ProjectKey: "PROJ",
		ProjectID:  41500,
	}, srv.Client())
}

func TestGetEntity_PathAndAuth(t *testing.T) {
	var gotPath, gotAuth string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass
		json.NewEncoder(w).Encode(map[string]any{"testKey": "PROJ-1", "summary": "s"})
	})

	out, err := c.GetEntity(context.Background(), mapper.KindTestCase, "PROJ-1")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/rest/rtm/1.0/api/test-case/PROJ-1" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "jira.user:secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if out["testKey"] != "PROJ-1" {
		t.Errorf("decoded = %v", out)
	}
}

func TestEntityPaths(t *testing.T) {
	cases := map[mapper.Kind]string{
		mapper.KindRequirement:   "/rest/rtm/1.0/api/requirement",
		mapper.KindTestCase:      "/rest/rtm/1.0/api/test-case",
		mapper.KindTestPlan:      "/rest/rtm/1.0/api/test-plan",
		mapper.KindTestExecution: "/rest/rtm/1.0/api/test-execution",
		mapper.KindDefect:        "/rest/rtm/1.0/api/defect",
	}
	for kind, want := range cases {
		if got := entityPath(kind); got != want {
			t.Errorf("entityPath(%s) = %q, want %q", kind, got, want)
		}
	}
}

func TestCreateEntity_PostBody(t *testing.T) {
	var gotMethod string
	var gotBody map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"testKey": "PROJ-55"})
	})

	out, err := c.CreateEntity(context.Background(), mapper.KindRequirement, map[string]any{
		"projectKey": "PROJ", "summary": "new req",
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q", gotMethod)
	}
	if gotBody["summary"] != "new req" {
		t.Errorf("body = %v", gotBody)
	}
	if out["testKey"] != "PROJ-55" {
		t.Errorf("response = %v", out)
	}
}

func TestUpdateEntity_EmptyResponseBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.UpdateEntity(context.Background(), mapper.KindDefect, "PROJ-9", map[string]any{"summary": "x"}); err != nil {
		t.Fatal(err)
	}
}

func TestAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["no such issue"]}`, http.StatusNotFound)
	})
	_, err := c.GetEntity(context.Background(), mapper.KindTestPlan, "PROJ-404")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Method != http.MethodGet {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestGetTree_ListForm(t *testing.T) {
	var gotPath string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id": "1001", "type": "FOLDER", "name": "Smoke",
				"children": []map[string]any{
					{"id": "n1", "type": "TEST_CASE", "jiraKey": "PROJ-1", "summary": "Login works"},
				},
			},
		})
	})

	roots, err := c.GetTree(context.Background(), "test-cases")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/rest/rtm/1.0/api/tree/41500?treeType=test-cases" {
		t.Errorf("path = %q", gotPath)
	}
	if len(roots) != 1 || !roots[0].IsFolder() || roots[0].DisplayName() != "Smoke" {
		t.Fatalf("roots = %+v", roots)
	}
	leaf := roots[0].Children[0]
	if leaf.IsFolder() || leaf.IssueKey() != "PROJ-1" || leaf.DisplayName() != "Login works" {
		t.Errorf("leaf = %+v", leaf)
	}
}

func TestGetTree_WrappedForm(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"roots": []map[string]any{{"id": "r1", "type": "FOLDER", "name": "Root"}},
		})
	})
	roots, err := c.GetTree(context.Background(), "requirements")
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].Name != "Root" {
		t.Errorf("roots = %+v", roots)
	}
}

func TestSubResourceEndpoints(t *testing.T) {
	var paths []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.Write([]byte(`{}`))
	})
	ctx := context.Background()

	c.GetSteps(ctx, "PROJ-1")
	c.UpdateSteps(ctx, "PROJ-1", map[string]any{})
	c.GetPlanTestCases(ctx, "PROJ-2")
	c.UpdatePlanTestCases(ctx, "PROJ-2", map[string]any{})
	c.UpdateExecutionTestCases(ctx, "PROJ-3", map[string]any{})

	want := []string{
		"GET /rest/rtm/1.0/api/test-case/PROJ-1/steps",
		"PUT /rest/rtm/1.0/api/test-case/PROJ-1/steps",
		"GET /rest/rtm/1.0/api/test-plan/PROJ-2/testcases",
		"PUT /rest/rtm/1.0/api/test-plan/PROJ-2/testcases",
		"PUT /rest/rtm/1.0/api/test-execution/PROJ-3/testcases",
	}
	for i, w := range want {
		if i >= len(paths) || paths[i] != w {
			t.Errorf("call %d = %q, want %q", i, paths[i], w)
		}
	}
}

func TestCreateIssueLink(t *testing.T) {
	var gotBody map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issueLink" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	})
	if err := c.CreateIssueLink(context.Background(), "Relates", "PROJ-1", "PROJ-2"); err != nil {
		t.Fatal(err)
	}
	typ := gotBody["type"].(map[string]any)
	if typ["name"] != "Relates" {
		t.Errorf("type = %v", typ)
	}
}

func TestContextCancellation(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.GetEntity(ctx, mapper.KindTestCase, "PROJ-1"); err == nil {
		t.Fatal("cancelled request succeeded")
	}
}
