package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
	"github.com/quayside/rtmirror/internal/store"
)

func testRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Project{}, &models.Folder{}, &models.Issue{}, &models.TestStep{},
		&models.PlanEntry{}, &models.Execution{}, &models.ExecutionEntry{},
		&models.StepResult{}, &models.Relation{}, &models.SyncState{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := store.EnsureProject(db, "PROJ", "Test", "https://jira.example.com", 41500); err != nil {
		t.Fatal(err)
	}
	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, db, "PROJ")
	return router, db
}

func get(t *testing.T, router *gin.Engine, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	var body map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w.Code, body
}

func TestStatusEndpoint(t *testing.T) {
	router, db := testRouter(t)
	p, _ := store.GetProject(db, "PROJ")
	key := "PROJ-1"
	db.Create(&models.Issue{ProjectID: p.ID, RemoteKey: &key, Kind: "TEST_CASE", Summary: "x", Dirty: true})

	code, body := get(t, router, "/api/status")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["project"] != "PROJ" {
		t.Errorf("project = %v", body["project"])
	}
	counts := body["counts"].([]any)
	if len(counts) != 5 {
		t.Errorf("counts = %v", counts)
	}
}

func TestTreeEndpoint(t *testing.T) {
	router, db := testRouter(t)
	p, _ := store.GetProject(db, "PROJ")
	folder, _ := store.UpsertFolder(db, p.ID, "1001", "Smoke", mapper.KindTestCase, nil, 0)
	key := "PROJ-1"
	db.Create(&models.Issue{ProjectID: p.ID, RemoteKey: &key, Kind: "TEST_CASE", Summary: "Login", FolderID: &folder.ID})

	code, body := get(t, router, "/api/tree/test-cases")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	tree := body["tree"].([]any)
	root := tree[0].(map[string]any)
	if root["name"] != "Smoke" {
		t.Errorf("root = %v", root)
	}
	issues := root["issues"].([]any)
	if len(issues) != 1 || issues[0].(map[string]any)["remoteKey"] != "PROJ-1" {
		t.Errorf("issues = %v", issues)
	}

	code, _ = get(t, router, "/api/tree/epics")
	if code != http.StatusBadRequest {
		t.Errorf("unknown scope status = %d", code)
	}
}

func TestDirtyEndpoint(t *testing.T) {
	router, db := testRouter(t)
	p, _ := store.GetProject(db, "PROJ")
	key := "PROJ-2"
	db.Create(&models.Issue{ProjectID: p.ID, RemoteKey: &key, Kind: "DEFECT", Summary: "leak", Dirty: true})
	clean := "PROJ-3"
	db.Create(&models.Issue{ProjectID: p.ID, RemoteKey: &clean, Kind: "DEFECT", Summary: "ok"})

	code, body := get(t, router, "/api/dirty")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	dirty := body["dirty"].([]any)
	if len(dirty) != 1 || dirty[0].(map[string]any)["remoteKey"] != "PROJ-2" {
		t.Errorf("dirty = %v", dirty)
	}
}

func TestIssueEndpoint(t *testing.T) {
	router, db := testRouter(t)
	p, _ := store.GetProject(db, "PROJ")
	key := "PROJ-4"
	iss := models.Issue{ProjectID: p.ID, RemoteKey: &key, Kind: "TEST_CASE", Summary: "Login", Status: "Draft"}
	db.Create(&iss)
	store.ReplaceSteps(db, iss.ID, []mapper.Step{{GroupNo: 1, OrderNo: 1, Action: "open"}})

	code, body := get(t, router, "/api/issues/PROJ-4")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["summary"] != "Login" || body["status"] != "Draft" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["steps"]; !ok {
		t.Error("steps missing")
	}

	code, _ = get(t, router, "/api/issues/PROJ-404")
	if code != http.StatusNotFound {
		t.Errorf("missing issue status = %d", code)
	}
}
