package store

import (
	"testing"
	"time"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
)

func requirementFields(summary string) *mapper.Fields {
	f, _ := mapper.New(mapper.KindRequirement)
	f.Summary = summary
	f.Priority = "High"
	f.Labels = []string{"auth", "smoke"}
	f.Requirement.EpicName = "Security"
	return f
}

func TestCreateLocalIssue_StartsDirty(t *testing.T) {
	db := openTestDB(t)
	p := testProject(t, db)

	iss, err := CreateLocalIssue(db, p.ID, mapper.KindRequirement, nil, requirementFields("Users must authenticate"))
	if err != nil {
		t.Fatal(err)
	}
	if !iss.Dirty || !iss.LocalOnly || iss.RemoteKey != nil {
		t.Errorf("issue = dirty=%v localOnly=%v remoteKey=%v", iss.Dirty, iss.LocalOnly, iss.RemoteKey)
	}
	if iss.Labels != "auth,smoke" || iss.EpicName != "Security" {
		t.Errorf("columns: labels=%q epic=%q", iss.Labels, iss.EpicName)
	}

	f, _ := mapper.New(mapper.KindRequirement)
	if _, err := CreateLocalIssue(db, p.ID, mapper.KindRequirement, nil, f); err == nil {
		t.Error("blank summary accepted")
	}
}

func TestUpdateThenApplyRemote_DirtyLifecycle(t *testing.T) {
	db := openTestDB(t)
	p := testProject(t, db)
	iss := seedIssue(t, db, p.ID, mapper.KindRequirement, "PROJ-1")

	if err := UpdateIssueFields(db, iss.ID, requirementFields("local edit")); err != nil {
		t.Fatal(err)
	}
	var got models.Issue
	db.First(&got, iss.ID)
	if !got.Dirty {
		t.Fatal("local edit did not mark dirty")
	}

	// A remote apply is the authoritative overwrite: it clears dirty and
	// records fingerprint plus remote timestamps.
	f := requirementFields("remote state")
	f.Created = "2026-08-01T09:00:00Z"
	f.Updated = "2026-08-15T10:00:00Z"
	now := time.Now()
	if err := ApplyRemoteFields(db, iss.ID, f, "abc123", now); err != nil {
		t.Fatal(err)
	}
	db.First(&got, iss.ID)
	if got.Dirty || got.Deleted || got.Summary != "remote state" {
		t.Errorf("after apply: dirty=%v deleted=%v summary=%q", got.Dirty, got.Deleted, got.Summary)
	}
	if got.Fingerprint != "abc123" || got.RemoteUpdated != "2026-08-15T10:00:00Z" {
		t.Errorf("fingerprint=%q remoteUpdated=%q", got.Fingerprint, got.RemoteUpdated)
	}
	if got.LastSyncAt == nil {
		t.Error("last sync time not recorded")
	}
}

func TestApplyRemoteFields_RevivesTombstone(t *testing.T) {
	db := openTestDB(t)
	p := testProject(t, db)
	iss := seedIssue(t, db, p.ID, mapper.KindRequirement, "PROJ-2")
	db.Model(iss).Update("deleted", true)

	if err := ApplyRemoteFields(db, iss.ID, requirementFields("back again"), "fp", time.Now()); err != nil {
		t.Fatal(err)
	}
	var got models.Issue
	db.First(&got, iss.ID)
	if got.Deleted {
		t.Error("re-observed issue still tombstoned")
	}
}

func TestUpdateIssueFields_MissingIssue(t *testing.T) {
	db := openTestDB(t)
	if err := UpdateIssueFields(db, 9999, requirementFields("x")); err == nil {
		t.Error("update of missing issue succeeded")
	}
}

func TestAdoptRemoteKey(t *testing.T) {
	db := openTestDB(t)
	p := testProject(t, db)

	iss, err := CreateLocalIssue(db, p.ID, mapper.KindTestCase, nil, func() *mapper.Fields {
		f, _ := mapper.New(mapper.KindTestCase)
		f.Summary = "new case"
		return f
	}())
	if err != nil {
		t.Fatal(err)
	}
	if err := AdoptRemoteKey(db, iss.ID, "PROJ-77", 7707, time.Now()); err != nil {
		t.Fatal(err)
	}
	var got models.Issue
	db.First(&got, iss.ID)
	if got.RemoteKey == nil || *got.RemoteKey != "PROJ-77" || got.LocalOnly || got.Dirty {
		t.Errorf("after adopt: %+v", got)
	}
	if got.RemoteID == nil || *got.RemoteID != 7707 {
		t.Errorf("remote id = %v", got.RemoteID)
	}
}

func TestTombstoneIssuesNotIn_TakesDirtySparesLocal(t *testing.T) {
	db := openTestDB(t)
	p := testProject(t, db)

	seedIssue(t, db, p.ID, mapper.KindTestCase, "PROJ-1")
	gone := seedIssue(t, db, p.ID, mapper.KindTestCase, "PROJ-2")
	dirty := seedIssue(t, db, p.ID, mapper.KindTestCase, "PROJ-3")
	db.Model(dirty).Update("dirty", true)
	local, _ := CreateLocalIssue(db, p.ID, mapper.KindTestCase, nil, func() *mapper.Fields {
		f, _ := mapper.New(mapper.KindTestCase)
		f.Summary = "draft"
		return f
	}())

	n, err := TombstoneIssuesNotIn(db, p.ID, mapper.KindTestCase, []string{"PROJ-1"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("tombstoned %d, want 2", n)
	}
	var got models.Issue
	db.First(&got, gone.ID)
	if !got.Deleted {
		t.Error("unvisited issue survived")
	}
	db.First(&got, dirty.ID)
	if !got.Deleted {
		t.Error("dirty remote-bound issue survived the default pass")
	}
	db.First(&got, local.ID)
	if got.Deleted {
		t.Error("local-only issue tombstoned")
	}
}

func TestTombstoneIssuesNotIn_SkipDirtySparesDirty(t *testing.T) {
	db := openTestDB(t)
	p := testProject(t, db)

	gone := seedIssue(t, db, p.ID, mapper.KindTestCase, "PROJ-2")
	dirty := seedIssue(t, db, p.ID, mapper.KindTestCase, "PROJ-3")
	db.Model(dirty).Update("dirty", true)

	n, err := TombstoneIssuesNotIn(db, p.ID, mapper.KindTestCase, []string{"PROJ-1"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("tombstoned %d, want 1", n)
	}
	var got models.Issue
	db.First(&got, gone.ID)
	if !got.Deleted {
		t.Error("clean unvisited issue survived")
	}
	db.First(&got, dirty.ID)
	if got.Deleted {
		t.Error("dirty issue tombstoned despite spare")
	}
}

func TestDirtyIssues_LocalOnlyFirst(t *testing.T) {
	db := openTestDB(t)
	p := testProject(t, db)

	remote := seedIssue(t, db, p.ID, mapper.KindRequirement, "PROJ-1")
	db.Model(remote).Update("dirty", true)
	CreateLocalIssue(db, p.ID, mapper.KindRequirement, nil, requirementFields("draft"))

	got, err := DirtyIssues(db, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("dirty count = %d", len(got))
	}
	if !got[0].LocalOnly {
		t.Error("local-only creation not ordered first")
	}
}

func TestCountIssues(t *testing.T) {
	db := openTestDB(t)
	p := testProject(t, db)

	seedIssue(t, db, p.ID, mapper.KindTestCase, "PROJ-1")
	dead := seedIssue(t, db, p.ID, mapper.KindTestCase, "PROJ-2")
	db.Model(dead).Update("deleted", true)
	dirty := seedIssue(t, db, p.ID, mapper.KindTestCase, "PROJ-3")
	db.Model(dirty).Update("dirty", true)

	counts, err := CountIssues(db, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	byKind := map[string]IssueCounts{}
	for _, c := range counts {
		byKind[c.Kind] = c
	}
	tc := byKind["TEST_CASE"]
	if tc.Live != 2 || tc.Deleted != 1 || tc.Dirty != 1 {
		t.Errorf("test case counts = %+v", tc)
	}
	if len(counts) != 5 {
		t.Errorf("kinds reported = %d", len(counts))
	}
}
