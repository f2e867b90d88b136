package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
	"github.com/quayside/rtmirror/internal/store"
)

// PushDirty sends every dirty record to the remote. Local-only records go
// out as creates and adopt the key the remote assigns; remote-bound records
// go out as wholesale updates of their writable fields plus their
// sub-resources. A failed push leaves the record dirty so the next run
// retries it.
func PushDirty(ctx context.Context, db *gorm.DB, remote Remote, project *models.Project) (*Result, error) {
	res := &Result{}
	dirty, err := store.DirtyIssues(db, project.ID)
	if err != nil {
		return res, err
	}

	for i := range dirty {
		iss := &dirty[i]
		if err := ctx.Err(); err != nil {
			return res, err
		}
		kind, ok := mapper.ParseKind(iss.Kind)
		if !ok {
			res.fail("push", pushLabel(iss), fmt.Errorf("unknown kind %q", iss.Kind))
			continue
		}
		if err := pushOne(ctx, db, remote, project, kind, iss); err != nil {
			res.fail(mapper.ScopeForKind(kind), pushLabel(iss), err)
			continue
		}
		res.Pushed++
	}

	if err := store.MarkSynced(db, project.ID, store.CheckpointIssue, time.Now()); err != nil {
		res.fail("checkpoint", "issue", err)
	}
	return res, nil
}

func pushLabel(iss *models.Issue) string {
	if iss.RemoteBound() {
		return *iss.RemoteKey
	}
	return fmt.Sprintf("local #%d", iss.ID)
}

func pushOne(ctx context.Context, db *gorm.DB, remote Remote, project *models.Project, kind mapper.Kind, iss *models.Issue) error {
	f, err := fieldsFromIssue(db, kind, iss)
	if err != nil {
		return err
	}
	payload, err := mapper.ToRemote(f)
	if err != nil {
		return err
	}

	if !iss.RemoteBound() {
		payload["projectKey"] = project.Key
		created, err := remote.CreateEntity(ctx, kind, payload)
		if err != nil {
			return err
		}
		key, _ := created["testKey"].(string)
		if key == "" {
			return fmt.Errorf("create response carries no testKey")
		}
		var remoteID int64
		if id, ok := created["issueId"].(float64); ok {
			remoteID = int64(id)
		}
		return store.AdoptRemoteKey(db, iss.ID, key, remoteID, time.Now())
	}

	key := *iss.RemoteKey
	// Link-bearing fields go out as explicit wholesale sets: push always
	// states the full desired membership, never a delta.
	if updates := linkUpdates(f); len(updates) > 0 {
		if err := mapper.ApplyLinkUpdates(payload, updates); err != nil {
			return err
		}
	}
	if err := remote.UpdateEntity(ctx, kind, key, payload); err != nil {
		return err
	}
	if err := pushSubResources(ctx, db, remote, kind, key, iss); err != nil {
		return err
	}
	return store.MarkClean(db, iss.ID, time.Now())
}

// linkUpdates states every link-bearing field of the kind as an OpSet.
func linkUpdates(f *mapper.Fields) map[string]mapper.LinkUpdate {
	refs := func(rs []mapper.LinkRef) mapper.LinkUpdate {
		return mapper.LinkUpdate{Op: mapper.OpSet, Refs: rs}
	}
	switch f.Kind {
	case mapper.KindRequirement:
		return map[string]mapper.LinkUpdate{"testCasesCovered": refs(f.Requirement.CoveredTestCases)}
	case mapper.KindTestCase:
		return map[string]mapper.LinkUpdate{"coveredRequirements": refs(f.TestCase.CoveredRequirements)}
	case mapper.KindTestPlan:
		return map[string]mapper.LinkUpdate{
			"includedTestCases": refs(f.TestPlan.IncludedTestCases),
			"executions":        refs(f.TestPlan.Executions),
		}
	case mapper.KindDefect:
		return map[string]mapper.LinkUpdate{
			"detectingExecutions":  refs(f.Defect.DetectingExecutions),
			"identifyingTestCases": refs(f.Defect.IdentifyingTestCases),
		}
	}
	return nil
}

// pushSubResources sends the child collections that live behind their own
// endpoints rather than on the entity payload.
func pushSubResources(ctx context.Context, db *gorm.DB, remote Remote, kind mapper.Kind, key string, iss *models.Issue) error {
	switch kind {
	case mapper.KindTestCase:
		steps, err := store.StepsFor(db, iss.ID)
		if err != nil {
			return err
		}
		return remote.UpdateSteps(ctx, key, mapper.StepsPayload(steps))
	case mapper.KindTestPlan:
		refs, err := store.PlanEntriesFor(db, iss.ID)
		if err != nil {
			return err
		}
		return remote.UpdatePlanTestCases(ctx, key, mapper.PlanEntriesPayload(refs))
	case mapper.KindTestExecution:
		entries, err := store.ExecutionEntriesFor(db, iss.ID)
		if err != nil {
			return err
		}
		return remote.UpdateExecutionTestCases(ctx, key, mapper.ExecutionEntriesPayload(entries))
	}
	return nil
}

// fieldsFromIssue rebuilds the normalized form of a stored issue, children
// included, for a push payload.
func fieldsFromIssue(db *gorm.DB, kind mapper.Kind, iss *models.Issue) (*mapper.Fields, error) {
	f, err := mapper.New(kind)
	if err != nil {
		return nil, err
	}
	if iss.RemoteKey != nil {
		f.RemoteKey = *iss.RemoteKey
	}
	f.Summary = iss.Summary
	f.Description = iss.Description
	f.Assignee = iss.Assignee
	f.Priority = iss.Priority
	f.Status = iss.Status
	f.Labels = splitList(iss.Labels)
	f.Components = splitList(iss.Components)
	f.Versions = splitList(iss.FixVersions)
	f.TimeEstimate = iss.TimeEstimate
	f.Environment = iss.Environment
	f.ParentKey = iss.ParentKey

	switch kind {
	case mapper.KindRequirement:
		f.Requirement.EpicName = iss.EpicName
		refs, err := store.RelationsFor(db, iss.ID, "covered-by")
		if err != nil {
			return nil, err
		}
		f.Requirement.CoveredTestCases = refs
	case mapper.KindTestCase:
		f.TestCase.Preconditions = iss.Preconditions
		steps, err := store.StepsFor(db, iss.ID)
		if err != nil {
			return nil, err
		}
		f.TestCase.Steps = steps
		refs, err := store.RelationsFor(db, iss.ID, "covers")
		if err != nil {
			return nil, err
		}
		f.TestCase.CoveredRequirements = refs
	case mapper.KindTestPlan:
		refs, err := store.PlanEntriesFor(db, iss.ID)
		if err != nil {
			return nil, err
		}
		f.TestPlan.IncludedTestCases = refs
		execs, err := store.RelationsFor(db, iss.ID, "executed-by")
		if err != nil {
			return nil, err
		}
		f.TestPlan.Executions = execs
	case mapper.KindTestExecution:
		entries, err := store.ExecutionEntriesFor(db, iss.ID)
		if err != nil {
			return nil, err
		}
		f.TestExecution.CaseExecutions = entries
		var ex models.Execution
		err = db.Where("issue_id = ?", iss.ID).First(&ex).Error
		if err == nil {
			f.TestExecution.Result = ex.Result
			f.TestExecution.StartDate = ex.StartDate
			f.TestExecution.EndDate = ex.EndDate
			f.TestExecution.ExecutedBy = ex.ExecutedBy
		} else if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("sync: execution of issue %d: %w", iss.ID, err)
		}
	case mapper.KindDefect:
		det, err := store.RelationsFor(db, iss.ID, "detected-by")
		if err != nil {
			return nil, err
		}
		f.Defect.DetectingExecutions = det
		ident, err := store.RelationsFor(db, iss.ID, "identified-by")
		if err != nil {
			return nil, err
		}
		f.Defect.IdentifyingTestCases = ident
	}
	return f, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
