package store

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
)

// ReplaceResult reports what a wholesale child replacement did.
type ReplaceResult struct {
	Removed  int
	Inserted int
}

// ReplaceError identifies which owner and row a failed replacement was
// processing. The surrounding transaction has already rolled back by the
// time the caller sees it.
type ReplaceError struct {
	Owner     uint
	ChildKind string
	Row       int
	Err       error
}

func (e *ReplaceError) Error() string {
	return fmt.Sprintf("store: replace %s of issue %d: row %d: %v", e.ChildKind, e.Owner, e.Row, e.Err)
}

func (e *ReplaceError) Unwrap() error { return e.Err }

// ReplaceSteps replaces a test case's steps wholesale in one transaction.
// Steps whose (group, order) slot survives keep their surrogate ID, so
// step results referencing them stay attached; vanished slots are deleted,
// new slots inserted.
func ReplaceSteps(db *gorm.DB, issueID uint, steps []mapper.Step) (ReplaceResult, error) {
	var res ReplaceResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing []models.TestStep
		if err := tx.Where("issue_id = ?", issueID).Find(&existing).Error; err != nil {
			return &ReplaceError{Owner: issueID, ChildKind: "steps", Err: err}
		}
		type slot struct{ group, order int }
		bySlot := make(map[slot]models.TestStep, len(existing))
		for _, st := range existing {
			bySlot[slot{st.GroupNo, st.OrderNo}] = st
		}

		// Duplicate slots in the input would race each other on the update
		// path, so reject them before touching any row.
		seen := make(map[slot]bool, len(steps))
		for i, st := range steps {
			s := slot{st.GroupNo, st.OrderNo}
			if seen[s] {
				return &ReplaceError{
					Owner: issueID, ChildKind: "steps", Row: i,
					Err: fmt.Errorf("duplicate step slot (group %d, order %d)", st.GroupNo, st.OrderNo),
				}
			}
			seen[s] = true
		}

		keep := make(map[uint]bool, len(steps))
		for i, st := range steps {
			s := slot{st.GroupNo, st.OrderNo}
			if old, ok := bySlot[s]; ok {
				keep[old.ID] = true
				if old.Action != st.Action || old.Input != st.Input || old.Expected != st.Expected {
					upd := map[string]any{"action": st.Action, "input": st.Input, "expected": st.Expected}
					if err := tx.Model(&models.TestStep{}).Where("id = ?", old.ID).Updates(upd).Error; err != nil {
						return &ReplaceError{Owner: issueID, ChildKind: "steps", Row: i, Err: err}
					}
				}
				continue
			}
			row := models.TestStep{
				IssueID: issueID, GroupNo: st.GroupNo, OrderNo: st.OrderNo,
				Action: st.Action, Input: st.Input, Expected: st.Expected,
			}
			if err := tx.Create(&row).Error; err != nil {
				return &ReplaceError{Owner: issueID, ChildKind: "steps", Row: i, Err: err}
			}
			res.Inserted++
		}

		for _, old := range existing {
			if keep[old.ID] {
				continue
			}
			if err := tx.Where("step_id = ?", old.ID).Delete(&models.StepResult{}).Error; err != nil {
				return &ReplaceError{Owner: issueID, ChildKind: "steps", Err: err}
			}
			if err := tx.Delete(&models.TestStep{}, old.ID).Error; err != nil {
				return &ReplaceError{Owner: issueID, ChildKind: "steps", Err: err}
			}
			res.Removed++
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	return res, nil
}

// ReplacePlanEntries replaces a plan's test case membership wholesale.
// Refs that don't resolve to a known test case in the project are skipped,
// not fatal: the remote may reference cases outside the mirrored scopes.
func ReplacePlanEntries(db *gorm.DB, projectID, planID uint, refs []mapper.LinkRef) (ReplaceResult, error) {
	var res ReplaceResult
	err := db.Transaction(func(tx *gorm.DB) error {
		del := tx.Where("plan_id = ?", planID).Delete(&models.PlanEntry{})
		if del.Error != nil {
			return &ReplaceError{Owner: planID, ChildKind: "plan entries", Err: del.Error}
		}
		res.Removed = int(del.RowsAffected)

		order := 0
		for i, ref := range refs {
			var tc models.Issue
			err := tx.Where("project_id = ? AND remote_key = ? AND kind = ?",
				projectID, ref.TestKey, string(mapper.KindTestCase)).First(&tc).Error
			if err == gorm.ErrRecordNotFound {
				continue
			}
			if err != nil {
				return &ReplaceError{Owner: planID, ChildKind: "plan entries", Row: i, Err: err}
			}
			order++
			row := models.PlanEntry{PlanID: planID, TestCaseID: tc.ID, OrderNo: order}
			if err := tx.Create(&row).Error; err != nil {
				return &ReplaceError{Owner: planID, ChildKind: "plan entries", Row: i, Err: err}
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	return res, nil
}

// ReplaceRelations replaces the outgoing relations of one issue wholesale.
// Each ref resolves by remote key within the project; unresolvable targets
// are skipped.
func ReplaceRelations(db *gorm.DB, projectID, srcIssueID uint, relType string, refs []mapper.LinkRef) (ReplaceResult, error) {
	var res ReplaceResult
	err := db.Transaction(func(tx *gorm.DB) error {
		del := tx.Where("src_issue_id = ? AND rel_type = ?", srcIssueID, relType).Delete(&models.Relation{})
		if del.Error != nil {
			return &ReplaceError{Owner: srcIssueID, ChildKind: "relations", Err: del.Error}
		}
		res.Removed = int(del.RowsAffected)

		for i, ref := range refs {
			var dst models.Issue
			err := tx.Where("project_id = ? AND remote_key = ?", projectID, ref.TestKey).First(&dst).Error
			if err == gorm.ErrRecordNotFound {
				continue
			}
			if err != nil {
				return &ReplaceError{Owner: srcIssueID, ChildKind: "relations", Row: i, Err: err}
			}
			row := models.Relation{SrcIssueID: srcIssueID, DstIssueID: dst.ID, RelType: relType}
			if err := tx.Create(&row).Error; err != nil {
				return &ReplaceError{Owner: srcIssueID, ChildKind: "relations", Row: i, Err: err}
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	return res, nil
}

// ReplaceIssueLinks replaces the generic issue links of one issue wholesale.
// Generic links carry a direction suffix in their rel type ("Relates (out)"),
// which keeps them disjoint from the named coverage relation types; only
// suffixed rows are cleared. Unresolvable targets are skipped.
func ReplaceIssueLinks(db *gorm.DB, projectID, srcIssueID uint, links []mapper.IssueLink) (ReplaceResult, error) {
	var res ReplaceResult
	err := db.Transaction(func(tx *gorm.DB) error {
		del := tx.Where("src_issue_id = ? AND (rel_type LIKE ? OR rel_type LIKE ?)",
			srcIssueID, "% (out)", "% (in)").Delete(&models.Relation{})
		if del.Error != nil {
			return &ReplaceError{Owner: srcIssueID, ChildKind: "issue links", Err: del.Error}
		}
		res.Removed = int(del.RowsAffected)

		for i, link := range links {
			var dst models.Issue
			err := tx.Where("project_id = ? AND remote_key = ?", projectID, link.Ref.TestKey).First(&dst).Error
			if err == gorm.ErrRecordNotFound {
				continue
			}
			if err != nil {
				return &ReplaceError{Owner: srcIssueID, ChildKind: "issue links", Row: i, Err: err}
			}
			row := models.Relation{SrcIssueID: srcIssueID, DstIssueID: dst.ID, RelType: link.RelType}
			if err := tx.Create(&row).Error; err != nil {
				return &ReplaceError{Owner: srcIssueID, ChildKind: "issue links", Row: i, Err: err}
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	return res, nil
}

// RelationsFor lists the outgoing relations of an issue for one link type,
// as mapper refs ready for a push payload.
func RelationsFor(db *gorm.DB, srcIssueID uint, relType string) ([]mapper.LinkRef, error) {
	var rels []models.Relation
	if err := db.Preload("Dst").Where("src_issue_id = ? AND rel_type = ?", srcIssueID, relType).
		Order("id ASC").Find(&rels).Error; err != nil {
		return nil, fmt.Errorf("store: list %s relations of issue %d: %w", relType, srcIssueID, err)
	}
	var out []mapper.LinkRef
	for _, r := range rels {
		if r.Dst == nil || r.Dst.RemoteKey == nil {
			continue
		}
		ref := mapper.LinkRef{TestKey: *r.Dst.RemoteKey}
		if r.Dst.RemoteID != nil {
			ref.IssueID = *r.Dst.RemoteID
		}
		out = append(out, ref)
	}
	return out, nil
}

// EnsureExecution lazily creates the run-metadata row owned by a test
// execution issue.
func EnsureExecution(db *gorm.DB, issueID uint) (*models.Execution, error) {
	var ex models.Execution
	err := db.Where("issue_id = ?", issueID).First(&ex).Error
	if err == gorm.ErrRecordNotFound {
		ex = models.Execution{IssueID: issueID}
		if err := db.Create(&ex).Error; err != nil {
			return nil, fmt.Errorf("store: create execution for issue %d: %w", issueID, err)
		}
		return &ex, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find execution for issue %d: %w", issueID, err)
	}
	return &ex, nil
}

// ExecutionMeta is the run-level metadata of a test execution, mirrored
// alongside its entries.
type ExecutionMeta struct {
	StartDate  string
	EndDate    string
	ExecutedBy string
}

// UpdateExecutionMeta records the run-level metadata on the execution row,
// creating it lazily.
func UpdateExecutionMeta(db *gorm.DB, issueID uint, meta ExecutionMeta) error {
	ex, err := EnsureExecution(db, issueID)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"start_date":  meta.StartDate,
		"end_date":    meta.EndDate,
		"executed_by": meta.ExecutedBy,
	}
	if err := db.Model(ex).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: update execution meta of issue %d: %w", issueID, err)
	}
	return nil
}

// ReplaceExecutionEntries replaces a test execution's run rows wholesale.
// The owning execution row updates its result in the same transaction, and
// step results hanging off removed entries go with them.
func ReplaceExecutionEntries(db *gorm.DB, projectID, issueID uint, result string, entries []mapper.CaseExecution) (ReplaceResult, error) {
	var res ReplaceResult
	err := db.Transaction(func(tx *gorm.DB) error {
		ex, err := EnsureExecution(tx, issueID)
		if err != nil {
			return &ReplaceError{Owner: issueID, ChildKind: "execution entries", Err: err}
		}
		if result != "" && result != ex.Result {
			if err := tx.Model(ex).Update("result", result).Error; err != nil {
				return &ReplaceError{Owner: issueID, ChildKind: "execution entries", Err: err}
			}
		}

		var old []models.ExecutionEntry
		if err := tx.Where("execution_id = ?", ex.ID).Find(&old).Error; err != nil {
			return &ReplaceError{Owner: issueID, ChildKind: "execution entries", Err: err}
		}
		for _, e := range old {
			if err := tx.Where("execution_entry_id = ?", e.ID).Delete(&models.StepResult{}).Error; err != nil {
				return &ReplaceError{Owner: issueID, ChildKind: "execution entries", Err: err}
			}
		}
		del := tx.Where("execution_id = ?", ex.ID).Delete(&models.ExecutionEntry{})
		if del.Error != nil {
			return &ReplaceError{Owner: issueID, ChildKind: "execution entries", Err: del.Error}
		}
		res.Removed = int(del.RowsAffected)

		for i, e := range entries {
			var tc models.Issue
			err := tx.Where("project_id = ? AND remote_key = ? AND kind = ?",
				projectID, e.TestKey, string(mapper.KindTestCase)).First(&tc).Error
			if err == gorm.ErrRecordNotFound {
				continue
			}
			if err != nil {
				return &ReplaceError{Owner: issueID, ChildKind: "execution entries", Row: i, Err: err}
			}
			row := models.ExecutionEntry{
				ExecutionID: ex.ID,
				TestCaseID:  tc.ID,
				OrderNo:     e.OrderNo,
				Assignee:    e.Assignee,
				Result:      e.Result,
				ActualTime:  e.ActualTime,
				Environment: e.Environment,
				Defects:     strings.Join(e.Defects, ","),
				RemoteKey:   e.EntryKey,
			}
			if err := tx.Create(&row).Error; err != nil {
				return &ReplaceError{Owner: issueID, ChildKind: "execution entries", Row: i, Err: err}
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	return res, nil
}

// StepResultInput is one recorded step outcome for ReplaceStepResults.
type StepResultInput struct {
	StepID       uint
	Status       string
	ActualResult string
	Evidence     string
}

// ReplaceStepResults replaces the step outcomes of one execution entry
// wholesale. Every referenced step must belong to the entry's test case;
// a stale reference aborts the whole replacement.
func ReplaceStepResults(db *gorm.DB, entryID uint, results []StepResultInput) (ReplaceResult, error) {
	var res ReplaceResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var entry models.ExecutionEntry
		if err := tx.Where("id = ?", entryID).First(&entry).Error; err != nil {
			return &ReplaceError{Owner: entryID, ChildKind: "step results", Err: err}
		}

		del := tx.Where("execution_entry_id = ?", entryID).Delete(&models.StepResult{})
		if del.Error != nil {
			return &ReplaceError{Owner: entryID, ChildKind: "step results", Err: del.Error}
		}
		res.Removed = int(del.RowsAffected)

		for i, r := range results {
			var st models.TestStep
			if err := tx.Where("id = ?", r.StepID).First(&st).Error; err != nil {
				return &ReplaceError{Owner: entryID, ChildKind: "step results", Row: i, Err: err}
			}
			if st.IssueID != entry.TestCaseID {
				return &ReplaceError{
					Owner: entryID, ChildKind: "step results", Row: i,
					Err: fmt.Errorf("step %d belongs to issue %d, not test case %d", r.StepID, st.IssueID, entry.TestCaseID),
				}
			}
			row := models.StepResult{
				ExecutionEntryID: entryID,
				StepID:           r.StepID,
				Status:           r.Status,
				ActualResult:     r.ActualResult,
				Evidence:         r.Evidence,
			}
			if err := tx.Create(&row).Error; err != nil {
				return &ReplaceError{Owner: entryID, ChildKind: "step results", Row: i, Err: err}
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	return res, nil
}

// StepsFor returns an issue's steps in (group, order) sequence as mapper
// steps ready for a push payload.
func StepsFor(db *gorm.DB, issueID uint) ([]mapper.Step, error) {
	var rows []models.TestStep
	if err := db.Where("issue_id = ?", issueID).
		Order("group_no ASC, order_no ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list steps of issue %d: %w", issueID, err)
	}
	var out []mapper.Step
	for _, r := range rows {
		out = append(out, mapper.Step{
			GroupNo: r.GroupNo, OrderNo: r.OrderNo,
			Action: r.Action, Input: r.Input, Expected: r.Expected,
		})
	}
	return out, nil
}

// PlanEntriesFor returns a plan's membership in order as refs for a push
// payload.
func PlanEntriesFor(db *gorm.DB, planID uint) ([]mapper.LinkRef, error) {
	var rows []models.PlanEntry
	if err := db.Preload("TestCase").Where("plan_id = ?", planID).
		Order("order_no ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list entries of plan %d: %w", planID, err)
	}
	var out []mapper.LinkRef
	for _, r := range rows {
		if r.TestCase == nil || r.TestCase.RemoteKey == nil {
			continue
		}
		out = append(out, mapper.LinkRef{TestKey: *r.TestCase.RemoteKey})
	}
	return out, nil
}

// ExecutionEntriesFor returns an execution's run rows in order as mapper
// case executions for a push payload.
func ExecutionEntriesFor(db *gorm.DB, issueID uint) ([]mapper.CaseExecution, error) {
	var ex models.Execution
	err := db.Where("issue_id = ?", issueID).First(&ex).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find execution for issue %d: %w", issueID, err)
	}
	var rows []models.ExecutionEntry
	if err := db.Preload("TestCase").Where("execution_id = ?", ex.ID).
		Order("order_no ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list entries of execution %d: %w", ex.ID, err)
	}
	var out []mapper.CaseExecution
	for _, r := range rows {
		if r.TestCase == nil || r.TestCase.RemoteKey == nil {
			continue
		}
		ce := mapper.CaseExecution{
			TestKey:     *r.TestCase.RemoteKey,
			OrderNo:     r.OrderNo,
			Assignee:    r.Assignee,
			Result:      r.Result,
			Environment: r.Environment,
			ActualTime:  r.ActualTime,
			EntryKey:    r.RemoteKey,
		}
		if r.Defects != "" {
			ce.Defects = strings.Split(r.Defects, ",")
		}
		out = append(out, ce)
	}
	return out, nil
}
