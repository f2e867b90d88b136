package sync

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
	"github.com/quayside/rtmirror/internal/rtm"
	"github.com/quayside/rtmirror/internal/store"
)

// PullOpts tunes a pull run.
type PullOpts struct {
	// Scopes limits the run to the named tree scopes; empty means all five.
	Scopes []string
	// SkipDirty spares locally edited records from the last-writer-wins
	// overwrite and from the end-of-scope tombstone pass. Default behavior
	// is to overwrite: the remote is the source of truth on pull.
	SkipDirty bool
	// TreeOnly skips the per-issue detail fetch, reconciling only folder
	// placement and summaries out of the tree payload.
	TreeOnly bool
}

// PullTree reconciles the local mirror against the remote trees, one kind
// scope at a time. Folder nodes recurse depth-first in remote order; issue
// leaves pull their full detail unless opts.TreeOnly. After each scope's
// traversal, remote-bound records the walk never visited are tombstoned,
// not purged. Cancellation is consulted between top-level nodes; a failed
// node lands in the result and its siblings proceed.
func PullTree(ctx context.Context, db *gorm.DB, remote Remote, project *models.Project, opts PullOpts) (*Result, error) {
	scopes := opts.Scopes
	if len(scopes) == 0 {
		for _, k := range mapper.Kinds {
			scopes = append(scopes, mapper.ScopeForKind(k))
		}
	}

	res := &Result{}
	covered := map[mapper.Kind]bool{}
	for _, scope := range scopes {
		kind, ok := mapper.KindForScope(scope)
		if !ok {
			return res, fmt.Errorf("sync: unknown tree scope %q", scope)
		}
		covered[kind] = true
		if err := ctx.Err(); err != nil {
			return res, err
		}

		roots, err := remote.GetTree(ctx, scope)
		if err != nil {
			// A failed tree fetch skips the whole scope, tombstone pass
			// included: absence of evidence is not evidence of absence.
			res.fail(scope, "tree", err)
			continue
		}

		w := &treeWalk{
			ctx: ctx, db: db, remote: remote, project: project,
			kind: kind, scope: scope, opts: opts, res: res,
		}
		for i, root := range roots {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			w.node(root, nil, i)
		}

		if n, err := store.TombstoneFoldersNotIn(db, project.ID, kind, w.seenFolders); err != nil {
			res.fail(scope, "tombstone folders", err)
		} else {
			res.Tombstoned += int(n)
		}
		if n, err := store.TombstoneIssuesNotIn(db, project.ID, kind, w.seenIssues, opts.SkipDirty); err != nil {
			res.fail(scope, "tombstone issues", err)
		} else {
			res.Tombstoned += int(n)
		}
	}

	// A full-detail pass over every scope is the full checkpoint; anything
	// narrower only advances the tree timestamp.
	checkpoint := store.CheckpointTree
	if !opts.TreeOnly && len(covered) == len(mapper.Kinds) {
		checkpoint = store.CheckpointFull
	}
	if err := store.MarkSynced(db, project.ID, checkpoint, time.Now()); err != nil {
		res.fail("checkpoint", string(checkpoint), err)
	}
	return res, nil
}

// treeWalk carries the per-scope traversal state.
type treeWalk struct {
	ctx     context.Context
	db      *gorm.DB
	remote  Remote
	project *models.Project
	kind    mapper.Kind
	scope   string
	opts    PullOpts
	res     *Result

	seenFolders []string
	seenIssues  []string
}

func (w *treeWalk) node(n rtm.TreeNode, parentID *string, order int) {
	if n.IsFolder() {
		f, err := store.UpsertFolder(w.db, w.project.ID, n.ID, n.DisplayName(), w.kind, parentID, order)
		if err != nil {
			w.res.fail(w.scope, n.ID, err)
			return
		}
		w.seenFolders = append(w.seenFolders, f.ID)
		for i, child := range n.Children {
			w.node(child, &f.ID, i)
		}
		return
	}

	key := n.IssueKey()
	if key == "" {
		w.res.fail(w.scope, n.ID, fmt.Errorf("issue node without a key"))
		return
	}
	w.seenIssues = append(w.seenIssues, key)
	if err := w.issue(n, key, parentID); err != nil {
		w.res.fail(w.scope, key, err)
	}
}

// issue reconciles one leaf: ensure the row exists under the right folder,
// then pull details and compare fingerprints.
func (w *treeWalk) issue(n rtm.TreeNode, key string, folderID *string) error {
	iss, created, err := ensureIssueRow(w.db, w.project.ID, w.kind, key, n, folderID)
	if err != nil {
		return err
	}
	if created {
		w.res.Created++
	}

	if w.opts.TreeOnly {
		if !created {
			w.res.Unchanged++
		}
		return nil
	}

	outcome, err := pullDetail(w.ctx, w.db, w.remote, w.project, w.kind, iss, w.opts)
	if err != nil {
		return err
	}
	if !created {
		switch outcome {
		case pullUpdated:
			w.res.Updated++
		default:
			w.res.Unchanged++
		}
	}
	return nil
}

// ensureIssueRow finds or creates the mirrored row for a tree leaf and
// keeps its folder placement current.
func ensureIssueRow(db *gorm.DB, projectID uint, kind mapper.Kind, key string, n rtm.TreeNode, folderID *string) (*models.Issue, bool, error) {
	var iss models.Issue
	err := db.Where("project_id = ? AND remote_key = ?", projectID, key).First(&iss).Error
	if err == gorm.ErrRecordNotFound {
		iss = models.Issue{
			ProjectID: projectID,
			RemoteKey: &key,
			Kind:      string(kind),
			FolderID:  folderID,
			Summary:   n.DisplayName(),
		}
		if n.JiraID != 0 {
			iss.RemoteID = &n.JiraID
		}
		if err := db.Create(&iss).Error; err != nil {
			return nil, false, fmt.Errorf("create issue %s: %w", key, err)
		}
		return &iss, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find issue %s: %w", key, err)
	}

	updates := map[string]any{}
	if (iss.FolderID == nil) != (folderID == nil) ||
		(iss.FolderID != nil && folderID != nil && *iss.FolderID != *folderID) {
		updates["folder_id"] = folderID
	}
	if iss.RemoteID == nil && n.JiraID != 0 {
		updates["remote_id"] = n.JiraID
	}
	// The remote can re-type an issue under the same key; a stale kind
	// would strand the row in the old scope's tombstone pass.
	if iss.Kind != string(kind) {
		updates["kind"] = string(kind)
		iss.Kind = string(kind)
	}
	if len(updates) > 0 {
		if err := db.Model(&iss).Updates(updates).Error; err != nil {
			return nil, false, fmt.Errorf("replace issue %s: %w", key, err)
		}
	}
	return &iss, false, nil
}

type pullOutcome int

const (
	pullUnchanged pullOutcome = iota
	pullUpdated
	pullSkipped
)

// pullDetail fetches one issue's full payload, compares its fingerprint to
// the stored one and overwrites the local record on mismatch. The overwrite
// is last-writer-wins; opts.SkipDirty exempts locally edited rows.
func pullDetail(ctx context.Context, db *gorm.DB, remote Remote, project *models.Project, kind mapper.Kind, iss *models.Issue, opts PullOpts) (pullOutcome, error) {
	if opts.SkipDirty && iss.Dirty {
		return pullSkipped, nil
	}
	key := *iss.RemoteKey
	payload, err := remote.GetEntity(ctx, kind, key)
	if err != nil {
		return pullUnchanged, err
	}
	f, err := mapper.ToLocal(kind, payload)
	if err != nil {
		return pullUnchanged, err
	}
	fp := Fingerprint(f)
	if fp == iss.Fingerprint && !iss.Deleted && !iss.Dirty {
		return pullUnchanged, nil
	}

	if err := store.ApplyRemoteFields(db, iss.ID, f, fp, time.Now()); err != nil {
		return pullUnchanged, err
	}
	if err := applyChildren(db, project.ID, iss.ID, f); err != nil {
		return pullUnchanged, err
	}
	return pullUpdated, nil
}

// applyChildren lands the kind-specific child rows a detail pull carries,
// plus the generic issue links every kind may have.
func applyChildren(db *gorm.DB, projectID, issueID uint, f *mapper.Fields) error {
	if _, err := store.ReplaceIssueLinks(db, projectID, issueID, f.Links); err != nil {
		return err
	}
	switch f.Kind {
	case mapper.KindRequirement:
		_, err := store.ReplaceRelations(db, projectID, issueID, "covered-by", f.Requirement.CoveredTestCases)
		return err
	case mapper.KindTestCase:
		if _, err := store.ReplaceSteps(db, issueID, f.TestCase.Steps); err != nil {
			return err
		}
		_, err := store.ReplaceRelations(db, projectID, issueID, "covers", f.TestCase.CoveredRequirements)
		return err
	case mapper.KindTestPlan:
		if _, err := store.ReplacePlanEntries(db, projectID, issueID, f.TestPlan.IncludedTestCases); err != nil {
			return err
		}
		_, err := store.ReplaceRelations(db, projectID, issueID, "executed-by", f.TestPlan.Executions)
		return err
	case mapper.KindTestExecution:
		if _, err := store.ReplaceExecutionEntries(db, projectID, issueID, f.TestExecution.Result, f.TestExecution.CaseExecutions); err != nil {
			return err
		}
		return store.UpdateExecutionMeta(db, issueID, store.ExecutionMeta{
			StartDate:  f.TestExecution.StartDate,
			EndDate:    f.TestExecution.EndDate,
			ExecutedBy: f.TestExecution.ExecutedBy,
		})
	case mapper.KindDefect:
		if _, err := store.ReplaceRelations(db, projectID, issueID, "detected-by", f.Defect.DetectingExecutions); err != nil {
			return err
		}
		_, err := store.ReplaceRelations(db, projectID, issueID, "identified-by", f.Defect.IdentifyingTestCases)
		return err
	}
	return nil
}

// PullIssue refreshes a single issue by remote key without a tree walk.
func PullIssue(ctx context.Context, db *gorm.DB, remote Remote, project *models.Project, remoteKey string, opts PullOpts) (*Result, error) {
	res := &Result{}
	iss, err := store.FindIssue(db, project.ID, remoteKey)
	if err != nil {
		return res, err
	}
	kind, ok := mapper.ParseKind(iss.Kind)
	if !ok {
		return res, fmt.Errorf("sync: issue %s has unknown kind %q", remoteKey, iss.Kind)
	}
	outcome, err := pullDetail(ctx, db, remote, project, kind, iss, opts)
	if err != nil {
		res.fail(mapper.ScopeForKind(kind), remoteKey, err)
		return res, nil
	}
	switch outcome {
	case pullUpdated:
		res.Updated++
	default:
		res.Unchanged++
	}
	if err := store.MarkSynced(db, project.ID, store.CheckpointIssue, time.Now()); err != nil {
		res.fail("checkpoint", "issue", err)
	}
	return res, nil
}
