// Package sync runs the pull and push passes between the remote issue
// service and the local mirror. Pulls are last-writer-wins overwrites,
// pushes send only dirty records; both isolate per-node failures into the
// run result instead of aborting siblings.
package sync

import (
	"context"
	"fmt"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/rtm"
)

// Remote is the slice of the remote client the sync passes consume. The
// rtm.Client satisfies it; tests substitute a fake.
type Remote interface {
	GetTree(ctx context.Context, scope string) ([]rtm.TreeNode, error)
	GetEntity(ctx context.Context, kind mapper.Kind, testKey string) (map[string]any, error)
	CreateEntity(ctx context.Context, kind mapper.Kind, payload map[string]any) (map[string]any, error)
	UpdateEntity(ctx context.Context, kind mapper.Kind, testKey string, payload map[string]any) error
	UpdateSteps(ctx context.Context, testKey string, payload map[string]any) error
	UpdatePlanTestCases(ctx context.Context, testKey string, payload map[string]any) error
	UpdateExecutionTestCases(ctx context.Context, testKey string, payload map[string]any) error
}

// NodeError is one isolated failure within a run.
type NodeError struct {
	Scope string
	Key   string
	Err   error
}

func (e NodeError) Error() string {
	return fmt.Sprintf("sync: %s %s: %v", e.Scope, e.Key, e.Err)
}

func (e NodeError) Unwrap() error { return e.Err }

// Result tallies one pull or push run.
type Result struct {
	Created    int
	Updated    int
	Unchanged  int
	Tombstoned int
	Pushed     int
	Failures   []NodeError
}

// Merge folds another result into r.
func (r *Result) Merge(other *Result) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Tombstoned += other.Tombstoned
	r.Pushed += other.Pushed
	r.Failures = append(r.Failures, other.Failures...)
}

func (r *Result) fail(scope, key string, err error) {
	r.Failures = append(r.Failures, NodeError{Scope: scope, Key: key, Err: err})
}

// Summary renders the run outcome in one line.
func (r *Result) Summary() string {
	return fmt.Sprintf("created=%d updated=%d unchanged=%d tombstoned=%d pushed=%d failures=%d",
		r.Created, r.Updated, r.Unchanged, r.Tombstoned, r.Pushed, len(r.Failures))
}
