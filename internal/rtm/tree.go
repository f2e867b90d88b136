package rtm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TreeNode is one node of a kind-scoped remote tree: either a FOLDER with
// children, or an issue leaf carrying its key.
type TreeNode struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Name     string     `json:"name"`
	Summary  string     `json:"summary"`
	Key      string     `json:"key"`
	JiraKey  string     `json:"jiraKey"`
	JiraID   int64      `json:"jiraId"`
	Children []TreeNode `json:"children"`
}

// IsFolder reports whether the node is a structural folder rather than an
// issue leaf.
func (n *TreeNode) IsFolder() bool { return n.Type == "FOLDER" }

// IssueKey returns the leaf's remote key under either of its field names.
func (n *TreeNode) IssueKey() string {
	if n.JiraKey != "" {
		return n.JiraKey
	}
	return n.Key
}

// DisplayName returns the node's human label under its field aliases.
func (n *TreeNode) DisplayName() string {
	switch {
	case n.Name != "":
		return n.Name
	case n.Summary != "":
		return n.Summary
	default:
		return n.IssueKey()
	}
}

// treeEnvelope tolerates the wrapped object form some remote versions send
// instead of a bare root list.
type treeEnvelope struct {
	Roots    []TreeNode `json:"roots"`
	Children []TreeNode `json:"children"`
}

// GetTree fetches the tree for one kind scope ("test-cases" etc.). The
// remote answers with either a list of roots or a wrapper object; both
// decode to the same slice.
func (c *Client) GetTree(ctx context.Context, scope string) ([]TreeNode, error) {
	path := fmt.Sprintf("%s/tree/%d?treeType=%s", apiBase, c.cfg.ProjectID, scope)
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return decodeTree(raw, path)
}

func decodeTree(raw json.RawMessage, path string) ([]TreeNode, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var roots []TreeNode
	if err := json.Unmarshal(raw, &roots); err == nil {
		return roots, nil
	}
	var env treeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("rtm: decode tree %s: %w", path, err)
	}
	if env.Roots != nil {
		return env.Roots, nil
	}
	return env.Children, nil
}
