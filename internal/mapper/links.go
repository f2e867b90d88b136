package mapper

import "fmt"

// LinkOp is the write verb for a link-bearing field.
type LinkOp string

const (
	// OpSet replaces the remote list exactly with the given refs. An empty
	// ref list is an explicit clear.
	OpSet LinkOp = "set"
	// OpAdd unions the given refs into the remote list.
	OpAdd LinkOp = "add"
	// OpRemove subtracts the given refs from the remote list.
	OpRemove LinkOp = "remove"
)

// LinkUpdate is one write to a link-bearing field. The zero Op is invalid:
// the caller must choose a verb, so "empty means no-op" and "empty means
// clear" can never be confused.
type LinkUpdate struct {
	Op   LinkOp
	Refs []LinkRef
}

// Validate rejects updates without an explicit verb.
func (u LinkUpdate) Validate() error {
	switch u.Op {
	case OpSet, OpAdd, OpRemove:
		return nil
	case "":
		return fmt.Errorf("mapper: link update requires an explicit verb")
	default:
		return fmt.Errorf("mapper: unknown link verb %q", u.Op)
	}
}

// Payload renders the update in the remote write protocol.
func (u LinkUpdate) Payload() map[string]any {
	items := make([]map[string]any, 0, len(u.Refs))
	for _, r := range u.Refs {
		item := map[string]any{"testKey": r.TestKey}
		if r.IssueID != 0 {
			item["issueId"] = r.IssueID
		}
		items = append(items, item)
	}
	return map[string]any{
		"operation": string(u.Op),
		"items":     items,
	}
}

// Apply computes the local result of the update over an existing ref list,
// preserving first-seen order.
func (u LinkUpdate) Apply(existing []LinkRef) ([]LinkRef, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	switch u.Op {
	case OpSet:
		return append([]LinkRef(nil), u.Refs...), nil
	case OpAdd:
		out := append([]LinkRef(nil), existing...)
		seen := make(map[string]bool, len(existing))
		for _, r := range existing {
			seen[r.TestKey] = true
		}
		for _, r := range u.Refs {
			if !seen[r.TestKey] {
				out = append(out, r)
				seen[r.TestKey] = true
			}
		}
		return out, nil
	default: // OpRemove
		drop := make(map[string]bool, len(u.Refs))
		for _, r := range u.Refs {
			drop[r.TestKey] = true
		}
		var out []LinkRef
		for _, r := range existing {
			if !drop[r.TestKey] {
				out = append(out, r)
			}
		}
		return out, nil
	}
}

// ApplyLinkUpdates writes validated link updates into a remote payload.
func ApplyLinkUpdates(payload map[string]any, updates map[string]LinkUpdate) error {
	for field, u := range updates {
		if err := u.Validate(); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		payload[field] = u.Payload()
	}
	return nil
}
