package editor

import (
	"context"
	"fmt"

	"frameline/api/internal/doctype"
	"frameline/api/internal/imports"
	"frameline/api/internal/versionstack"
	"frameline/api/internal/workspace"
)

// SeedBudgetActuals copies the budget's line items into the head of the
// budget-actual draft, once. Items are copied whole with actual reset to
// 0. It reports false when there is nothing to copy or the actuals
// already carry line items.
func (c *Container) SeedBudgetActuals(ctx context.Context) (bool, error) {
	seeded := false
	err := c.update(ctx, func(state *workspace.State) (bool, error) {
		source := imports.Resolve(state.Phases).Budget
		items := lineItems(source)
		if len(items) == 0 {
			return false, nil
		}

		owner := workspace.PhasePost
		if spec, ok := doctype.Lookup(doctype.BudgetActual); ok {
			owner = spec.Phase
		}
		ps, ok := state.Phases[owner]
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrUnknownPhase, owner)
		}
		if ps.Locked {
			return false, ErrPhaseLocked
		}

		stack := versionstack.Decode(ps.Drafts[doctype.BudgetActual])
		head, ok := versionstack.Object(stack[0])
		if !ok {
			head = map[string]any{}
		}
		if len(lineItems(head)) > 0 {
			return false, nil
		}

		copied := make([]any, 0, len(items))
		for _, item := range items {
			entry := make(map[string]any, len(item)+1)
			for key, value := range item {
				entry[key] = value
			}
			entry["actual"] = 0
			copied = append(copied, entry)
		}
		head["lineItems"] = copied

		next := make(versionstack.Stack, len(stack))
		copy(next, stack)
		next[0] = versionstack.MarshalRecord(head)
		if _, err := reconcileInto(state, owner, doctype.BudgetActual, versionstack.Encode(next)); err != nil {
			return false, err
		}
		seeded = true
		return true, nil
	})
	return seeded, err
}

// lineItems returns the object entries of record["lineItems"]. Entries of
// any other shape are skipped.
func lineItems(record map[string]any) []map[string]any {
	raw, _ := record["lineItems"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
