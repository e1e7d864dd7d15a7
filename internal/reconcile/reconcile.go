// Package reconcile merges an incoming update into one tool's draft.
//
// An incoming JSON array replaces the whole version stack; the editor UI
// uses this for New, Duplicate, Clear, Delete and reordering. Anything
// else is merged into the head version only, never into older versions.
package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"frameline/api/internal/doctype"
	"frameline/api/internal/fields"
	"frameline/api/internal/util"
	"frameline/api/internal/versionstack"
	"frameline/api/internal/workspace"
)

type Outcome string

const (
	OutcomeLocked     Outcome = "locked"
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeReplaced   Outcome = "replaced"
	OutcomeFields     Outcome = "fields"
	OutcomeMergedJSON Outcome = "merged-json"
	OutcomeAppended   Outcome = "appended"
)

// Result describes what Reconcile did. Warnings carry schema problems
// found in the written versions; they never block the write.
type Result struct {
	Outcome  Outcome  `json:"outcome"`
	Fields   []string `json:"fields,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Changed reports whether the drafts were rewritten.
func (r Result) Changed() bool {
	return r.Outcome != OutcomeLocked && r.Outcome != OutcomeUnchanged
}

// Reconcile returns the phase with the tool's draft updated. The input
// phase is not modified. A locked phase is returned as-is.
func Reconcile(phase workspace.PhaseState, toolKey, incoming string) (workspace.PhaseState, Result) {
	if phase.Locked {
		return phase, Result{Outcome: OutcomeLocked}
	}

	if replacement, ok := versionstack.ParseArray(incoming); ok {
		if len(replacement) == 0 {
			replacement = versionstack.Empty()
		}
		next := phase.Clone()
		next.Drafts[toolKey] = versionstack.Encode(replacement)
		return next, Result{Outcome: OutcomeReplaced, Warnings: validateStack(toolKey, replacement)}
	}

	text := strings.TrimSpace(incoming)
	if text == "" {
		return phase, Result{Outcome: OutcomeUnchanged}
	}

	stack := versionstack.Decode(phase.Drafts[toolKey])
	head, result := mergeHead(toolKey, stack[0], text)

	updated := make(versionstack.Stack, len(stack))
	copy(updated, stack)
	updated[0] = head

	next := phase.Clone()
	next.Drafts[toolKey] = versionstack.Encode(updated)
	if obj, ok := versionstack.Object(head); ok {
		if err := doctype.Validate(toolKey, obj); err != nil {
			result.Warnings = append(result.Warnings, err.Error())
		}
	}
	return next, result
}

func mergeHead(toolKey string, head json.RawMessage, text string) (json.RawMessage, Result) {
	headObj, headIsObject := versionstack.Object(head)

	// Free-text tools extract any text, so a JSON patch is tried first.
	if doctype.MergeOf(toolKey) == doctype.MergeVisionPages {
		if patch, ok := parseObject(text); ok {
			return mergePatch(headObj, headIsObject, patch)
		}
	}

	if extracted, ok := fields.Extract(toolKey, text); ok {
		if !headIsObject {
			headObj = objectFromText(head)
		}
		switch doctype.MergeOf(toolKey) {
		case doctype.MergeVisionPages:
			content, _ := extracted["content"].(string)
			appendVisionText(headObj, content)
		case doctype.MergeAppendFrames:
			appendFrames(headObj, extracted)
		default:
			for key, value := range extracted {
				headObj[key] = value
			}
		}
		return versionstack.MarshalRecord(headObj), Result{Outcome: OutcomeFields, Fields: sortedKeys(extracted)}
	}

	if patch, ok := parseObject(text); ok {
		return mergePatch(headObj, headIsObject, patch)
	}

	if headIsObject {
		field := "notes"
		if existing, ok := headObj["objective"].(string); ok {
			field = "objective"
			headObj[field] = joinBlock(existing, text)
		} else {
			existing, _ := headObj["notes"].(string)
			headObj[field] = joinBlock(existing, text)
		}
		return versionstack.MarshalRecord(headObj), Result{Outcome: OutcomeAppended, Fields: []string{field}}
	}

	existing := headText(head)
	if existing == "" || existing == "{}" {
		return versionstack.MarshalText(text), Result{Outcome: OutcomeAppended}
	}
	return versionstack.MarshalText(existing + "\n\n" + text), Result{Outcome: OutcomeAppended}
}

func mergePatch(headObj map[string]any, headIsObject bool, patch map[string]any) (json.RawMessage, Result) {
	if !headIsObject {
		headObj = map[string]any{}
	}
	for key, value := range patch {
		headObj[key] = value
	}
	return versionstack.MarshalRecord(headObj), Result{Outcome: OutcomeMergedJSON, Fields: sortedKeys(patch)}
}

// appendVisionText adds text to the active page, falling back to the last
// page, or creates the first page and makes it active. Pages are located
// through the typed record but edited in place, so page keys the record
// does not know survive.
func appendVisionText(head map[string]any, text string) {
	pages, _ := head["pages"].([]any)
	record, err := doctype.DecodeRecord[doctype.VisionRecord](map[string]any{
		"activePageId": head["activePageId"],
		"pages":        pages,
	})
	if err != nil {
		log.Printf("reconcile: vision pages unreadable, starting a new page: %v", err)
		record = doctype.VisionRecord{}
	}

	target := -1
	if record.ActivePageID != "" {
		for i, page := range record.Pages {
			if page.ID == record.ActivePageID {
				target = i
				break
			}
		}
	}
	if target < 0 && len(record.Pages) > 0 {
		target = len(record.Pages) - 1
	}

	if target < 0 {
		page, err := doctype.EncodeRecord(doctype.VisionPage{
			ID:      util.NewID("page"),
			Title:   fmt.Sprintf("Page %d", len(pages)+1),
			Content: text,
		})
		if err != nil {
			return
		}
		head["pages"] = append(pages, page)
		head["activePageId"] = page["id"]
		return
	}

	page, ok := pages[target].(map[string]any)
	if !ok {
		return
	}
	page["content"] = joinBlock(record.Pages[target].Content, text)
	head["pages"] = pages
}

func appendFrames(head map[string]any, extracted map[string]any) {
	for key, value := range extracted {
		if key != "frames" {
			head[key] = value
			continue
		}
		existing, _ := head["frames"].([]any)
		added, _ := value.([]any)
		head["frames"] = append(existing, added...)
	}
}

// objectFromText turns a plain-text head into an object so structured
// fields can be merged, keeping any existing text as notes.
func objectFromText(head json.RawMessage) map[string]any {
	out := map[string]any{}
	if text := headText(head); text != "" && text != "{}" {
		out["notes"] = text
	}
	return out
}

func headText(head json.RawMessage) string {
	if text, ok := versionstack.Text(head); ok {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(string(head))
}

func parseObject(text string) (map[string]any, bool) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	return obj, obj != nil
}

func joinBlock(existing, text string) string {
	if strings.TrimSpace(existing) == "" {
		return text
	}
	return existing + "\n\n" + text
}

func validateStack(toolKey string, stack versionstack.Stack) []string {
	var warnings []string
	for i, item := range stack {
		obj, ok := versionstack.Object(item)
		if !ok {
			continue
		}
		if err := doctype.Validate(toolKey, obj); err != nil {
			warnings = append(warnings, fmt.Sprintf("version %d: %v", i, err))
		}
	}
	return warnings
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
