// Package fields pulls structured document fields out of free text written
// by a user or returned by the assistant. It recognises bolded section
// labels such as "**Objective:**" and is fully deterministic.
package fields

import (
	"regexp"
	"strings"

	"frameline/api/internal/doctype"
	"frameline/api/internal/util"
)

const maxLabelLength = 80

var listSeparators = regexp.MustCompile(`[,;\n]`)

// Frame defaults applied to scenes seeded from narrative text.
const (
	DefaultShotType    = "Wide"
	DefaultCameraAngle = "Eye Level"
	DefaultMovement    = "Static"
	DefaultDuration    = "3s"
)

type section struct {
	label string
	body  string
}

// Extract returns the fields recognised for the tool, or false when none
// of the tool's labels matched. Partial matches return only the fields
// that were found.
func Extract(toolKey, text string) (map[string]any, bool) {
	spec, ok := doctype.Lookup(toolKey)
	if !ok {
		return nil, false
	}
	if spec.FreeText {
		content := strings.TrimSpace(text)
		if content == "" {
			return nil, false
		}
		return map[string]any{"content": content}, true
	}
	if len(spec.Labels) == 0 {
		return nil, false
	}

	out := make(map[string]any)
	for _, sec := range sections(text) {
		label, ok := match(spec.Labels, sec.label)
		if !ok || sec.body == "" {
			continue
		}
		switch {
		case label.Repeat:
			items, _ := out[label.Field].([]any)
			out[label.Field] = append(items, newFrame(sec.body))
		case label.List:
			if _, seen := out[label.Field]; seen {
				continue
			}
			if items := SplitList(sec.body); len(items) > 0 {
				out[label.Field] = items
			}
		default:
			if _, seen := out[label.Field]; seen {
				continue
			}
			out[label.Field] = sec.body
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// sections splits text at every bold label; each body runs to the next
// label or the end of the text.
func sections(text string) []section {
	labels := boldLabels(text)
	out := make([]section, 0, len(labels))
	for i, l := range labels {
		end := len(text)
		if i+1 < len(labels) {
			end = labels[i+1].start
		}
		out = append(out, section{
			label: normalizeLabel(l.name),
			body:  strings.TrimSpace(text[l.end:end]),
		})
	}
	return out
}

type boldLabel struct {
	start, end int
	name       string
}

// boldLabels finds "**Label:**" and "**Label**:" by walking the "**"
// markers as open/close pairs, so the closing marker of inline bold text
// never opens a label. A pair spanning a line break is not bold; its
// second marker is retried as an opener.
func boldLabels(text string) []boldLabel {
	var out []boldLabel
	pos := 0
	for {
		open := strings.Index(text[pos:], "**")
		if open < 0 {
			return out
		}
		open += pos
		closeAt := strings.Index(text[open+2:], "**")
		if closeAt < 0 {
			return out
		}
		closeAt += open + 2
		inner := text[open+2 : closeAt]
		if strings.Contains(inner, "\n") {
			pos = closeAt
			continue
		}
		end := closeAt + 2
		pos = end

		name := strings.TrimSpace(inner)
		if strings.HasSuffix(name, ":") {
			name = strings.TrimSpace(strings.TrimSuffix(name, ":"))
		} else {
			rest := strings.TrimLeft(text[end:], " \t")
			if !strings.HasPrefix(rest, ":") {
				continue
			}
			end = len(text) - len(rest) + 1
			pos = end
		}
		if name == "" || len(name) > maxLabelLength {
			continue
		}
		out = append(out, boldLabel{start: open, end: end, name: name})
	}
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.TrimSuffix(label, ":")
	return strings.Join(strings.Fields(label), " ")
}

func match(labels []doctype.Label, name string) (doctype.Label, bool) {
	for _, label := range labels {
		for _, alias := range label.Aliases {
			if alias == name || (label.Repeat && numbered(name, alias)) {
				return label, true
			}
		}
	}
	return doctype.Label{}, false
}

// numbered accepts "scene 3", "scene #3" and "scene 3a" for the alias
// "scene".
func numbered(name, alias string) bool {
	rest, ok := strings.CutPrefix(name, alias+" ")
	if !ok {
		return false
	}
	rest = strings.TrimPrefix(rest, "#")
	if rest == "" || rest[0] < '0' || rest[0] > '9' {
		return false
	}
	return !strings.ContainsAny(rest, " \t")
}

// SplitList splits on commas, semicolons and newlines, dropping bullets
// and empty entries.
func SplitList(body string) []any {
	parts := listSeparators.Split(body, -1)
	out := make([]any, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(part), "-*•"))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func newFrame(caption string) map[string]any {
	frame, err := doctype.EncodeRecord(doctype.Frame{
		ID:          util.NewID("frame"),
		Caption:     caption,
		ShotType:    DefaultShotType,
		CameraAngle: DefaultCameraAngle,
		Movement:    DefaultMovement,
		Duration:    DefaultDuration,
	})
	if err != nil {
		return map[string]any{"caption": caption}
	}
	return frame
}
