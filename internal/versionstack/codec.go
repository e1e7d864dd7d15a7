// Package versionstack encodes a document's content as an ordered list of
// versions. Index 0 is the head. Decoding never fails: anything unreadable
// becomes a single empty version so the editor can always render.
package versionstack

import (
	"bytes"
	"encoding/json"
)

// Stack is type-erased; each element is one version record as raw JSON.
type Stack []json.RawMessage

var emptyRecord = json.RawMessage(`{}`)

// Empty returns the normalized empty stack, [{}].
func Empty() Stack {
	return Stack{cloneRaw(emptyRecord)}
}

// Decode reads a serialized draft. Arrays are returned as-is (an empty
// array becomes [{}]), a bare object is a pre-versioning draft and is
// wrapped, everything else degrades to [{}].
func Decode(raw string) Stack {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return Empty()
	}
	switch trimmed[0] {
	case '[':
		var stack Stack
		if err := json.Unmarshal(trimmed, &stack); err != nil {
			return Empty()
		}
		if len(stack) == 0 {
			return Empty()
		}
		return stack
	case '{':
		if !json.Valid(trimmed) {
			return Empty()
		}
		return Stack{cloneRaw(trimmed)}
	default:
		return Empty()
	}
}

// ParseArray reports whether raw is a JSON array and returns it unchanged
// when it is. Used for authoritative whole-stack replacement.
func ParseArray(raw string) (Stack, bool) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var stack Stack
	if err := json.Unmarshal(trimmed, &stack); err != nil {
		return nil, false
	}
	if stack == nil {
		stack = Stack{}
	}
	return stack, true
}

// Encode serializes the stack. Elements are written back exactly as they
// were decoded, so untouched versions stay byte-for-byte identical.
// Invalid elements are replaced by {}; nil encodes as [].
func Encode(stack Stack) string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range stack {
		if i > 0 {
			buf.WriteByte(',')
		}
		if len(bytes.TrimSpace(item)) == 0 || !json.Valid(item) {
			buf.Write(emptyRecord)
			continue
		}
		buf.Write(item)
	}
	buf.WriteByte(']')
	return buf.String()
}

// Object reads one version as a JSON object. A JSON string holding an
// object (double-encoded legacy head) is unwrapped.
func Object(msg json.RawMessage) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 {
		return nil, false
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, false
		}
		trimmed = bytes.TrimSpace([]byte(inner))
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, true
}

// Text reads one version that is a plain JSON string rather than an object.
func Text(msg json.RawMessage) (string, bool) {
	var text string
	if err := json.Unmarshal(msg, &text); err != nil {
		return "", false
	}
	return text, true
}

// Head reads the newest version of a draft strictly: a missing draft, an
// unparsable one or an empty array yields false instead of [{}].
func Head(raw string) (map[string]any, bool) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return nil, false
	}
	switch trimmed[0] {
	case '[':
		var stack Stack
		if err := json.Unmarshal(trimmed, &stack); err != nil || len(stack) == 0 {
			return nil, false
		}
		return Object(stack[0])
	case '{':
		return Object(trimmed)
	default:
		return nil, false
	}
}

// MarshalRecord encodes a version object.
func MarshalRecord(record map[string]any) json.RawMessage {
	if record == nil {
		return cloneRaw(emptyRecord)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return cloneRaw(emptyRecord)
	}
	return data
}

// MarshalText encodes a version that is plain text.
func MarshalText(text string) json.RawMessage {
	data, _ := json.Marshal(text)
	return data
}

func cloneRaw(msg []byte) json.RawMessage {
	out := make(json.RawMessage, len(msg))
	copy(out, msg)
	return out
}
