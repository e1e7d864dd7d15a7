package versionstack

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBadAction = errors.New("bad version action")

// Discipline decides where the editor's "New" and "Duplicate" put the new
// version: stack tools prepend (newest first), collection tools append
// (chronological, e.g. daily call sheets).
type Discipline int

const (
	Prepend Discipline = iota
	Append
)

type ActionType string

const (
	ActionNew       ActionType = "new"
	ActionDuplicate ActionType = "duplicate"
	ActionClear     ActionType = "clear"
	ActionDelete    ActionType = "delete"
	ActionMove      ActionType = "move"
)

// Action is one structural edit requested by the editor UI.
type Action struct {
	Type  ActionType `json:"type"`
	Index int        `json:"index"`
	To    int        `json:"to"`
}

// Apply runs a structural edit and returns the new stack with the index
// that should become active. The input stack is not modified.
func Apply(stack Stack, discipline Discipline, action Action) (Stack, int, error) {
	switch action.Type {
	case ActionNew:
		out, active := New(stack, discipline)
		return out, active, nil
	case ActionDuplicate:
		return Duplicate(stack, discipline, action.Index)
	case ActionClear:
		return Clear(stack, action.Index)
	case ActionDelete:
		return Delete(stack, action.Index)
	case ActionMove:
		return Move(stack, action.Index, action.To)
	default:
		return nil, 0, fmt.Errorf("%w: unknown type %q", ErrBadAction, action.Type)
	}
}

func New(stack Stack, discipline Discipline) (Stack, int) {
	return insert(stack, discipline, cloneRaw(emptyRecord))
}

func Duplicate(stack Stack, discipline Discipline, index int) (Stack, int, error) {
	if err := checkIndex(stack, index); err != nil {
		return nil, 0, err
	}
	out, active := insert(stack, discipline, cloneRaw(stack[index]))
	return out, active, nil
}

// Clear empties one version in place.
func Clear(stack Stack, index int) (Stack, int, error) {
	if err := checkIndex(stack, index); err != nil {
		return nil, 0, err
	}
	out := copyStack(stack)
	out[index] = cloneRaw(emptyRecord)
	return out, index, nil
}

// Delete removes one version. Removing the last one leaves [{}].
func Delete(stack Stack, index int) (Stack, int, error) {
	if err := checkIndex(stack, index); err != nil {
		return nil, 0, err
	}
	out := make(Stack, 0, len(stack)-1)
	out = append(out, stack[:index]...)
	out = append(out, stack[index+1:]...)
	if len(out) == 0 {
		return Empty(), 0, nil
	}
	active := index
	if active >= len(out) {
		active = len(out) - 1
	}
	return out, active, nil
}

func Move(stack Stack, from, to int) (Stack, int, error) {
	if err := checkIndex(stack, from); err != nil {
		return nil, 0, err
	}
	if err := checkIndex(stack, to); err != nil {
		return nil, 0, err
	}
	out := copyStack(stack)
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append(Stack{item}, out[to:]...)...)
	return out, to, nil
}

func insert(stack Stack, discipline Discipline, item json.RawMessage) (Stack, int) {
	if discipline == Append {
		out := append(copyStack(stack), item)
		return out, len(out) - 1
	}
	out := make(Stack, 0, len(stack)+1)
	out = append(out, item)
	out = append(out, stack...)
	return out, 0
}

func checkIndex(stack Stack, index int) error {
	if index < 0 || index >= len(stack) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrBadAction, index, len(stack))
	}
	return nil
}

func copyStack(stack Stack) Stack {
	out := make(Stack, len(stack))
	copy(out, stack)
	return out
}
