package versionstack

import (
	"errors"
	"testing"
)

func TestNewPrependsForStackTools(t *testing.T) {
	stack := Decode(`[{"v":1},{"v":0}]`)
	out, active := New(stack, Prepend)
	if active != 0 {
		t.Fatalf("active = %d, want 0", active)
	}
	if got := Encode(out); got != `[{},{"v":1},{"v":0}]` {
		t.Fatalf("stack = %s", got)
	}
	if Encode(stack) != `[{"v":1},{"v":0}]` {
		t.Fatal("input stack was modified")
	}
}

func TestNewAppendsForCollectionTools(t *testing.T) {
	stack := Decode(`[{"day":1},{"day":2}]`)
	out, active := New(stack, Append)
	if active != 2 {
		t.Fatalf("active = %d, want 2", active)
	}
	if got := Encode(out); got != `[{"day":1},{"day":2},{}]` {
		t.Fatalf("stack = %s", got)
	}
}

func TestApplyActions(t *testing.T) {
	base := `[{"n":"a"},{"n":"b"},{"n":"c"}]`
	tests := []struct {
		name       string
		discipline Discipline
		action     Action
		want       string
		active     int
	}{
		{"duplicate stack", Prepend, Action{Type: ActionDuplicate, Index: 2}, `[{"n":"c"},{"n":"a"},{"n":"b"},{"n":"c"}]`, 0},
		{"duplicate collection", Append, Action{Type: ActionDuplicate, Index: 0}, `[{"n":"a"},{"n":"b"},{"n":"c"},{"n":"a"}]`, 3},
		{"clear", Prepend, Action{Type: ActionClear, Index: 1}, `[{"n":"a"},{},{"n":"c"}]`, 1},
		{"delete middle", Prepend, Action{Type: ActionDelete, Index: 1}, `[{"n":"a"},{"n":"c"}]`, 1},
		{"delete last", Prepend, Action{Type: ActionDelete, Index: 2}, `[{"n":"a"},{"n":"b"}]`, 1},
		{"move down", Prepend, Action{Type: ActionMove, Index: 0, To: 2}, `[{"n":"b"},{"n":"c"},{"n":"a"}]`, 2},
		{"move up", Prepend, Action{Type: ActionMove, Index: 2, To: 0}, `[{"n":"c"},{"n":"a"},{"n":"b"}]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, active, err := Apply(Decode(base), tt.discipline, tt.action)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := Encode(out); got != tt.want {
				t.Errorf("stack = %s, want %s", got, tt.want)
			}
			if active != tt.active {
				t.Errorf("active = %d, want %d", active, tt.active)
			}
		})
	}
}

func TestDeleteOnlyVersionLeavesEmptyRecord(t *testing.T) {
	out, active, err := Delete(Decode(`[{"x":1}]`), 0)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if Encode(out) != "[{}]" || active != 0 {
		t.Fatalf("stack = %s active = %d", Encode(out), active)
	}
}

func TestApplyRejectsBadInput(t *testing.T) {
	if _, _, err := Apply(Empty(), Prepend, Action{Type: ActionClear, Index: 3}); !errors.Is(err, ErrBadAction) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	if _, _, err := Apply(Empty(), Prepend, Action{Type: "rename"}); !errors.Is(err, ErrBadAction) {
		t.Fatalf("expected unknown action error, got %v", err)
	}
}
