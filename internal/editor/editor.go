// Package editor owns a workspace's state while it is being edited. Every
// operation is one atomic transition: it runs under the container lock,
// goes through the reconciler for draft changes and persists the result.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"frameline/api/internal/doctype"
	"frameline/api/internal/imports"
	"frameline/api/internal/reconcile"
	"frameline/api/internal/versionstack"
	"frameline/api/internal/workspace"
)

var (
	ErrPhaseLocked  = errors.New("phase is locked")
	ErrCorruptState = errors.New("workspace state is corrupt: active phase missing")
	ErrUnknownPhase = errors.New("unknown phase")
	ErrUnknownTool  = errors.New("unknown tool")
)

// PersistError means the change was applied in memory but saving failed.
// The in-memory state is kept.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return "persist workspace: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error { return e.Err }

// DefaultState is the reset shape: four empty phases, empty chat and
// identity, development phase with its first tool selected.
func DefaultState() workspace.State {
	return workspace.Default(doctype.FirstTool(workspace.PhaseDevelopment))
}

type Container struct {
	mu        sync.Mutex
	state     workspace.State
	persister Persister
}

func New(state workspace.State, persister Persister) *Container {
	return &Container{state: state.Clone(), persister: persister}
}

func (c *Container) Snapshot() workspace.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// ActivePhaseState fails with ErrCorruptState when the active phase is not
// in the phases map. The state is not repaired.
func (c *Container) ActivePhaseState() (workspace.PhaseState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ps, err := c.activePhaseLocked()
	if err != nil {
		return workspace.PhaseState{}, err
	}
	return ps.Clone(), nil
}

func (c *Container) activePhaseLocked() (workspace.PhaseState, error) {
	ps, ok := c.state.Phases[c.state.ActivePhase]
	if !ok {
		return workspace.PhaseState{}, ErrCorruptState
	}
	return ps, nil
}

// Imports resolves the cross-document context for the current state.
func (c *Container) Imports() imports.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return imports.Resolve(c.state.Phases)
}

// SetPhase switches phase and selects that phase's first tool.
func (c *Container) SetPhase(ctx context.Context, phase workspace.Phase) error {
	if !phase.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
	return c.update(ctx, func(state *workspace.State) (bool, error) {
		state.ActivePhase = phase
		state.ActiveTool = doctype.FirstTool(phase)
		return true, nil
	})
}

// SetTool switches the active tool. Membership in the active phase is the
// caller's concern; only unknown keys are rejected.
func (c *Container) SetTool(ctx context.Context, tool string) error {
	if _, ok := doctype.Lookup(tool); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	return c.update(ctx, func(state *workspace.State) (bool, error) {
		state.ActiveTool = tool
		return true, nil
	})
}

func (c *Container) LockPhase(ctx context.Context) error {
	return c.setLocked(ctx, true)
}

func (c *Container) UnlockPhase(ctx context.Context) error {
	return c.setLocked(ctx, false)
}

func (c *Container) setLocked(ctx context.Context, locked bool) error {
	return c.update(ctx, func(state *workspace.State) (bool, error) {
		ps, ok := state.Phases[state.ActivePhase]
		if !ok {
			return false, ErrCorruptState
		}
		if ps.Locked == locked {
			return false, nil
		}
		ps = ps.Clone()
		ps.Locked = locked
		state.Phases[state.ActivePhase] = ps
		return true, nil
	})
}

// SaveDraftForActiveTool reconciles incoming into the active tool's draft.
func (c *Container) SaveDraftForActiveTool(ctx context.Context, incoming string) (reconcile.Result, error) {
	var result reconcile.Result
	err := c.update(ctx, func(state *workspace.State) (bool, error) {
		var err error
		result, err = reconcileInto(state, state.ActivePhase, state.ActiveTool, incoming)
		return result.Changed(), err
	})
	return result, err
}

// SaveDraft reconciles into an explicit (phase, tool) pair. Used for
// assistant replies so a reply lands where its request was made, even if
// the user navigated away meanwhile.
func (c *Container) SaveDraft(ctx context.Context, phase workspace.Phase, tool, incoming string) (reconcile.Result, error) {
	var result reconcile.Result
	err := c.update(ctx, func(state *workspace.State) (bool, error) {
		var err error
		result, err = reconcileInto(state, phase, tool, incoming)
		return result.Changed(), err
	})
	return result, err
}

func reconcileInto(state *workspace.State, phase workspace.Phase, tool, incoming string) (reconcile.Result, error) {
	ps, ok := state.Phases[phase]
	if !ok {
		if phase == state.ActivePhase {
			return reconcile.Result{}, ErrCorruptState
		}
		return reconcile.Result{}, fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
	if ps.Locked {
		return reconcile.Result{Outcome: reconcile.OutcomeLocked}, ErrPhaseLocked
	}
	next, result := reconcile.Reconcile(ps, tool, incoming)
	for _, warning := range result.Warnings {
		log.Printf("editor: %s/%s: %s", phase, tool, warning)
	}
	state.Phases[phase] = next
	return result, nil
}

// VersionView is the active tool's stack after a structural edit.
type VersionView struct {
	Versions    versionstack.Stack `json:"versions"`
	ActiveIndex int                `json:"activeIndex"`
	Result      reconcile.Result   `json:"result"`
}

// ApplyVersionAction performs New/Duplicate/Clear/Delete/Move on the
// active tool's stack and commits it as an authoritative replacement.
func (c *Container) ApplyVersionAction(ctx context.Context, action versionstack.Action) (VersionView, error) {
	var view VersionView
	err := c.update(ctx, func(state *workspace.State) (bool, error) {
		ps, ok := state.Phases[state.ActivePhase]
		if !ok {
			return false, ErrCorruptState
		}
		if ps.Locked {
			return false, ErrPhaseLocked
		}
		tool := state.ActiveTool
		stack := versionstack.Decode(ps.Drafts[tool])
		next, active, err := versionstack.Apply(stack, doctype.KindOf(tool).Discipline(), action)
		if err != nil {
			return false, err
		}
		result, err := reconcileInto(state, state.ActivePhase, tool, versionstack.Encode(next))
		if err != nil {
			return false, err
		}
		view = VersionView{Versions: next, ActiveIndex: active, Result: result}
		return true, nil
	})
	return view, err
}

// ResetAll discards the state and reinitialises it. Identity fields are
// cleared too; the project binding (folder) is kept.
func (c *Container) ResetAll(ctx context.Context) error {
	return c.commit(ctx, false, func(state *workspace.State) (bool, error) {
		folderID := state.FolderID
		*state = DefaultState()
		state.FolderID = folderID
		return true, nil
	})
}

// SetIdentity updates the project-level identity fields.
func (c *Container) SetIdentity(ctx context.Context, identity workspace.Identity) error {
	return c.update(ctx, func(state *workspace.State) (bool, error) {
		state.ClientName = identity.ClientName
		state.Persona = workspace.NormalizePersona(string(identity.Persona))
		state.ProjectName = identity.ProjectName
		state.Producer = identity.Producer
		return true, nil
	})
}

// AppendChat adds messages to one tool's transcript.
func (c *Container) AppendChat(ctx context.Context, tool string, messages ...workspace.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return c.update(ctx, func(state *workspace.State) (bool, error) {
		if state.Chat == nil {
			state.Chat = map[string][]workspace.ChatMessage{}
		}
		state.Chat[tool] = append(append([]workspace.ChatMessage(nil), state.Chat[tool]...), messages...)
		return true, nil
	})
}

func (c *Container) update(ctx context.Context, fn func(*workspace.State) (bool, error)) error {
	return c.commit(ctx, true, fn)
}

// commit runs fn against a working copy under the lock. The copy replaces
// the state only when fn succeeds and reports a change; the change is then
// persisted. A persistence failure keeps the new state.
func (c *Container) commit(ctx context.Context, requireActive bool, fn func(*workspace.State) (bool, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if requireActive {
		if _, err := c.activePhaseLocked(); err != nil {
			return err
		}
	}

	working := c.state.Clone()
	changed, err := fn(&working)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	c.state = working

	if c.persister == nil {
		return nil
	}
	if err := c.persister.Persist(ctx, c.state.Clone()); err != nil {
		log.Printf("editor: persist failed: %v", err)
		return &PersistError{Err: err}
	}
	return nil
}
