package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"frameline/api/internal/assistant"
	"frameline/api/internal/doctype"
	"frameline/api/internal/editor"
	"frameline/api/internal/imports"
	"frameline/api/internal/reconcile"
	"frameline/api/internal/versionstack"
	"frameline/api/internal/workspace"
)

type WorkspaceView struct {
	ProjectID string                                     `json:"projectId,omitempty"`
	State     workspace.State                            `json:"state"`
	Imports   imports.Context                            `json:"imports"`
	Tools     map[workspace.Phase][]doctype.CatalogEntry `json:"tools"`

	// AssistantBusy is set while a request for the active tool is in flight.
	AssistantBusy bool `json:"assistantBusy"`
}

type DraftResult struct {
	Result    reconcile.Result `json:"result"`
	Workspace WorkspaceView    `json:"workspace"`
}

type VersionResult struct {
	ActiveIndex int              `json:"activeIndex"`
	Result      reconcile.Result `json:"result"`
	Workspace   WorkspaceView    `json:"workspace"`
}

type SeedResult struct {
	Seeded    bool          `json:"seeded"`
	Workspace WorkspaceView `json:"workspace"`
}

type ChatInput struct {
	Message string         `json:"message"`
	Mode    assistant.Mode `json:"mode"`
}

// ChatResult names the tool the reply was written to, which is the tool
// that was active when the message was sent.
type ChatResult struct {
	Reply     string            `json:"reply"`
	Phase     workspace.Phase   `json:"phase"`
	Tool      string            `json:"tool"`
	Result    *reconcile.Result `json:"result,omitempty"`
	Workspace WorkspaceView     `json:"workspace"`
}

// withWorkspace loads the state of a project, or of the standalone
// workspace when projectID is empty, and runs fn against a container
// bound to the matching persister. The project lock is held throughout.
func (s *Service) withWorkspace(ctx context.Context, session Session, projectID string, fn func(*editor.Container) error) (WorkspaceView, error) {
	return s.runWorkspace(ctx, session, projectID, false, fn)
}

// runWorkspace is withWorkspace with an optional recovery mode, in which
// unreadable state is replaced by the default instead of failing.
func (s *Service) runWorkspace(ctx context.Context, session Session, projectID string, recoverState bool, fn func(*editor.Container) error) (WorkspaceView, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	container, err := s.openWorkspace(ctx, session, projectID, recoverState)
	if err != nil {
		return WorkspaceView{}, err
	}
	fnErr := fn(container)
	state := container.Snapshot()
	view := WorkspaceView{
		ProjectID:     projectID,
		State:         state,
		Imports:       container.Imports(),
		Tools:         doctype.Catalog(),
		AssistantBusy: s.guard.Busy(assistant.Key(projectID, state.ActiveTool)),
	}
	return view, fnErr
}

func (s *Service) openWorkspace(ctx context.Context, session Session, projectID string, recoverState bool) (*editor.Container, error) {
	if projectID == "" {
		if s.local == nil {
			return nil, domainError(http.StatusServiceUnavailable, "LOCAL_STORE_UNAVAILABLE", "Standalone workspace is not configured", nil)
		}
		state, err := editor.LoadLocal(ctx, s.local)
		if err != nil {
			log.Printf("editor: load local workspace: %v", err)
			if !recoverState {
				return nil, corruptWorkspace()
			}
			if err := editor.ClearLocal(ctx, s.local); err != nil {
				return nil, err
			}
			state = editor.DefaultState()
		}
		return editor.New(state, editor.SelectPersister("", nil, s.local)), nil
	}

	project, err := s.ownedProject(ctx, session, projectID)
	if err != nil {
		return nil, err
	}
	state, err := workspace.Parse(project.Data)
	if err != nil {
		log.Printf("editor: project %s: %v", projectID, err)
		if !recoverState {
			return nil, corruptWorkspace()
		}
		state = editor.DefaultState()
	}
	return editor.New(state, editor.SelectPersister(projectID, s.store, s.local)), nil
}

func corruptWorkspace() *DomainError {
	return domainError(http.StatusConflict, "WORKSPACE_CORRUPT", "Workspace state is corrupt", map[string]any{"recoverable": true})
}

// GetWorkspace fails with WORKSPACE_CORRUPT when the active phase is
// missing so clients render the recovery placeholder.
func (s *Service) GetWorkspace(ctx context.Context, session Session, projectID string) (WorkspaceView, error) {
	return s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		_, err := c.ActivePhaseState()
		return err
	})
}

func (s *Service) SetPhase(ctx context.Context, session Session, projectID string, phase workspace.Phase) (WorkspaceView, error) {
	return s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		return c.SetPhase(ctx, phase)
	})
}

func (s *Service) SetTool(ctx context.Context, session Session, projectID, tool string) (WorkspaceView, error) {
	return s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		return c.SetTool(ctx, tool)
	})
}

func (s *Service) LockPhase(ctx context.Context, session Session, projectID string) (WorkspaceView, error) {
	return s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		return c.LockPhase(ctx)
	})
}

func (s *Service) UnlockPhase(ctx context.Context, session Session, projectID string) (WorkspaceView, error) {
	return s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		return c.UnlockPhase(ctx)
	})
}

// SaveDraft writes into the active tool, or into phase/tool when both are
// given.
func (s *Service) SaveDraft(ctx context.Context, session Session, projectID string, phase workspace.Phase, tool, incoming string) (DraftResult, error) {
	if (phase == "") != (tool == "") {
		return DraftResult{}, validationError("phase and tool must be given together")
	}
	var result reconcile.Result
	view, err := s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		var err error
		if tool == "" {
			result, err = c.SaveDraftForActiveTool(ctx, incoming)
		} else {
			result, err = c.SaveDraft(ctx, phase, tool, incoming)
		}
		return err
	})
	return DraftResult{Result: result, Workspace: view}, err
}

func (s *Service) ApplyVersionAction(ctx context.Context, session Session, projectID string, action versionstack.Action) (VersionResult, error) {
	var out editor.VersionView
	view, err := s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		var err error
		out, err = c.ApplyVersionAction(ctx, action)
		return err
	})
	return VersionResult{ActiveIndex: out.ActiveIndex, Result: out.Result, Workspace: view}, err
}

// ResetWorkspace also recovers a workspace whose stored state cannot be
// parsed, which is the way out of WORKSPACE_CORRUPT.
func (s *Service) ResetWorkspace(ctx context.Context, session Session, projectID string) (WorkspaceView, error) {
	return s.runWorkspace(ctx, session, projectID, true, func(c *editor.Container) error {
		return c.ResetAll(ctx)
	})
}

// SetIdentity also renames the dashboard entry when the project name
// changes.
func (s *Service) SetIdentity(ctx context.Context, session Session, projectID string, identity workspace.Identity) (WorkspaceView, error) {
	identity.ProjectName = strings.TrimSpace(identity.ProjectName)
	view, err := s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		previous := c.Snapshot().ProjectName
		if err := c.SetIdentity(ctx, identity); err != nil {
			return err
		}
		if projectID == "" || identity.ProjectName == "" || identity.ProjectName == previous {
			return nil
		}
		return s.store.RenameProject(ctx, projectID, identity.ProjectName)
	})
	if err == nil && projectID != "" {
		s.reindex(ctx, projectID)
	}
	return view, err
}

func (s *Service) SeedBudgetActuals(ctx context.Context, session Session, projectID string) (SeedResult, error) {
	var seeded bool
	view, err := s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		var err error
		seeded, err = c.SeedBudgetActuals(ctx)
		return err
	})
	return SeedResult{Seeded: seeded, Workspace: view}, err
}

// Chat sends the message with the active tool's transcript to the
// assistant. The (phase, tool) pair is captured before the call and the
// reply is written there, whatever the workspace shows by then. In draft
// mode the reply is also reconciled into that tool's draft.
func (s *Service) Chat(ctx context.Context, session Session, projectID string, input ChatInput) (ChatResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return ChatResult{}, validationError("message is required")
	}
	if input.Mode == "" {
		input.Mode = assistant.ModeChat
	}
	if !input.Mode.Valid() {
		return ChatResult{}, validationError("mode must be chat or draft")
	}
	if s.assistant == nil || !s.assistant.Configured() {
		return ChatResult{}, assistant.ErrNotConfigured
	}

	var req assistant.Request
	_, err := s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		ps, err := c.ActivePhaseState()
		if err != nil {
			return err
		}
		state := c.Snapshot()
		req = assistant.Request{
			Phase:        state.ActivePhase,
			ToolType:     state.ActiveTool,
			LockedPhases: state.LockedPhases(),
			PhaseData:    ps.Drafts,
			Mode:         input.Mode,
		}
		return nil
	})
	if err != nil {
		return ChatResult{}, err
	}

	release, err := s.guard.Acquire(assistant.Key(projectID, req.ToolType))
	if err != nil {
		return ChatResult{}, err
	}
	defer release()

	userMessage := workspace.ChatMessage{Role: "user", Content: message}
	_, err = s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		if err := c.AppendChat(ctx, req.ToolType, userMessage); err != nil {
			return err
		}
		req.Messages = c.Snapshot().Chat[req.ToolType]
		return nil
	})
	if err != nil {
		return ChatResult{}, err
	}

	reply, err := s.assistant.Send(ctx, req)
	if err != nil {
		log.Printf("assistant: %s/%s: %v", req.Phase, req.ToolType, err)
		return ChatResult{}, domainError(http.StatusBadGateway, "ASSISTANT_FAILED", "Assistant request failed", nil)
	}

	out := ChatResult{Reply: reply, Phase: req.Phase, Tool: req.ToolType}
	view, err := s.withWorkspace(ctx, session, projectID, func(c *editor.Container) error {
		if err := c.AppendChat(ctx, req.ToolType, workspace.ChatMessage{Role: "assistant", Content: reply}); err != nil {
			return err
		}
		if input.Mode != assistant.ModeDraft {
			return nil
		}
		result, err := c.SaveDraft(ctx, req.Phase, req.ToolType, reply)
		out.Result = &result
		if errors.Is(err, editor.ErrPhaseLocked) {
			return nil
		}
		return err
	})
	out.Workspace = view
	return out, err
}
