package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"frameline/api/internal/localstore"
	"frameline/api/internal/workspace"
)

// LocalStateKey is where a workspace that is not bound to a project keeps
// its whole state.
const LocalStateKey = "workspace"

// Persister receives the full state after every change.
type Persister interface {
	Persist(ctx context.Context, state workspace.State) error
}

// ProjectWriter replaces a project's data blob and bumps updated_at.
type ProjectWriter interface {
	UpdateProjectData(ctx context.Context, projectID string, data json.RawMessage) error
}

// RemotePersister writes the state as Project.data, full-document replace.
type RemotePersister struct {
	ProjectID string
	Writer    ProjectWriter
}

func (p RemotePersister) Persist(ctx context.Context, state workspace.State) error {
	data, err := state.Marshal()
	if err != nil {
		return fmt.Errorf("marshal workspace: %w", err)
	}
	if err := p.Writer.UpdateProjectData(ctx, p.ProjectID, data); err != nil {
		return fmt.Errorf("save project %s: %w", p.ProjectID, err)
	}
	return nil
}

// LocalPersister writes the state to the local key/value store.
type LocalPersister struct {
	Store localstore.Store
}

func (p LocalPersister) Persist(ctx context.Context, state workspace.State) error {
	data, err := state.Marshal()
	if err != nil {
		return fmt.Errorf("marshal workspace: %w", err)
	}
	if err := p.Store.Set(ctx, LocalStateKey, data); err != nil {
		return fmt.Errorf("save local workspace: %w", err)
	}
	return nil
}

// SelectPersister binds exactly one persistence mode: remote when a
// project id is known, local otherwise.
func SelectPersister(projectID string, writer ProjectWriter, local localstore.Store) Persister {
	if projectID != "" && writer != nil {
		return RemotePersister{ProjectID: projectID, Writer: writer}
	}
	return LocalPersister{Store: local}
}

// LoadLocal restores the standalone workspace, or a default one.
func LoadLocal(ctx context.Context, store localstore.Store) (workspace.State, error) {
	data, err := store.Get(ctx, LocalStateKey)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return DefaultState(), nil
		}
		return workspace.State{}, err
	}
	return workspace.Parse(data)
}

// ClearLocal drops the standalone workspace so the next load starts from
// the default state.
func ClearLocal(ctx context.Context, store localstore.Store) error {
	if err := store.Delete(ctx, LocalStateKey); err != nil {
		return fmt.Errorf("clear local workspace: %w", err)
	}
	return nil
}
