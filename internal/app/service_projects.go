package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"frameline/api/internal/editor"
	"frameline/api/internal/search"
	"frameline/api/internal/store"
	"frameline/api/internal/util"
	"frameline/api/internal/workspace"
)

type ProjectSummary struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	ClientName string            `json:"clientName"`
	Producer   string            `json:"producer"`
	Persona    workspace.Persona `json:"persona"`
	FolderID   string            `json:"folderId,omitempty"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type CreateProjectInput struct {
	Name       string `json:"name"`
	ClientName string `json:"clientName"`
	Persona    string `json:"persona"`
	Producer   string `json:"producer"`
	FolderID   string `json:"folderId"`
}

type FolderView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

type BatchStatus string

const (
	BatchComplete BatchStatus = "complete"
	BatchPartial  BatchStatus = "partial"
	BatchFailed   BatchStatus = "failed"
)

type ItemFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult reports a cascade that touched several rows. Nothing is
// rolled back or retried; every failed item is listed.
type BatchResult struct {
	Status    BatchStatus   `json:"status"`
	Succeeded []string      `json:"succeeded"`
	Failed    []ItemFailure `json:"failed"`
}

func (b *BatchResult) finish() {
	switch {
	case len(b.Failed) == 0:
		b.Status = BatchComplete
	case len(b.Succeeded) == 0:
		b.Status = BatchFailed
	default:
		b.Status = BatchPartial
	}
}

const (
	FolderDeleteReassign = "reassign"
	FolderDeleteAll      = "delete"
)

func summarize(p store.Project) ProjectSummary {
	summary := ProjectSummary{ID: p.ID, Name: p.Name, UpdatedAt: p.UpdatedAt}
	state, err := workspace.Parse(p.Data)
	if err != nil {
		return summary
	}
	summary.ClientName = state.ClientName
	summary.Producer = state.Producer
	summary.Persona = state.Persona
	summary.FolderID = state.FolderID
	return summary
}

func searchRecord(p store.Project) search.ProjectRecord {
	summary := summarize(p)
	return search.ProjectRecord{
		ID:         p.ID,
		Name:       p.Name,
		ClientName: summary.ClientName,
		Producer:   summary.Producer,
		Persona:    string(summary.Persona),
		FolderID:   summary.FolderID,
		UserID:     p.UserID,
	}
}

func (s *Service) reindex(ctx context.Context, projectID string) {
	if s.search == nil {
		return
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		log.Printf("search: reload project %s: %v", projectID, err)
		return
	}
	s.search.IndexProject(searchRecord(project))
}

// ownedProject hides projects of other users behind NOT_FOUND.
func (s *Service) ownedProject(ctx context.Context, session Session, projectID string) (store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}
	if project.UserID != session.UserID {
		return store.Project{}, notFound()
	}
	return project, nil
}

func (s *Service) ownedFolder(ctx context.Context, session Session, folderID string) (store.Folder, error) {
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return store.Folder{}, err
	}
	if folder.UserID != session.UserID {
		return store.Folder{}, notFound()
	}
	return folder, nil
}

// ListProjects filters by folder: "" for all, "uncategorized" for projects
// without a folder, otherwise a folder id.
func (s *Service) ListProjects(ctx context.Context, session Session, folderID string) ([]ProjectSummary, error) {
	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{UserID: session.UserID, FolderID: folderID})
	if err != nil {
		return nil, err
	}
	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, summarize(p))
	}
	return out, nil
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (ProjectSummary, error) {
	project, err := s.ownedProject(ctx, session, projectID)
	if err != nil {
		return ProjectSummary{}, err
	}
	return summarize(project), nil
}

func (s *Service) CreateProject(ctx context.Context, session Session, input CreateProjectInput) (ProjectSummary, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ProjectSummary{}, validationError("name is required")
	}
	folderID := strings.TrimSpace(input.FolderID)
	if folderID == store.UncategorizedFolder {
		folderID = ""
	}
	if folderID != "" {
		if _, err := s.ownedFolder(ctx, session, folderID); err != nil {
			return ProjectSummary{}, err
		}
	}

	state := editor.DefaultState()
	state.ProjectName = name
	state.ClientName = strings.TrimSpace(input.ClientName)
	state.Producer = strings.TrimSpace(input.Producer)
	state.Persona = workspace.NormalizePersona(input.Persona)
	state.FolderID = folderID
	data, err := state.Marshal()
	if err != nil {
		return ProjectSummary{}, fmt.Errorf("marshal workspace: %w", err)
	}

	project := store.Project{ID: util.NewID("proj"), Name: name, Data: data, UserID: session.UserID}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return ProjectSummary{}, err
	}
	if s.search != nil {
		s.search.IndexProject(searchRecord(project))
	}
	project.UpdatedAt = time.Now()
	return summarize(project), nil
}

func (s *Service) RenameProject(ctx context.Context, session Session, projectID, name string) (ProjectSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ProjectSummary{}, validationError("name is required")
	}
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.ownedProject(ctx, session, projectID); err != nil {
		return ProjectSummary{}, err
	}
	if err := s.store.RenameProject(ctx, projectID, name); err != nil {
		return ProjectSummary{}, err
	}
	s.reindex(ctx, projectID)
	return s.GetProject(ctx, session, projectID)
}

// MoveProject sets data.folderId. "" and "uncategorized" remove it.
func (s *Service) MoveProject(ctx context.Context, session Session, projectID, folderID string) (ProjectSummary, error) {
	folderID = strings.TrimSpace(folderID)
	if folderID == store.UncategorizedFolder {
		folderID = ""
	}
	if folderID != "" {
		if _, err := s.ownedFolder(ctx, session, folderID); err != nil {
			return ProjectSummary{}, err
		}
	}

	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.ownedProject(ctx, session, projectID); err != nil {
		return ProjectSummary{}, err
	}
	if err := s.store.SetProjectFolder(ctx, projectID, folderID); err != nil {
		return ProjectSummary{}, err
	}
	s.reindex(ctx, projectID)
	return s.GetProject(ctx, session, projectID)
}

func (s *Service) DeleteProject(ctx context.Context, session Session, projectID string) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.ownedProject(ctx, session, projectID); err != nil {
		return err
	}
	return s.deleteProject(ctx, projectID)
}

func (s *Service) deleteProject(ctx context.Context, projectID string) error {
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteProject(projectID)
	}
	return nil
}

func (s *Service) ListFolders(ctx context.Context, session Session) ([]FolderView, error) {
	folders, err := s.store.ListFolders(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]FolderView, 0, len(folders))
	for _, f := range folders {
		out = append(out, folderView(f))
	}
	return out, nil
}

func folderView(f store.Folder) FolderView {
	return FolderView{ID: f.ID, Name: f.Name, Type: f.Type, CreatedAt: f.CreatedAt}
}

func (s *Service) CreateFolder(ctx context.Context, session Session, name string) (FolderView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return FolderView{}, validationError("name is required")
	}
	folder := store.Folder{ID: util.NewID("fld"), Name: name, Type: store.FolderDefault, UserID: session.UserID}
	if err := s.store.InsertFolder(ctx, folder); err != nil {
		return FolderView{}, err
	}
	folder.CreatedAt = time.Now()
	return folderView(folder), nil
}

// ArchiveFolder and RestoreFolder flip the folder type only; the projects
// inside keep their folderId.
func (s *Service) ArchiveFolder(ctx context.Context, session Session, folderID string) (FolderView, error) {
	return s.setFolderType(ctx, session, folderID, store.FolderArchived)
}

func (s *Service) RestoreFolder(ctx context.Context, session Session, folderID string) (FolderView, error) {
	return s.setFolderType(ctx, session, folderID, store.FolderDefault)
}

func (s *Service) setFolderType(ctx context.Context, session Session, folderID, folderType string) (FolderView, error) {
	folder, err := s.ownedFolder(ctx, session, folderID)
	if err != nil {
		return FolderView{}, err
	}
	if folder.Type != folderType {
		if err := s.store.SetFolderType(ctx, folderID, folderType); err != nil {
			return FolderView{}, err
		}
		folder.Type = folderType
	}
	return folderView(folder), nil
}

// DeleteFolder reassigns the folder's projects to uncategorized or deletes
// them, one request per project. The folder row goes only when every
// project succeeded.
func (s *Service) DeleteFolder(ctx context.Context, session Session, folderID, mode string) (BatchResult, error) {
	if mode == "" {
		mode = FolderDeleteReassign
	}
	if mode != FolderDeleteReassign && mode != FolderDeleteAll {
		return BatchResult{}, validationError("mode must be reassign or delete")
	}
	if _, err := s.ownedFolder(ctx, session, folderID); err != nil {
		return BatchResult{}, err
	}
	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{UserID: session.UserID, FolderID: folderID})
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Succeeded: []string{}, Failed: []ItemFailure{}}
	for _, project := range projects {
		if err := s.cascadeProject(ctx, project.ID, mode); err != nil {
			log.Printf("app: folder %s: %s project %s: %v", folderID, mode, project.ID, err)
			result.Failed = append(result.Failed, ItemFailure{ID: project.ID, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, project.ID)
	}

	if len(result.Failed) == 0 {
		if err := s.store.DeleteFolder(ctx, folderID); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("app: delete folder %s: %v", folderID, err)
			result.Failed = append(result.Failed, ItemFailure{ID: folderID, Error: err.Error()})
		}
	}
	result.finish()
	return result, nil
}

func (s *Service) cascadeProject(ctx context.Context, projectID, mode string) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	if mode == FolderDeleteAll {
		return s.deleteProject(ctx, projectID)
	}
	if err := s.store.SetProjectFolder(ctx, projectID, ""); err != nil {
		return err
	}
	s.reindex(ctx, projectID)
	return nil
}
