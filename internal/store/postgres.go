package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const projectColumns = `id, name, data, user_id, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var p Project
	var data []byte
	if err := row.Scan(&p.ID, &p.Name, &data, &p.UserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, err
	}
	p.Data = json.RawMessage(data)
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE user_id = $1`
	args := []any{filter.UserID}
	switch filter.FolderID {
	case "":
	case UncategorizedFolder:
		query += ` AND coalesce(data->>'folderId', '') = ''`
	default:
		query += ` AND data->>'folderId' = $2`
		args = append(args, filter.FolderID)
	}
	query += ` ORDER BY updated_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, p Project) error {
	data := p.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, data, user_id)
		VALUES ($1, $2, $3::jsonb, $4)
	`, p.ID, p.Name, string(data), p.UserID)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// UpdateProjectData replaces the whole data blob.
func (s *PostgresStore) UpdateProjectData(ctx context.Context, projectID string, data json.RawMessage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET data = $2::jsonb, updated_at = NOW()
		WHERE id = $1
	`, projectID, string(data))
	if err != nil {
		return fmt.Errorf("update project data: %w", err)
	}
	return requireRow(res)
}

// RenameProject keeps data.projectName in step with the name column.
func (s *PostgresStore) RenameProject(ctx context.Context, projectID, name string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name = $2, data = jsonb_set(data, '{projectName}', to_jsonb($2::text)), updated_at = NOW()
		WHERE id = $1
	`, projectID, name)
	if err != nil {
		return fmt.Errorf("rename project: %w", err)
	}
	return requireRow(res)
}

// SetProjectFolder writes data.folderId; an empty id removes the key.
func (s *PostgresStore) SetProjectFolder(ctx context.Context, projectID, folderID string) error {
	var res sql.Result
	var err error
	if folderID == "" {
		res, err = s.db.ExecContext(ctx, `
			UPDATE projects SET data = data - 'folderId', updated_at = NOW()
			WHERE id = $1
		`, projectID)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE projects SET data = jsonb_set(data, '{folderId}', to_jsonb($2::text)), updated_at = NOW()
			WHERE id = $1
		`, projectID, folderID)
	}
	if err != nil {
		return fmt.Errorf("move project: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ListFolders(ctx context.Context, userID string) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, user_id, created_at
		FROM folders
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := make([]Folder, 0)
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.Type, &f.UserID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

func (s *PostgresStore) GetFolder(ctx context.Context, folderID string) (Folder, error) {
	var f Folder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, user_id, created_at FROM folders WHERE id = $1
	`, folderID).Scan(&f.ID, &f.Name, &f.Type, &f.UserID, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Folder{}, ErrNotFound
	}
	if err != nil {
		return Folder{}, fmt.Errorf("get folder: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) InsertFolder(ctx context.Context, f Folder) error {
	if f.Type == "" {
		f.Type = FolderDefault
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (id, name, type, user_id)
		VALUES ($1, $2, $3, $4)
	`, f.ID, f.Name, f.Type, f.UserID)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetFolderType(ctx context.Context, folderID, folderType string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE folders SET type = $2 WHERE id = $1`, folderID, folderType)
	if err != nil {
		return fmt.Errorf("set folder type: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteFolder(ctx context.Context, folderID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, folderID)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
