package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches the projects table directly. It matches the generated
// tsvector column and falls back to ILIKE for partial words.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy is always true: without Postgres the API is down anyway.
func (p *PgFTS) Healthy() bool {
	return true
}

const pgWhere = `
	user_id = $1 AND (
		fts @@ plainto_tsquery('simple', $2)
		OR name ILIKE $3
		OR coalesce(data->>'clientName', '') ILIKE $3
		OR coalesce(data->>'producer', '') ILIKE $3
	)`

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, 0, nil
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	args := []any{q.UserID, text, "%" + escapeLike(text) + "%"}
	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM projects WHERE`+pgWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name,
			coalesce(data->>'clientName', ''),
			coalesce(data->>'producer', ''),
			coalesce(data->>'folderId', ''),
			ts_headline('simple', name || ' ' || coalesce(data->>'clientName', ''), plainto_tsquery('simple', $2), 'MaxFragments=1,MaxWords=20')
		FROM projects
		WHERE %s
		ORDER BY ts_rank(fts, plainto_tsquery('simple', $2)) DESC, updated_at DESC
		LIMIT %d OFFSET %d`, pgWhere, q.limit(), offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.ClientName, &r.Producer, &r.FolderID, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every project for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProjectRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name,
			coalesce(data->>'clientName', ''),
			coalesce(data->>'producer', ''),
			coalesce(data->>'persona', ''),
			coalesce(data->>'folderId', ''),
			user_id
		FROM projects
	`)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	defer rows.Close()

	records := make([]ProjectRecord, 0)
	for rows.Next() {
		var r ProjectRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.ClientName, &r.Producer, &r.Persona, &r.FolderID, &r.UserID); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return records, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
