package store

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

const (
	FolderDefault  = "default"
	FolderArchived = "archived"
)

// Project.Data is the workspace state, stored verbatim.
type Project struct {
	ID        string
	Name      string
	Data      json.RawMessage
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Folder struct {
	ID        string
	Name      string
	Type      string
	UserID    string
	CreatedAt time.Time
}

// ProjectFilter narrows ListProjects. FolderID "" lists everything,
// UncategorizedFolder lists projects without a folder.
type ProjectFilter struct {
	UserID   string
	FolderID string
}

const UncategorizedFolder = "uncategorized"
