package app

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"frameline/api/internal/assistant"
	"frameline/api/internal/auth"
	"frameline/api/internal/config"
	"frameline/api/internal/localstore"
	"frameline/api/internal/search"
	"frameline/api/internal/store"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	ListProjects(context.Context, store.ProjectFilter) ([]store.Project, error)
	GetProject(context.Context, string) (store.Project, error)
	InsertProject(context.Context, store.Project) error
	UpdateProjectData(context.Context, string, json.RawMessage) error
	RenameProject(context.Context, string, string) error
	SetProjectFolder(context.Context, string, string) error
	DeleteProject(context.Context, string) error
	ListFolders(context.Context, string) ([]store.Folder, error)
	GetFolder(context.Context, string) (store.Folder, error)
	InsertFolder(context.Context, store.Folder) error
	SetFolderType(context.Context, string, string) error
	DeleteFolder(context.Context, string) error
	Ping(ctx context.Context) error
}

type assistantClient interface {
	Configured() bool
	Send(context.Context, assistant.Request) (string, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	local     localstore.Store
	search    *search.Service
	assistant assistantClient
	guard     *assistant.Guard

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func New(cfg config.Config, dataStore *store.PostgresStore, local localstore.Store, searchService *search.Service, assistantClient *assistant.Client) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		local:     local,
		search:    searchService,
		assistant: assistantClient,
		guard:     assistant.NewGuard(),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Login issues a development token. The user id is derived from the name
// so the same name always sees the same projects.
func (s *Service) Login(_ context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}
	userID := "user_" + strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(userName))).String(), "-", "")

	token, claims, err := auth.IssueToken([]byte(s.cfg.JWTSecret), userID, userName, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    userID,
		UserName:  userName,
		JTI:       claims.JTI,
		ExpiresAt: claims.Exp,
	}, nil
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		JTI:       claims.JTI,
		ExpiresAt: claims.Exp,
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Search(session Session, text string, limit, offset int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(search.Query{Text: text, UserID: session.UserID, Limit: limit, Offset: offset})
}

// projectLock serialises every read-modify-write of one project's data.
// The standalone workspace uses the empty id.
func (s *Service) projectLock(projectID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[projectID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[projectID] = lock
	return lock
}
