package search

// Result is a single project hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ClientName string `json:"clientName"`
	Producer   string `json:"producer"`
	FolderID   string `json:"folderId"`
	Snippet    string `json:"snippet"`
}

// Query describes a search request. Results are always scoped to UserID.
type Query struct {
	Text   string
	UserID string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a project search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ProjectRecord is the data we index for a project.
type ProjectRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ClientName string `json:"clientName"`
	Producer   string `json:"producer"`
	Persona    string `json:"persona"`
	FolderID   string `json:"folderId"`
	UserID     string `json:"userId"`
}

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > 100 {
		return 20
	}
	return q.Limit
}
