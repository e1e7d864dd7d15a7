package assistant

import (
	"errors"
	"sync"
)

var ErrBusy = errors.New("assistant request already in flight")

// Guard allows one in-flight request per key. A second submit while the
// first is pending fails fast instead of queueing.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// Acquire marks key busy. The returned release must be called exactly once.
func (g *Guard) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[key]; busy {
		return nil, ErrBusy
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, nil
}

func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[key]
	return busy
}

// Key builds the guard key for a project's tool. Standalone workspaces use
// an empty project id.
func Key(projectID, tool string) string {
	return projectID + "/" + tool
}
