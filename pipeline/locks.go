package pipeline

import (
	"strings"
	"sync"
)

// runLocks guarantees at most one in-flight run per sync target inside
// this process. The run store's ActiveForTarget check covers runs left
// behind by a previous process.
type runLocks struct {
	mu     sync.Mutex
	active map[string]bool
}

func newRunLocks() *runLocks {
	return &runLocks{active: map[string]bool{}}
}

func (l *runLocks) acquire(target string) bool {
	target = strings.TrimSpace(strings.ToLower(target))
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active[target] {
		return false
	}
	l.active[target] = true
	return true
}

func (l *runLocks) release(target string) {
	target = strings.TrimSpace(strings.ToLower(target))
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, target)
}
