package mutations

import (
	"sync"

	"Quill/internal/core/invalidation"
)

// inflightGuard serializes mutations per operation+target: while one is
// awaiting the API, a second identical submission (e.g. a double-click) is
// rejected instead of silently duplicated against the API. Unrelated
// targets proceed in parallel; there is no global lock.
type inflightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{active: make(map[string]struct{})}
}

func guardKey(op invalidation.Operation, target string) string {
	return string(op) + ":" + target
}

// begin claims the operation+target slot, or returns ErrMutationInFlight
// if already claimed.
func (g *inflightGuard) begin(op invalidation.Operation, target string) error {
	key := guardKey(op, target)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[key]; busy {
		return ErrMutationInFlight
	}
	g.active[key] = struct{}{}
	return nil
}

// end releases the slot claimed by begin.
func (g *inflightGuard) end(op invalidation.Operation, target string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, guardKey(op, target))
}

// pending reports whether a mutation for operation+target is awaiting the
// API. Drives the UI's control-disabling flag.
func (g *inflightGuard) pending(op invalidation.Operation, target string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[guardKey(op, target)]
	return busy
}
