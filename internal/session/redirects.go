package session

import (
	"sync"

	"github.com/mkerring/pagetrace/api/schemas"
)

// RedirectTracker derives the redirect chain of one session from the response
// stream. Steps are numbered from 1 in the order the triggering responses
// arrive, which is the only ordering the engine guarantees. The recorded `to`
// URL is the immediate next hop of the chain, not the final resolved URL.
type RedirectTracker struct {
	mu    sync.Mutex
	steps []schemas.RedirectStep
}

// NewRedirectTracker returns an empty tracker scoped to one session.
func NewRedirectTracker() *RedirectTracker {
	return &RedirectTracker{steps: make([]schemas.RedirectStep, 0)}
}

// Observe records one hop. from is the URL the originating request was
// redirected away from; to is the URL the chain moved to on this hop.
func (t *RedirectTracker) Observe(from, to string, statusCode int, resourceType, server string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, schemas.RedirectStep{
		Step:         len(t.steps) + 1,
		From:         from,
		To:           to,
		StatusCode:   statusCode,
		ResourceType: resourceType,
		ServerAddr:   server,
	})
}

// Steps returns the chain recorded so far, in step order.
func (t *RedirectTracker) Steps() []schemas.RedirectStep {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]schemas.RedirectStep, len(t.steps))
	copy(out, t.steps)
	return out
}
