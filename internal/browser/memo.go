package browser

import (
	"sync"

	"github.com/playwright-community/playwright-go"
)

// requestMemo returns a stable wrapper per underlying request object. Wrappers
// are handed to listeners and later retrieved through Response.Request and the
// redirect relations, so two lookups of the same engine request must yield the
// same Request value.
type requestMemo struct {
	mu   sync.Mutex
	byID map[playwright.Request]*pwRequest
}

func newRequestMemo() *requestMemo {
	return &requestMemo{byID: make(map[playwright.Request]*pwRequest)}
}

func (m *requestMemo) wrap(req playwright.Request) *pwRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wrapped, ok := m.byID[req]; ok {
		return wrapped
	}
	wrapped := &pwRequest{req: req, requests: m}
	m.byID[req] = wrapped
	return wrapped
}
