package verify

import (
	"context"
	"sync"
	"time"

	"github.com/hazyhaar/proofmine/internal/llm"
)

// fakeClock advances only when told to.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// stubProvider answers with a canned completion and advances the clock by
// latency on every call.
type stubProvider struct {
	content string
	model   string
	err     error
	latency time.Duration
	clock   *fakeClock

	calls   int
	lastReq llm.Request
}

func (p *stubProvider) Name() string     { return "stub" }
func (p *stubProvider) Models() []string { return []string{p.model} }

func (p *stubProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.calls++
	p.lastReq = req
	if p.clock != nil {
		p.clock.Advance(p.latency)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Provider: "stub", Model: p.model, Content: p.content, TokensIn: 100, TokensOut: 20}, nil
}
