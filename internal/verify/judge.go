package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/proofmine/internal/llm"
)

// DefaultTimeout is the judge budget when a request does not set one.
const DefaultTimeout = 30 * time.Second

// JudgeReply is the raw answer of one judge call.
type JudgeReply struct {
	Text      string
	Model     string
	ElapsedMs int64
	TokensIn  int
	TokensOut int
}

// CallRecord describes one completed judge call, successful or not.
type CallRecord struct {
	Provider  string
	Model     string
	Elapsed   time.Duration
	TokensIn  int
	TokensOut int
	Err       error
}

// CallRecorder receives every judge call. Metrics and the call ledger
// implement it.
type CallRecorder func(ctx context.Context, rec CallRecord)

// JudgeClient sends a prompt to the external judge and returns its text.
// It keeps no state beyond the model id and the provider credentials.
type JudgeClient struct {
	provider  llm.Provider
	model     string
	maxTokens int
	now       func() time.Time
	recorders []CallRecorder
}

type JudgeOption func(*JudgeClient)

func WithMaxTokens(n int) JudgeOption {
	return func(c *JudgeClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithClock replaces the clock used to measure elapsed time.
func WithClock(now func() time.Time) JudgeOption {
	return func(c *JudgeClient) { c.now = now }
}

func WithRecorder(r CallRecorder) JudgeOption {
	return func(c *JudgeClient) { c.recorders = append(c.recorders, r) }
}

func NewJudgeClient(provider llm.Provider, model string, opts ...JudgeOption) *JudgeClient {
	c := &JudgeClient{
		provider:  provider,
		model:     model,
		maxTokens: 500,
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *JudgeClient) Model() string { return c.model }

// Ask invokes the judge exactly once. The call is not cut short when it
// overruns: elapsed time is compared with the budget after it returns, and
// an overrun is reported as ErrJudgeTimeout. A timeout <= 0 means
// DefaultTimeout.
func (c *JudgeClient) Ask(ctx context.Context, prompt string, timeout time.Duration) (*JudgeReply, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start := c.now()
	resp, err := c.provider.Complete(ctx, llm.Request{
		Model:     c.model,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: c.maxTokens,
	})
	elapsed := c.now().Sub(start)
	if errors.Is(err, llm.ErrEmptyContent) {
		// The judge answered with no text; the reply fails parsing as an unparsable verdict.
		resp, err = &llm.Response{Model: c.model}, nil
	}

	rec := CallRecord{Provider: c.provider.Name(), Model: c.model, Elapsed: elapsed, Err: err}
	if resp != nil {
		rec.TokensIn, rec.TokensOut = resp.TokensIn, resp.TokensOut
		if resp.Model != "" {
			rec.Model = resp.Model
		}
	}

	switch {
	case err != nil:
		err = fmt.Errorf("%w: %w", ErrJudgeUnavailable, err)
	case elapsed > timeout:
		err = fmt.Errorf("%w: judge answered after %dms, budget %dms", ErrJudgeTimeout, elapsed.Milliseconds(), timeout.Milliseconds())
	}
	if err != nil {
		rec.Err = err
	}
	for _, r := range c.recorders {
		r(ctx, rec)
	}
	if err != nil {
		return nil, err
	}

	return &JudgeReply{
		Text:      resp.Content,
		Model:     rec.Model,
		ElapsedMs: elapsed.Milliseconds(),
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
	}, nil
}
