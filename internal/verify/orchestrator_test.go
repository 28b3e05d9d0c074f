package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/proofmine/internal/config"
	"github.com/hazyhaar/proofmine/internal/llm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(p *stubProvider, clock *fakeClock) *Orchestrator {
	return NewOrchestrator(NewJudgeClient(p, p.model, WithClock(clock.Now)), quietLogger())
}

func sampleReq() Request {
	return Request{
		SubmissionID: "sub-1",
		TaskID:       "task-1",
		TaskType:     "evaluation",
		Instructions: map[string]any{"description": "Calculate 2+2+2+2"},
		Criteria:     map[string]any{"correct_answer": 8},
		MinerOutput:  map[string]any{"answer": 8},
		Timeout:      30 * time.Second,
	}
}

func TestOrchestratorVerify_Success(t *testing.T) {
	clock := newFakeClock()
	p := &stubProvider{
		content: `Sure! {"is_valid": true, "score": 0.9, "feedback": "correct"} thanks`,
		model:   "claude-3-5-sonnet-20241022",
		latency: 2 * time.Second,
		clock:   clock,
	}
	o := newTestOrchestrator(p, clock)

	res, err := o.Verify(context.Background(), sampleReq())
	require.NoError(t, err)
	assert.Equal(t, "sub-1", res.SubmissionID)
	assert.Equal(t, "task-1", res.TaskID)
	assert.True(t, res.IsValid)
	assert.Equal(t, 0.9, res.AIScore)
	assert.Equal(t, "correct", res.Feedback)
	assert.Equal(t, "claude-3-5-sonnet-20241022", res.ModelUsed)
	assert.Equal(t, int64(2000), res.ExecutionTimeMs)
	assert.Equal(t, ModeLive, res.Mode)
	assert.Equal(t, clock.Now(), res.VerifiedAt)
	assert.Contains(t, p.lastReq.Messages[0].Content, "Calculate 2+2+2+2")
}

func TestOrchestratorVerify_Failures(t *testing.T) {
	tests := []struct {
		name    string
		p       *stubProvider
		wantErr error
	}{
		{
			name:    "judge unavailable",
			p:       &stubProvider{err: errors.New("connection refused"), model: "m"},
			wantErr: ErrJudgeUnavailable,
		},
		{
			name:    "judge timeout",
			p:       &stubProvider{content: `{"is_valid":true,"score":1}`, model: "m", latency: 31 * time.Second},
			wantErr: ErrJudgeTimeout,
		},
		{
			name:    "unparsable verdict",
			p:       &stubProvider{content: "I cannot comply", model: "m"},
			wantErr: ErrUnparsableVerdict,
		},
		{
			name:    "empty judge reply",
			p:       &stubProvider{err: &llm.ProviderError{Provider: "anthropic", Err: llm.ErrEmptyContent}, model: "m"},
			wantErr: ErrUnparsableVerdict,
		},
		{
			name:    "non-finite score",
			p:       &stubProvider{content: `{"is_valid": true, "score": "NaN", "feedback": "ok"}`, model: "m"},
			wantErr: ErrUnparsableVerdict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			tt.p.clock = clock
			o := newTestOrchestrator(tt.p, clock)

			res, err := o.Verify(context.Background(), sampleReq())
			assert.Nil(t, res)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var ve *VerificationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "sub-1", ve.SubmissionID)
			assert.Equal(t, 1, tt.p.calls)
		})
	}
}

func TestMockVerifier(t *testing.T) {
	m := NewMockVerifier()
	res, err := m.Verify(context.Background(), sampleReq())
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, MockScore, res.AIScore)
	assert.Equal(t, MockModel, res.ModelUsed)
	assert.Equal(t, ModeMock, res.Mode)
	assert.Equal(t, ModeMock, m.Mode())
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Judge

	t.Run("mock mode", func(t *testing.T) {
		c := cfg
		c.Mode = config.JudgeModeMock
		c.APIKey = "sk-present"
		assert.Equal(t, ModeMock, FromConfig(c, quietLogger()).Mode())
	})
	t.Run("live without key falls back to mock", func(t *testing.T) {
		c := cfg
		c.APIKey = ""
		assert.Equal(t, ModeMock, FromConfig(c, quietLogger()).Mode())
	})
	t.Run("live with key", func(t *testing.T) {
		c := cfg
		c.APIKey = "sk-present"
		assert.Equal(t, ModeLive, FromConfig(c, quietLogger()).Mode())
	})
}
