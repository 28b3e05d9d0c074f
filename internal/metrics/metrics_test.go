package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/hazyhaar/proofmine/internal/verify"
)

func TestPipelineObserver(t *testing.T) {
	before := testutil.ToFloat64(VerificationsTotal.WithLabelValues("live", "accepted"))
	rewardsBefore := testutil.ToFloat64(RewardsEarnedTotal)

	var p Pipeline
	p.ObserveVerification("live", "accepted", 1500*time.Millisecond)
	p.ObserveReward(8.5)
	p.ObserveReward(0)
	p.ObserveReputation("submission_accepted")

	assert.Equal(t, before+1, testutil.ToFloat64(VerificationsTotal.WithLabelValues("live", "accepted")))
	assert.Equal(t, rewardsBefore+8.5, testutil.ToFloat64(RewardsEarnedTotal))
	assert.GreaterOrEqual(t, testutil.ToFloat64(ReputationEventsTotal.WithLabelValues("submission_accepted")), 1.0)
}

func TestRecordJudgeCall(t *testing.T) {
	tests := []struct {
		err     error
		outcome string
	}{
		{nil, "ok"},
		{fmt.Errorf("%w: slow", verify.ErrJudgeTimeout), "timeout"},
		{fmt.Errorf("%w: refused", verify.ErrJudgeUnavailable), "unavailable"},
	}
	for _, tt := range tests {
		before := testutil.ToFloat64(JudgeCallsTotal.WithLabelValues(tt.outcome))
		RecordJudgeCall(context.Background(), verify.CallRecord{Elapsed: time.Second, TokensIn: 10, TokensOut: 5, Err: tt.err})
		assert.Equal(t, before+1, testutil.ToFloat64(JudgeCallsTotal.WithLabelValues(tt.outcome)), tt.outcome)
	}
}
