// CLAUDE:SUMMARY Prometheus collectors for verification outcomes, judge calls, reputation events, rewards and HTTP traffic
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hazyhaar/proofmine/internal/verify"
)

var (
	startTime = time.Now()

	UptimeSeconds = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "proofmine",
		Name:      "uptime_seconds",
		Help:      "Seconds since the process started",
	}, func() float64 { return time.Since(startTime).Seconds() })

	// VerificationsTotal counts terminal verifications by judge mode and
	// outcome (accepted, rejected, failed).
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofmine",
		Subsystem: "pipeline",
		Name:      "verifications_total",
		Help:      "Submissions driven to a terminal state",
	}, []string{"mode", "outcome"})

	VerificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proofmine",
		Subsystem: "pipeline",
		Name:      "verification_duration_seconds",
		Help:      "Time spent verifying one submission",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"mode"})

	ReputationEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofmine",
		Subsystem: "pipeline",
		Name:      "reputation_events_total",
		Help:      "Reputation events recorded",
	}, []string{"event_type"})

	RewardsEarnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "proofmine",
		Subsystem: "pipeline",
		Name:      "rewards_earned_total",
		Help:      "Sum of rewards credited to miners",
	})

	// JudgeCallsTotal counts judge calls by outcome (ok, unavailable, timeout).
	JudgeCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofmine",
		Subsystem: "judge",
		Name:      "calls_total",
		Help:      "Calls made to the external judge",
	}, []string{"outcome"})

	JudgeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "proofmine",
		Subsystem: "judge",
		Name:      "latency_seconds",
		Help:      "Judge call latency",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120},
	})

	JudgeTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofmine",
		Subsystem: "judge",
		Name:      "tokens_total",
		Help:      "Tokens exchanged with the judge",
	}, []string{"direction"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofmine",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proofmine",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Pipeline feeds lifecycle measurements into the collectors.
type Pipeline struct{}

func (Pipeline) ObserveVerification(mode, outcome string, d time.Duration) {
	VerificationsTotal.WithLabelValues(mode, outcome).Inc()
	VerificationDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (Pipeline) ObserveReputation(eventType string) {
	ReputationEventsTotal.WithLabelValues(eventType).Inc()
}

func (Pipeline) ObserveReward(amount float64) {
	if amount > 0 {
		RewardsEarnedTotal.Add(amount)
	}
}

// RecordJudgeCall is a verify.CallRecorder.
func RecordJudgeCall(_ context.Context, rec verify.CallRecord) {
	JudgeCallsTotal.WithLabelValues(judgeOutcome(rec.Err)).Inc()
	JudgeLatency.Observe(rec.Elapsed.Seconds())
	JudgeTokensTotal.WithLabelValues("in").Add(float64(rec.TokensIn))
	JudgeTokensTotal.WithLabelValues("out").Add(float64(rec.TokensOut))
}

func judgeOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, verify.ErrJudgeTimeout):
		return "timeout"
	default:
		return "unavailable"
	}
}
