package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Track runs fn and logs one entry for it asynchronously: duration,
// parameters, result or error. Transport comes from ctx.
func Track[T any](ctx context.Context, logger Logger, action, userID, subjectID string, params any, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()

	resp, err := fn(ctx)

	entry := &Entry{
		Action:     action,
		Transport:  TransportFrom(ctx),
		UserID:     userID,
		SubjectID:  subjectID,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if params != nil {
		if b, e := json.Marshal(params); e == nil {
			entry.Parameters = string(b)
		}
	}
	if err != nil {
		entry.Error = err.Error()
		entry.Status = "error"
	} else {
		if b, e := json.Marshal(resp); e == nil {
			entry.Result = truncate(string(b), 4096)
		}
		entry.Status = "success"
	}
	logger.LogAsync(entry)

	return resp, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
