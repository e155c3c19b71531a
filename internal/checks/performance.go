package checks

import (
	"context"
	"fmt"
)

// PerformanceResult is the timed-fetch measurement for a target.
type PerformanceResult struct {
	StatusCode int    `json:"status_code" bson:"status_code"`
	DurationMs int64  `json:"duration_ms" bson:"duration_ms"`
	BodyBytes  int    `json:"body_bytes" bson:"body_bytes"`
	Grade      string `json:"grade" bson:"grade"`
}

// checkPerformance measures a single GET against the target.
func (f *fetcher) checkPerformance(ctx context.Context, target Target) (any, error) {
	status, _, body, duration, err := f.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		return nil, fmt.Errorf("target returned status %d", status)
	}

	ms := duration.Milliseconds()
	return PerformanceResult{
		StatusCode: status,
		DurationMs: ms,
		BodyBytes:  len(body),
		Grade:      performanceGrade(ms),
	}, nil
}

func performanceGrade(ms int64) string {
	switch {
	case ms < 300:
		return "A"
	case ms < 800:
		return "B"
	case ms < 2000:
		return "C"
	default:
		return "D"
	}
}
