package batch

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of pool activity
type Stats struct {
	Workers        int
	QueuedTasks    int
	SubmittedTasks uint64
	CompletedTasks uint64 // Includes failed and panicked tasks
	FailedTasks    uint64
	PanickedTasks  uint64
	CancelledTasks uint64 // Skipped because their context ended while queued
	AvgDuration    time.Duration
}

type statsCollector struct {
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	cancelled atomic.Uint64
	totalNs   atomic.Int64
}

func (s *statsCollector) recordCompletion(d time.Duration) {
	s.completed.Add(1)
	s.totalNs.Add(int64(d))
}

func (s *statsCollector) snapshot(workers, queued int) Stats {
	stats := Stats{
		Workers:        workers,
		QueuedTasks:    queued,
		SubmittedTasks: s.submitted.Load(),
		CompletedTasks: s.completed.Load(),
		FailedTasks:    s.failed.Load(),
		PanickedTasks:  s.panicked.Load(),
		CancelledTasks: s.cancelled.Load(),
	}
	if stats.CompletedTasks > 0 {
		stats.AvgDuration = time.Duration(s.totalNs.Load() / int64(stats.CompletedTasks))
	}
	return stats
}
