package pebblestore

import (
	"time"

	logpkg "github.com/rzbill/feedgen/pkg/log"
)

// SlowCommitLogger is a MetricsHook that warns when a batch commit takes
// longer than Threshold.
type SlowCommitLogger struct {
	Logger    logpkg.Logger
	Threshold time.Duration
}

func (SlowCommitLogger) ObserveRead(time.Duration, int) {}

func (m SlowCommitLogger) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	if m.Logger == nil || m.Threshold <= 0 || elapsed < m.Threshold {
		return
	}
	m.Logger.Warn("slow batch commit",
		logpkg.Dur("elapsed", elapsed),
		logpkg.Int("ops", numOps),
		logpkg.Int("bytes", bytes),
	)
}
