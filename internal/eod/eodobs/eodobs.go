// Package eodobs traces the end-of-day summarizer.
package eodobs

import (
	"context"
	"time"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
)

type tracedSummarizer struct {
	inner interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*tracedSummarizer)(nil)

func Wrap(s interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &tracedSummarizer{inner: s}
}

// report finishes op and logs where the CSV went. An empty path means the
// day had no executions.
func report(op *logger.Operation, path string, err error) {
	if err != nil {
		op.Finish(err)
		return
	}
	elapsed := op.Finish(nil, "csv_path", path)
	if path == "" {
		logger.InfoSkip(op.Context(), 1, "Trading day had no executions, no summary written")
		return
	}
	logger.InfoSkip(op.Context(), 1, "Daily summary written",
		"csv_path", path,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func (ts *tracedSummarizer) SummarizeDay(t time.Time) (string, error) {
	op := logger.StartOperation(context.Background(), "eod.SummarizeDay",
		"day", t.Format("2006-01-02"))
	path, err := ts.inner.SummarizeDay(t)
	report(op, path, err)
	return path, err
}

func (ts *tracedSummarizer) SummarizeToday() (string, error) {
	op := logger.StartOperation(context.Background(), "eod.SummarizeToday")
	path, err := ts.inner.SummarizeToday()
	report(op, path, err)
	return path, err
}

func (ts *tracedSummarizer) ShouldRunNow() (bool, string) {
	due, path := ts.inner.ShouldRunNow()
	if due {
		logger.Debug(context.Background(), "Daily summary due", "csv_path", path)
	}
	return due, path
}
