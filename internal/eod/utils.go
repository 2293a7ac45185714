package eod

import (
	"path/filepath"
	"time"
)

func (s *eodSummarizer) csvPath(t time.Time) string {
	return filepath.Join(s.journal.Dir(), "eod", t.In(s.loc).Format("2006-01-02")+".csv")
}

// cutoff is the summary time on the trading day of t.
func (s *eodSummarizer) cutoff(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), s.hour, s.minute, 0, 0, s.loc)
}
