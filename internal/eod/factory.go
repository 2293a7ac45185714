package eod

import (
	"fmt"
	"time"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/tradelog"
)

// NewSummarizer builds a summarizer over journal that becomes due at eodTime
// (HH:MM in loc) each day.
func NewSummarizer(journal *tradelog.Journal, loc *time.Location, eodTime string) (interfaces.EodSummarizer, error) {
	return newSummarizer(journal, loc, eodTime)
}

func newSummarizer(journal *tradelog.Journal, loc *time.Location, eodTime string) (*eodSummarizer, error) {
	if eodTime == "" {
		eodTime = "16:05"
	}
	at, err := time.Parse("15:04", eodTime)
	if err != nil {
		return nil, fmt.Errorf("invalid eod time '%s': %w", eodTime, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &eodSummarizer{
		journal: journal,
		loc:     loc,
		hour:    at.Hour(),
		minute:  at.Minute(),
		now:     time.Now,
	}, nil
}
