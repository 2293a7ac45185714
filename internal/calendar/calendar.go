// Package calendar keeps the set of exchange holidays on which no new
// positions are opened. Dates come from config, a saved HTML page, or a
// scraped holiday page.
package calendar

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"vwap-reversion-bot/internal/api"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/store"
)

const dateKey = "2006-01-02"

type Calendar struct {
	mu    sync.RWMutex
	dates map[string]bool
}

func New(dates ...string) *Calendar {
	c := &Calendar{dates: make(map[string]bool)}
	c.Add(dates...)
	return c
}

// FromConfig builds the calendar from the static dates, then merges the
// saved page and the scraped page when configured. A failed fetch keeps the
// static dates and is returned for the caller to log.
func FromConfig(ctx context.Context, cfg *store.Config) (*Calendar, error) {
	h := cfg.Holidays
	c := New(h.Dates...)

	if h.File != "" {
		f, err := os.Open(h.File)
		if err != nil {
			return c, fmt.Errorf("open holiday page: %w", err)
		}
		defer f.Close()
		dates, err := ParseHTML(f, h.Selector, h.DateLayout)
		if err != nil {
			return c, err
		}
		c.Add(dates...)
	}

	if h.SourceURL != "" {
		if err := c.Refresh(ctx, h.SourceURL, h.Selector, h.DateLayout); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (c *Calendar) Add(dates ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range dates {
		c.dates[d] = true
	}
}

// IsHoliday takes a YYYY-MM-DD date in the exchange timezone.
func (c *Calendar) IsHoliday(date string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dates[date]
}

func (c *Calendar) Dates() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.dates))
	for d := range c.dates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Refresh scrapes pageURL and merges whatever dates it finds.
func (c *Calendar) Refresh(ctx context.Context, pageURL, selector, layout string) error {
	dates, err := Scrape(ctx, pageURL, selector, layout)
	if err != nil {
		return err
	}
	c.Add(dates...)
	logger.Info(ctx, "Holiday calendar refreshed", "url", pageURL, "dates", len(dates))
	return nil
}

// ParseHTML extracts the holiday dates from an HTML document.
func ParseHTML(r io.Reader, selector, layout string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse holiday page: %w", err)
	}
	var dates []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if d, ok := parseDate(s, layout); ok {
			dates = append(dates, d)
		}
	})
	return dates, nil
}

// Scrape fetches pageURL and extracts the dates matched by selector.
func Scrape(ctx context.Context, pageURL, selector, layout string) ([]string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid holiday url %q: %w", pageURL, err)
	}

	col := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	col.SetRequestTimeout(30 * time.Second)
	col.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", api.BrowserUserAgent)
	})

	var dates []string
	col.OnHTML(selector, func(e *colly.HTMLElement) {
		if d, ok := parseDate(e.DOM, layout); ok {
			dates = append(dates, d)
		}
	})

	var scrapeErr error
	col.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("scrape %s: status %d: %w", pageURL, r.StatusCode, err)
	})

	if err := col.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", pageURL, err)
	}
	col.Wait()
	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return dates, nil
}

func parseDate(s *goquery.Selection, layout string) (string, bool) {
	text := strings.Join(strings.Fields(s.Text()), " ")
	if text == "" {
		return "", false
	}
	t, err := time.Parse(layout, text)
	if err != nil {
		logger.Debug(context.Background(), "Skipping unparsable holiday cell", "text", text, "layout", layout)
		return "", false
	}
	return t.Format(dateKey), true
}
