// Package tradelog is the append-only decision and execution journal: one
// JSON line per event, one file per trading day and kind.
package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vwap-reversion-bot/internal/types"
)

const (
	KindDecisions  = "decisions"
	KindExecutions = "executions"
	fileExt        = ".jsonl"
	dayLayout      = "2006-01-02"
)

// ExecutionEntry records one order handed to an executor and its outcome.
type ExecutionEntry struct {
	Time          string  `json:"time"`
	Symbol        string  `json:"symbol"`
	Executor      string  `json:"executor"`
	Action        string  `json:"action"`
	Side          string  `json:"side,omitempty"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	OrderID       string  `json:"orderId,omitempty"`
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
	ExecutedPrice float64 `json:"executedPrice,omitempty"`
	ExecutedQty   int     `json:"executedQuantity,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// FillPrice is the executed price when the venue reported one, otherwise the
// tick price the order was sent at.
func (e ExecutionEntry) FillPrice() float64 {
	if e.ExecutedPrice > 0 {
		return e.ExecutedPrice
	}
	return e.Price
}

// FillQuantity is the executed quantity when reported, otherwise the requested one.
func (e ExecutionEntry) FillQuantity() int {
	if e.ExecutedQty > 0 {
		return e.ExecutedQty
	}
	return e.Quantity
}

type dailyFile struct {
	day  string
	file *os.File
	log  *zap.Logger
}

type Journal struct {
	dir   string
	loc   *time.Location
	mu    sync.Mutex
	files map[string]*dailyFile
}

// New opens a journal rooted at dir. Days are cut in loc.
func New(dir string, loc *time.Location) *Journal {
	if loc == nil {
		loc = time.UTC
	}
	return &Journal{dir: dir, loc: loc, files: make(map[string]*dailyFile)}
}

func (j *Journal) Dir() string { return j.dir }

// Path is the journal file of kind for the trading day containing t.
func (j *Journal) Path(kind string, t time.Time) string {
	return filepath.Join(j.dir, kind, t.In(j.loc).Format(dayLayout)+fileExt)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "event",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

func (j *Journal) writer(kind string, at time.Time) (*zap.Logger, error) {
	day := at.In(j.loc).Format(dayLayout)
	if df, ok := j.files[kind]; ok {
		if df.day == day {
			return df.log, nil
		}
		_ = df.log.Sync()
		_ = df.file.Close()
		delete(j.files, kind)
	}

	p := j.Path(kind, at)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(f), zapcore.InfoLevel)
	df := &dailyFile{day: day, file: f, log: zap.New(core)}
	j.files[kind] = df
	return df.log, nil
}

// AppendDecision journals ev under the day of at.
func (j *Journal) AppendDecision(at time.Time, ev types.DecisionEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	w, err := j.writer(KindDecisions, at)
	if err != nil {
		return fmt.Errorf("open decision journal: %w", err)
	}
	d := ev.Decision
	fields := []zap.Field{
		zap.String("time", ev.Time),
		zap.String("symbol", ev.Symbol),
		zap.String("sessionDate", ev.SessionDate),
		zap.String("session", ev.Session),
		zap.Float64("lastPrice", ev.LastPrice),
		zap.Float64("vwap", ev.VWAP),
		zap.Float64("zScore", ev.ZScore),
		zap.Int("position", ev.Position),
		zap.Int("observations", ev.Observations),
		zap.String("action", string(d.Action)),
		zap.String("reason", d.Reason),
	}
	if d.Action == types.ActionPlace {
		fields = append(fields,
			zap.String("side", string(d.Side)),
			zap.String("orderType", string(d.OrderType)),
			zap.Int("quantity", d.Quantity),
		)
		if d.LimitPrice != nil {
			fields = append(fields, zap.Float64("limitPrice", *d.LimitPrice))
		}
	}
	w.Info("decision", fields...)
	return nil
}

// AppendExecution journals e under the day of at.
func (j *Journal) AppendExecution(at time.Time, e ExecutionEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	w, err := j.writer(KindExecutions, at)
	if err != nil {
		return fmt.Errorf("open execution journal: %w", err)
	}
	w.Info("execution",
		zap.String("time", e.Time),
		zap.String("symbol", e.Symbol),
		zap.String("executor", e.Executor),
		zap.String("action", e.Action),
		zap.String("side", e.Side),
		zap.Int("quantity", e.Quantity),
		zap.Float64("price", e.Price),
		zap.String("orderId", e.OrderID),
		zap.Bool("success", e.Success),
		zap.String("error", e.Error),
		zap.Float64("executedPrice", e.ExecutedPrice),
		zap.Int("executedQuantity", e.ExecutedQty),
		zap.String("reason", e.Reason),
	)
	return nil
}

// Close flushes and closes every open day file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var firstErr error
	for kind, df := range j.files {
		_ = df.log.Sync()
		if err := df.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(j.files, kind)
	}
	return firstErr
}

// ReadExecutions decodes the execution journal of the day containing t.
// A missing file is an empty day.
func (j *Journal) ReadExecutions(t time.Time) ([]ExecutionEntry, error) {
	var out []ExecutionEntry
	err := j.read(KindExecutions, t, func(line []byte) error {
		var e ExecutionEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// ReadDecisions decodes the decision journal of the day containing t into
// symbol and action pairs.
func (j *Journal) ReadDecisions(t time.Time) ([]DecisionLine, error) {
	var out []DecisionLine
	err := j.read(KindDecisions, t, func(line []byte) error {
		var d DecisionLine
		if err := json.Unmarshal(line, &d); err != nil {
			return nil
		}
		out = append(out, d)
		return nil
	})
	return out, err
}

// DecisionLine is the subset of a journaled decision read back for reporting.
type DecisionLine struct {
	Time   string  `json:"time"`
	Symbol string  `json:"symbol"`
	Action string  `json:"action"`
	Reason string  `json:"reason"`
	ZScore float64 `json:"zScore"`
}

func (j *Journal) read(kind string, t time.Time, fn func(line []byte) error) error {
	j.mu.Lock()
	if df, ok := j.files[kind]; ok {
		_ = df.log.Sync()
	}
	j.mu.Unlock()

	b, err := os.ReadFile(j.Path(kind, t))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn([]byte(line)); err != nil {
			return err
		}
	}
	return nil
}

// CompressOlder gzips journal files last written more than retentionDays ago
// and removes the originals.
func (j *Journal) CompressOlder(retentionDays int, now time.Time) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != fileExt {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		return os.Remove(p)
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
