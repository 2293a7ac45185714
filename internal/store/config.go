package store

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type SessionConfig struct {
	Name             string    `yaml:"name"`
	StartTime        string    `yaml:"start_time"`
	EndTime          string    `yaml:"end_time"`
	FlattenTime      string    `yaml:"flatten_time"`
	ZExit            float64   `yaml:"z_exit"`
	ZEntryLevels     []float64 `yaml:"z_entry_levels"`
	EntryQuantities  []int     `yaml:"entry_quantities"`
	MaxTotalPosition int       `yaml:"max_total_position"`
}

type Period struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type Config struct {
	Strategy struct {
		Name                 string  `yaml:"name"`
		EWMAAlpha            float64 `yaml:"ewma_alpha"`
		MinVariance          float64 `yaml:"min_variance"`
		InitialEMAVariance   float64 `yaml:"initial_ema_variance"`
		WarmupObservations   int     `yaml:"warmup_observations"`
		BiasCorrectionPeriod int     `yaml:"bias_correction_period"`
		TickSize             float64 `yaml:"tick_size"`
		MinStdTicks          float64 `yaml:"min_std_ticks"`
		MaxSpreadTicks       float64 `yaml:"max_spread_ticks"`
		FirstEntryLimit      bool    `yaml:"first_entry_limit"`
		FillConfirmTicks     int     `yaml:"fill_confirm_ticks"`
	} `yaml:"strategy"`
	Timezone         string          `yaml:"timezone"`
	DefaultSession   string          `yaml:"default_session"`
	Sessions         []SessionConfig `yaml:"sessions"`
	NoTradingPeriods []Period        `yaml:"no_trading_periods"`
	Holidays         struct {
		Dates      []string `yaml:"dates"`
		File       string   `yaml:"file"`
		SourceURL  string   `yaml:"source_url"`
		Selector   string   `yaml:"selector"`
		DateLayout string   `yaml:"date_layout"`
	} `yaml:"holidays"`
	TrendFilter struct {
		Enabled                     bool    `yaml:"enabled"`
		Session                     string  `yaml:"session"`
		ADXPeriod                   int     `yaml:"adx_period"`
		ADXThreshold                float64 `yaml:"adx_threshold"`
		PersistenceMinutes          float64 `yaml:"persistence_minutes"`
		PersistenceZ                float64 `yaml:"persistence_z"`
		MomentumThreshold           float64 `yaml:"momentum_threshold"`
		VelocityThreshold           float64 `yaml:"velocity_threshold"`
		MomentumDivergenceThreshold float64 `yaml:"momentum_divergence_threshold"`
	} `yaml:"trend_filter"`
	Execution struct {
		Direct   bool          `yaml:"direct"`
		Executor string        `yaml:"executor"`
		Timeout  time.Duration `yaml:"timeout"`
		TopStep  struct {
			BaseURL    string `yaml:"base_url"`
			AccountID  string `yaml:"account_id"`
			ContractID string `yaml:"contract_id"`
		} `yaml:"topstep"`
		Kite struct {
			Exchange string `yaml:"exchange"`
			Product  string `yaml:"product"`
		} `yaml:"kite"`
		Guard struct {
			Enabled          bool          `yaml:"enabled"`
			PerMinuteCap     int           `yaml:"per_minute_cap"`
			MaxRetries       int           `yaml:"max_retries"`
			RetryBackoff     time.Duration `yaml:"retry_backoff"`
			DuplicateWindow  time.Duration `yaml:"duplicate_window"`
			BreakerThreshold int           `yaml:"breaker_threshold"`
			BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
			HalfOpenProbes   int           `yaml:"half_open_probes"`
		} `yaml:"guard"`
	} `yaml:"execution"`
	Server struct {
		Addr              string        `yaml:"addr"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Feed struct {
		Provider string            `yaml:"provider"`
		Symbols  map[string]uint32 `yaml:"symbols"`
	} `yaml:"feed"`
	Journal struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
		EODTime       string `yaml:"eod_time"`
	} `yaml:"journal"`
}

// Session returns the named session block.
func (c *Config) Session(name string) (SessionConfig, bool) {
	for _, s := range c.Sessions {
		if s.Name == name {
			return s, true
		}
	}
	return SessionConfig{}, false
}

func (c *Config) Validate() error {
	s := c.Strategy
	if s.EWMAAlpha <= 0 || s.EWMAAlpha > 1 {
		return fmt.Errorf("strategy.ewma_alpha must be in (0, 1], got %v", s.EWMAAlpha)
	}
	if s.MinVariance <= 0 {
		return fmt.Errorf("strategy.min_variance must be positive, got %v", s.MinVariance)
	}
	if s.TickSize <= 0 {
		return fmt.Errorf("strategy.tick_size must be positive, got %v", s.TickSize)
	}
	if s.WarmupObservations < 0 {
		return fmt.Errorf("strategy.warmup_observations must not be negative, got %d", s.WarmupObservations)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	if len(c.Sessions) == 0 {
		return errors.New("sessions cannot be empty")
	}
	seen := map[string]bool{}
	for _, sess := range c.Sessions {
		if err := validateSession(sess); err != nil {
			return err
		}
		if seen[sess.Name] {
			return fmt.Errorf("duplicate session '%s'", sess.Name)
		}
		seen[sess.Name] = true
	}
	if !seen[c.DefaultSession] {
		return fmt.Errorf("default_session '%s' is not a configured session", c.DefaultSession)
	}
	for i, p := range c.NoTradingPeriods {
		if !validClock(p.Start) || !validClock(p.End) {
			return fmt.Errorf("no_trading_periods[%d]: times must be HH:MM, got '%s'-'%s'", i, p.Start, p.End)
		}
	}
	for _, d := range c.Holidays.Dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("holidays.dates: '%s' is not YYYY-MM-DD", d)
		}
	}
	if c.Journal.EODTime != "" && !validClock(c.Journal.EODTime) {
		return fmt.Errorf("journal.eod_time must be HH:MM, got '%s'", c.Journal.EODTime)
	}
	if c.TrendFilter.Enabled {
		if c.TrendFilter.ADXPeriod < 1 {
			return fmt.Errorf("trend_filter.adx_period must be >= 1, got %d", c.TrendFilter.ADXPeriod)
		}
		if _, ok := c.Session(c.TrendFilter.Session); !ok {
			return fmt.Errorf("trend_filter.session '%s' is not a configured session", c.TrendFilter.Session)
		}
	}
	if c.Feed.Provider != "" && c.Feed.Provider != "kite" {
		return fmt.Errorf("feed.provider must be empty or 'kite', got '%s'", c.Feed.Provider)
	}
	return nil
}

func validateSession(s SessionConfig) error {
	if s.Name == "" {
		return errors.New("session name cannot be empty")
	}
	if !validClock(s.StartTime) || !validClock(s.EndTime) {
		return fmt.Errorf("session '%s': start_time/end_time must be HH:MM", s.Name)
	}
	if s.FlattenTime != "" && !validClock(s.FlattenTime) {
		return fmt.Errorf("session '%s': flatten_time must be HH:MM, got '%s'", s.Name, s.FlattenTime)
	}
	if s.ZExit < 0 {
		return fmt.Errorf("session '%s': z_exit must not be negative", s.Name)
	}
	if len(s.ZEntryLevels) == 0 {
		return fmt.Errorf("session '%s': z_entry_levels cannot be empty", s.Name)
	}
	if len(s.ZEntryLevels) != len(s.EntryQuantities) {
		return fmt.Errorf("session '%s': %d entry levels but %d entry quantities",
			s.Name, len(s.ZEntryLevels), len(s.EntryQuantities))
	}
	for i, lvl := range s.ZEntryLevels {
		if lvl <= 0 {
			return fmt.Errorf("session '%s': z_entry_levels[%d] must be positive", s.Name, i)
		}
		if i > 0 && lvl <= s.ZEntryLevels[i-1] {
			return fmt.Errorf("session '%s': z_entry_levels must be strictly ascending", s.Name)
		}
		if s.EntryQuantities[i] <= 0 {
			return fmt.Errorf("session '%s': entry_quantities[%d] must be positive", s.Name, i)
		}
	}
	if s.MaxTotalPosition <= 0 {
		return fmt.Errorf("session '%s': max_total_position must be positive", s.Name)
	}
	return nil
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// Default returns the configuration the engine runs with when config.yaml
// omits a block entirely.
func Default() *Config {
	var c Config
	c.Sessions = []SessionConfig{
		{
			Name: "ny", StartTime: "07:30", EndTime: "16:00", FlattenTime: "15:10",
			ZExit: 0.5, ZEntryLevels: []float64{20, 40}, EntryQuantities: []int{1, 1}, MaxTotalPosition: 2,
		},
		{
			Name: "overnight", StartTime: "17:00", EndTime: "07:29",
			ZExit: 0.3, ZEntryLevels: []float64{6, 10}, EntryQuantities: []int{1, 1}, MaxTotalPosition: 2,
		},
	}
	c.NoTradingPeriods = []Period{{Start: "07:25", End: "07:45"}, {Start: "15:15", End: "17:00"}}
	applyDefaults(&c)
	defaultSession(&c)
	return &c
}

func defaultSession(c *Config) {
	if c.DefaultSession == "" && len(c.Sessions) > 0 {
		c.DefaultSession = c.Sessions[0].Name
	}
}

// applyDefaults fills zero scalars. LoadConfig runs it before decoding, so a
// key written in the file, zero included, always wins.
func applyDefaults(c *Config) {
	s := &c.Strategy
	if s.Name == "" {
		s.Name = "vwap_reversion"
	}
	if s.EWMAAlpha == 0 {
		s.EWMAAlpha = 0.10
	}
	if s.MinVariance == 0 {
		s.MinVariance = 4.0
	}
	if s.InitialEMAVariance == 0 {
		s.InitialEMAVariance = 16.0
	}
	if s.WarmupObservations == 0 {
		s.WarmupObservations = 300
	}
	if s.BiasCorrectionPeriod == 0 {
		s.BiasCorrectionPeriod = 20
	}
	if s.TickSize == 0 {
		s.TickSize = 0.25
	}
	if s.MinStdTicks == 0 {
		s.MinStdTicks = 2.0
	}
	if s.MaxSpreadTicks == 0 {
		s.MaxSpreadTicks = 2.0
	}
	if s.FillConfirmTicks == 0 {
		s.FillConfirmTicks = 20
	}
	if c.Timezone == "" {
		c.Timezone = "America/Chicago"
	}
	if c.Holidays.DateLayout == "" {
		c.Holidays.DateLayout = "2006-01-02"
	}

	tf := &c.TrendFilter
	if tf.Session == "" {
		tf.Session = "ny"
	}
	if tf.ADXPeriod == 0 {
		tf.ADXPeriod = 14
	}
	if tf.ADXThreshold == 0 {
		tf.ADXThreshold = 25
	}
	if tf.PersistenceMinutes == 0 {
		tf.PersistenceMinutes = 30
	}
	if tf.PersistenceZ == 0 {
		tf.PersistenceZ = 1.5
	}
	if tf.MomentumThreshold == 0 {
		tf.MomentumThreshold = 2.0
	}
	if tf.VelocityThreshold == 0 {
		tf.VelocityThreshold = 4.0
	}
	if tf.MomentumDivergenceThreshold == 0 {
		tf.MomentumDivergenceThreshold = 1.5
	}

	ex := &c.Execution
	if ex.Executor == "" {
		ex.Executor = "ninjatrader"
	}
	if ex.Timeout == 0 {
		ex.Timeout = 5 * time.Second
	}
	if ex.TopStep.BaseURL == "" {
		ex.TopStep.BaseURL = "https://api.topstepx.com"
	}
	if ex.Kite.Exchange == "" {
		ex.Kite.Exchange = "NFO"
	}
	if ex.Kite.Product == "" {
		ex.Kite.Product = "MIS"
	}
	g := &ex.Guard
	if g.PerMinuteCap == 0 {
		g.PerMinuteCap = 30
	}
	if g.RetryBackoff == 0 {
		g.RetryBackoff = 200 * time.Millisecond
	}
	if g.DuplicateWindow == 0 {
		g.DuplicateWindow = 2 * time.Second
	}
	if g.BreakerThreshold == 0 {
		g.BreakerThreshold = 3
	}
	if g.BreakerCooldown == 0 {
		g.BreakerCooldown = 30 * time.Second
	}
	if g.HalfOpenProbes == 0 {
		g.HalfOpenProbes = 1
	}

	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8000"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 2 * time.Second
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs"
	}
	if c.Journal.EODTime == "" {
		c.Journal.EODTime = "16:05"
	}
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	applyDefaults(&c)
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// A config without a session table runs the stock NY/overnight regimes.
	if len(c.Sessions) == 0 {
		def := Default()
		c.Sessions = def.Sessions
		if len(c.NoTradingPeriods) == 0 {
			c.NoTradingPeriods = def.NoTradingPeriods
		}
	}
	defaultSession(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
