package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the single configuration object for the whole process. It is
// constructed once at startup and passed by reference into every component;
// core packages never read ambient globals.
type Config struct {
	Cache      CacheConfig      `yaml:"cache"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
	Sources    SourcesConfig    `yaml:"sources"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// CacheConfig selects the cache backend and default TTL.
type CacheConfig struct {
	Backend    string      `yaml:"backend"` // "memory", "file", or "redis"
	Dir        string      `yaml:"dir"`
	TTLMinutes int         `yaml:"ttl_minutes"`
	Namespace  string      `yaml:"namespace"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig configures the optional second-tier cache. A Redis outage
// degrades silently to the file backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`
}

// TTL returns the default cache TTL.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// MetricsConfig controls the flow metrics engine windows.
type MetricsConfig struct {
	WindowHours         int     `yaml:"window_hours"`
	BaselineDays        int     `yaml:"baseline_days"`
	AnomalyThresholdPct float64 `yaml:"anomaly_threshold_pct"`
	MinBaselineSamples  int     `yaml:"min_baseline_samples"`
}

// Window returns the short rolling window.
func (c MetricsConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// BaselineWindow returns the trailing baseline window.
func (c MetricsConfig) BaselineWindow() time.Duration {
	return time.Duration(c.BaselineDays) * 24 * time.Hour
}

// AlertsConfig controls the surge alert detector.
type AlertsConfig struct {
	DeviationThresholdPct float64 `yaml:"deviation_threshold_pct"`
	LookbackHours         int     `yaml:"lookback_hours"`
}

// Lookback returns the alert eligibility window.
func (c AlertsConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// NewsletterConfig controls report composition and export.
type NewsletterConfig struct {
	Sections  []string `yaml:"sections"`
	OutputDir string   `yaml:"output_dir"`
}

// SourcesConfig configures the upstream data collaborators. API keys are read
// from the environment (optionally via a .env file), never from YAML.
type SourcesConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	Burst          int     `yaml:"burst"`
	SampleSeed     int64   `yaml:"sample_seed"`
	SampleHours    int     `yaml:"sample_hours"`

	EIAAPIKey             string `yaml:"-"`
	ENTSOEAPIKey          string `yaml:"-"`
	ElectricityMapsAPIKey string `yaml:"-"`
}

// Timeout returns the per-request upstream timeout.
func (c SourcesConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HTTPConfig configures the dashboard JSON API.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns a Config populated with the documented defaults: 30 min
// TTL, 24 h rolling window, 7 d baseline, 20% deviation threshold, 72 h
// alert lookback.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Backend:    "file",
			Dir:        ".cache",
			TTLMinutes: 30,
			Namespace:  "gridpulse",
			Redis:      RedisConfig{Addr: "", DB: 0},
		},
		Metrics: MetricsConfig{
			WindowHours:         24,
			BaselineDays:        7,
			AnomalyThresholdPct: 20,
			MinBaselineSamples:  2,
		},
		Alerts: AlertsConfig{
			DeviationThresholdPct: 20,
			LookbackHours:         72,
		},
		Newsletter: NewsletterConfig{
			Sections:  nil, // nil means the composer's default section set
			OutputDir: "out",
		},
		Sources: SourcesConfig{
			TimeoutSeconds: 30,
			RateLimitRPS:   2,
			Burst:          4,
			SampleSeed:     42,
			SampleHours:    240,
		},
		HTTP: HTTPConfig{Listen: ":8090"},
	}
}

// Load reads configuration from a YAML file, applies defaults for anything
// unset, and pulls API keys from the environment. A missing file is not an
// error; defaults are used.
func Load(path string) (*Config, error) {
	// Optional .env, matching the upstream collaborators' key conventions.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			log.Debug().Str("path", path).Msg("Config file not found, using defaults")
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Cache.Backend == "" {
		c.Cache.Backend = d.Cache.Backend
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = d.Cache.Dir
	}
	if c.Cache.TTLMinutes <= 0 {
		c.Cache.TTLMinutes = d.Cache.TTLMinutes
	}
	if c.Cache.Namespace == "" {
		c.Cache.Namespace = d.Cache.Namespace
	}
	if c.Metrics.WindowHours <= 0 {
		c.Metrics.WindowHours = d.Metrics.WindowHours
	}
	if c.Metrics.BaselineDays <= 0 {
		c.Metrics.BaselineDays = d.Metrics.BaselineDays
	}
	if c.Metrics.AnomalyThresholdPct <= 0 {
		c.Metrics.AnomalyThresholdPct = d.Metrics.AnomalyThresholdPct
	}
	if c.Metrics.MinBaselineSamples <= 0 {
		c.Metrics.MinBaselineSamples = d.Metrics.MinBaselineSamples
	}
	if c.Alerts.DeviationThresholdPct <= 0 {
		c.Alerts.DeviationThresholdPct = d.Alerts.DeviationThresholdPct
	}
	if c.Alerts.LookbackHours <= 0 {
		c.Alerts.LookbackHours = d.Alerts.LookbackHours
	}
	if c.Newsletter.OutputDir == "" {
		c.Newsletter.OutputDir = d.Newsletter.OutputDir
	}
	if c.Sources.TimeoutSeconds <= 0 {
		c.Sources.TimeoutSeconds = d.Sources.TimeoutSeconds
	}
	if c.Sources.RateLimitRPS <= 0 {
		c.Sources.RateLimitRPS = d.Sources.RateLimitRPS
	}
	if c.Sources.Burst <= 0 {
		c.Sources.Burst = d.Sources.Burst
	}
	if c.Sources.SampleSeed == 0 {
		c.Sources.SampleSeed = d.Sources.SampleSeed
	}
	if c.Sources.SampleHours <= 0 {
		c.Sources.SampleHours = d.Sources.SampleHours
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = d.HTTP.Listen
	}
}

func (c *Config) loadEnv() {
	c.Sources.EIAAPIKey = os.Getenv("EIA_API_KEY")
	c.Sources.ENTSOEAPIKey = os.Getenv("ENTSO_E_API_KEY")
	c.Sources.ElectricityMapsAPIKey = os.Getenv("ELECTRICITY_MAPS_API_KEY")
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Cache.Redis.Addr = addr
	}
	c.Cache.Redis.Password = os.Getenv("REDIS_PASSWORD")
}
