package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/router"
	"github.com/newthinker/confluence/internal/signal"
	"github.com/newthinker/confluence/internal/storage/archive"
)

// EnvPrefix prefixes environment overrides: CONFLUENCE_SERVER_PORT
const EnvPrefix = "CONFLUENCE"

type Config struct {
	Log      LogConfig                 `mapstructure:"log"`
	Data     DataConfig                `mapstructure:"data"`
	Cache    CacheConfig               `mapstructure:"cache"`
	Analysis AnalysisConfig            `mapstructure:"analysis"`
	Backtest BacktestConfig            `mapstructure:"backtest"`
	Monitor  MonitorConfig             `mapstructure:"monitor"`
	Server   ServerConfig              `mapstructure:"server"`
	Metrics  MetricsConfig             `mapstructure:"metrics"`
	Profiles map[string]map[string]any `mapstructure:"profiles"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DataConfig selects the bar provider
type DataConfig struct {
	Provider string        `mapstructure:"provider"` // "binance" or "csv"
	CSVDir   string        `mapstructure:"csv_dir"`
	Binance  BinanceConfig `mapstructure:"binance"`
}

type BinanceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	FuturesURL string        `mapstructure:"futures_url"`
	StreamURL  string        `mapstructure:"stream_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig enables archive-backed caching of closed history ranges
type CacheConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Storage archive.Config `mapstructure:"storage"`
}

type AnalysisConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Interval string `mapstructure:"interval"`
	Profile  string `mapstructure:"profile"`
	Bars     int    `mapstructure:"bars"`
	// Reference is the base asset whose bias is used for confluence; empty disables
	Reference   string `mapstructure:"reference"`
	Derivatives bool   `mapstructure:"derivatives"`
	// OIPeriod and OIPoints size the open interest change window
	OIPeriod string `mapstructure:"oi_period"`
	OIPoints int    `mapstructure:"oi_points"`
}

type BacktestConfig struct {
	Days           int     `mapstructure:"days"`
	InitialCapital float64 `mapstructure:"initial_capital"`
	RiskFraction   float64 `mapstructure:"risk_fraction"`
	MaxHoldBars    int     `mapstructure:"max_hold_bars"`
}

type MonitorConfig struct {
	PollInterval        time.Duration  `mapstructure:"poll_interval"`
	Stream              bool           `mapstructure:"stream"`
	DerivativesInterval time.Duration  `mapstructure:"derivatives_interval"`
	Webhook             WebhookConfig  `mapstructure:"webhook"`
	Telegram            TelegramConfig `mapstructure:"telegram"`
	Routing             router.Config  `mapstructure:"routing"`
	// HistorySize bounds the in-memory alert history
	HistorySize int `mapstructure:"history_size"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// TelegramConfig enables the Telegram notifier when BotToken is set
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIURL   string `mapstructure:"api_url"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	APIKey      string   `mapstructure:"api_key"`
	JobTTLHours int      `mapstructure:"job_ttl_hours"`
	MaxJobs     int      `mapstructure:"max_jobs"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Data: DataConfig{
			Provider: "binance",
			CSVDir:   "data",
			Binance:  BinanceConfig{Timeout: 10 * time.Second},
		},
		Cache: CacheConfig{
			Storage: archive.Config{Backend: archive.BackendLocal, Path: ".cache/confluence"},
		},
		Analysis: AnalysisConfig{
			Symbol:      "BTCUSDT",
			Interval:    "5m",
			Profile:     signal.DefaultProfile,
			Bars:        100,
			Reference:   "BTC",
			Derivatives: true,
			OIPeriod:    "5m",
			OIPoints:    12,
		},
		Backtest: BacktestConfig{
			Days:           30,
			InitialCapital: 10000,
			RiskFraction:   0.01,
			MaxHoldBars:    48,
		},
		Monitor: MonitorConfig{
			PollInterval:        5 * time.Second,
			DerivativesInterval: time.Minute,
			Routing:             router.DefaultConfig(),
			HistorySize:         500,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
			CORSOrigins: []string{"*"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// setDefaults registers every scalar default so env overrides apply even
// when the key is absent from the file
func setDefaults(v *viper.Viper, d *Config) {
	for key, val := range map[string]any{
		"log.development":                d.Log.Development,
		"log.level":                      d.Log.Level,
		"data.provider":                  d.Data.Provider,
		"data.csv_dir":                   d.Data.CSVDir,
		"data.binance.base_url":          d.Data.Binance.BaseURL,
		"data.binance.futures_url":       d.Data.Binance.FuturesURL,
		"data.binance.stream_url":        d.Data.Binance.StreamURL,
		"data.binance.timeout":           d.Data.Binance.Timeout,
		"cache.enabled":                  d.Cache.Enabled,
		"cache.storage.backend":          d.Cache.Storage.Backend,
		"cache.storage.path":             d.Cache.Storage.Path,
		"cache.storage.s3.bucket":        d.Cache.Storage.S3.Bucket,
		"cache.storage.s3.endpoint":      d.Cache.Storage.S3.Endpoint,
		"cache.storage.s3.region":        d.Cache.Storage.S3.Region,
		"cache.storage.s3.access_key":    d.Cache.Storage.S3.AccessKey,
		"cache.storage.s3.secret_key":    d.Cache.Storage.S3.SecretKey,
		"cache.storage.s3.prefix":        d.Cache.Storage.S3.Prefix,
		"analysis.symbol":                d.Analysis.Symbol,
		"analysis.interval":              d.Analysis.Interval,
		"analysis.profile":               d.Analysis.Profile,
		"analysis.bars":                  d.Analysis.Bars,
		"analysis.reference":             d.Analysis.Reference,
		"analysis.derivatives":           d.Analysis.Derivatives,
		"analysis.oi_period":             d.Analysis.OIPeriod,
		"analysis.oi_points":             d.Analysis.OIPoints,
		"backtest.days":                  d.Backtest.Days,
		"backtest.initial_capital":       d.Backtest.InitialCapital,
		"backtest.risk_fraction":         d.Backtest.RiskFraction,
		"backtest.max_hold_bars":         d.Backtest.MaxHoldBars,
		"monitor.poll_interval":          d.Monitor.PollInterval,
		"monitor.stream":                 d.Monitor.Stream,
		"monitor.derivatives_interval":   d.Monitor.DerivativesInterval,
		"monitor.webhook.url":            d.Monitor.Webhook.URL,
		"monitor.telegram.bot_token":     d.Monitor.Telegram.BotToken,
		"monitor.telegram.chat_id":       d.Monitor.Telegram.ChatID,
		"monitor.telegram.api_url":       d.Monitor.Telegram.APIURL,
		"monitor.routing.min_confidence": d.Monitor.Routing.MinConfidence,
		"monitor.routing.cooldown":       d.Monitor.Routing.Cooldown,
		"monitor.routing.tradeable_only": d.Monitor.Routing.TradeableOnly,
		"monitor.history_size":           d.Monitor.HistorySize,
		"server.host":                    d.Server.Host,
		"server.port":                    d.Server.Port,
		"server.api_key":                 d.Server.APIKey,
		"server.job_ttl_hours":           d.Server.JobTTLHours,
		"server.max_jobs":                d.Server.MaxJobs,
		"server.cors_origins":            d.Server.CORSOrigins,
		"metrics.enabled":                d.Metrics.Enabled,
		"metrics.path":                   d.Metrics.Path,
	} {
		v.SetDefault(key, val)
	}
}

// Load reads configuration from file. An empty path loads defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand ${VAR} references in string values
	for _, key := range v.AllKeys() {
		if val, ok := v.Get(key).(string); ok && strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Profile resolves a scoring profile: the named preset with any configured
// overrides applied. A configured name without a preset starts from the
// preset named by its "base" key, or the default.
func (c *Config) Profile(name string) (signal.ScoringProfile, error) {
	if name == "" {
		name = c.Analysis.Profile
	}
	if name == "" {
		name = signal.DefaultProfile
	}
	name = strings.ToLower(name)

	override, hasOverride := c.Profiles[name]
	baseName := name
	if _, preset := signal.Presets()[name]; !preset && hasOverride {
		baseName = signal.DefaultProfile
		if b, ok := override["base"].(string); ok && b != "" {
			baseName = b
		}
	}

	p, err := signal.Lookup(baseName)
	if err != nil {
		return signal.ScoringProfile{}, err
	}
	p.Name = name

	if hasOverride {
		fields := make(map[string]any, len(override))
		for k, val := range override {
			if k != "base" {
				fields[k] = val
			}
		}
		raw, err := yaml.Marshal(fields)
		if err != nil {
			return signal.ScoringProfile{}, core.WrapError(core.ErrConfigInvalid, err)
		}
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return signal.ScoringProfile{}, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("profile %q: %w", name, err))
		}
		p.Name = name
	}

	if err := p.Validate(); err != nil {
		return signal.ScoringProfile{}, err
	}
	return p, nil
}

// ProfileNames lists presets plus configured extra profiles
func (c *Config) ProfileNames() []string {
	names := signal.Names()
	for n := range c.Profiles {
		if _, ok := signal.Presets()[n]; !ok {
			names = append(names, n)
		}
	}
	return names
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Data.Provider {
	case "binance":
	case "csv":
		if c.Data.CSVDir == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.csv_dir required for csv provider"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown data provider %q", c.Data.Provider))
	}

	if _, err := collector.ParseInterval(c.Analysis.Interval); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if c.Analysis.Bars < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("analysis.bars must be positive, got %d", c.Analysis.Bars))
	}
	if c.Backtest.RiskFraction <= 0 || c.Backtest.RiskFraction > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("risk_fraction must be in (0, 1], got %f", c.Backtest.RiskFraction))
	}
	if c.Backtest.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %f", c.Backtest.InitialCapital))
	}
	if c.Monitor.PollInterval <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("poll_interval must be positive, got %s", c.Monitor.PollInterval))
	}
	if tg := c.Monitor.Telegram; tg.BotToken != "" && tg.ChatID == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("monitor.telegram.chat_id required with a bot_token"))
	}
	if r := c.Monitor.Routing; r.MinConfidence < 0 || r.MinConfidence > 100 || r.Cooldown < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("routing needs min_confidence in [0, 100] and a non-negative cooldown"))
	}

	for _, name := range c.ProfileNames() {
		if _, err := c.Profile(name); err != nil {
			return err
		}
	}
	if _, err := c.Profile(c.Analysis.Profile); err != nil {
		return err
	}
	return nil
}
