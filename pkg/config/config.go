// Package config loads run configuration from a YAML file and MEANMOMENTUM_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix         = "MEANMOMENTUM"
	DefaultConfigPath = "./meanmomentum.yaml"
)

// Config is the file representation of a run
type Config struct {
	InitialCapital float64  `mapstructure:"initial_capital" yaml:"initial_capital"`
	Commission     float64  `mapstructure:"commission" yaml:"commission"`
	TrailPercent   float64  `mapstructure:"trail_percent" yaml:"trail_percent"`
	ActiveShare    float64  `mapstructure:"active_share" yaml:"active_share"`
	Start          string   `mapstructure:"start" yaml:"start"`
	End            string   `mapstructure:"end" yaml:"end"`
	Warmup         string   `mapstructure:"warmup" yaml:"warmup"`
	Universe       []string `mapstructure:"universe" yaml:"universe"`
	RegimeSymbol   string   `mapstructure:"regime_symbol" yaml:"regime_symbol"`
	PassiveSymbol  string   `mapstructure:"passive_symbol" yaml:"passive_symbol"`
	Benchmarks     []string `mapstructure:"benchmarks" yaml:"benchmarks"`

	Data    DataConfig    `mapstructure:"data" yaml:"data"`
	Alpaca  AlpacaConfig  `mapstructure:"alpaca" yaml:"alpaca"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// DataConfig locates the bar files read by backtests and written by downloads
type DataConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Feed      string `mapstructure:"feed" yaml:"feed"`
}

type JournalConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	Path string `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// Default returns the reference configuration
func Default() Config {
	settings := core.DefaultSettings()
	return Config{
		InitialCapital: settings.InitialCapital,
		Commission:     settings.Commission,
		TrailPercent:   settings.TrailPercent,
		ActiveShare:    settings.ActiveShare,
		Warmup:         "0d",
		Universe:       settings.Universe,
		RegimeSymbol:   settings.RegimeSymbol,
		PassiveSymbol:  settings.PassiveSymbol,
		Benchmarks:     settings.Benchmarks,
		Data:           DataConfig{Format: "csv", Dir: "./data"},
		Alpaca:         AlpacaConfig{Feed: "sip"},
		Journal:        JournalConfig{Kind: "none", Path: "./runs"},
		Log:            LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("initial_capital", def.InitialCapital)
	v.SetDefault("commission", def.Commission)
	v.SetDefault("trail_percent", def.TrailPercent)
	v.SetDefault("active_share", def.ActiveShare)
	v.SetDefault("start", def.Start)
	v.SetDefault("end", def.End)
	v.SetDefault("warmup", def.Warmup)
	v.SetDefault("universe", def.Universe)
	v.SetDefault("regime_symbol", def.RegimeSymbol)
	v.SetDefault("passive_symbol", def.PassiveSymbol)
	v.SetDefault("benchmarks", def.Benchmarks)
	v.SetDefault("data.format", def.Data.Format)
	v.SetDefault("data.dir", def.Data.Dir)
	v.SetDefault("alpaca.api_key", "")
	v.SetDefault("alpaca.api_secret", "")
	v.SetDefault("alpaca.base_url", "")
	v.SetDefault("alpaca.feed", def.Alpaca.Feed)
	v.SetDefault("journal.kind", def.Journal.Kind)
	v.SetDefault("journal.path", def.Journal.Path)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.json", def.Log.JSON)
}

// Load reads the configuration file at path, if any, over the defaults. Environment
// variables such as MEANMOMENTUM_TRAIL_PERCENT or MEANMOMENTUM_DATA_DIR take precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return cfg, cfg.Validate()
}

// Save writes cfg as YAML, creating the parent directory
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, content, 0o644)
}

// Validate checks the run parameters and the date and duration fields
func (c Config) Validate() error {
	if _, err := c.Settings(); err != nil {
		return err
	}
	if _, err := c.WarmupDuration(); err != nil {
		return err
	}
	return nil
}

// Settings converts the configuration into validated simulation settings
func (c Config) Settings() (core.Settings, error) {
	start, err := parseDate("start", c.Start)
	if err != nil {
		return core.Settings{}, err
	}
	end, err := parseDate("end", c.End)
	if err != nil {
		return core.Settings{}, err
	}

	settings := core.Settings{
		InitialCapital: c.InitialCapital,
		Commission:     c.Commission,
		TrailPercent:   c.TrailPercent,
		ActiveShare:    c.ActiveShare,
		Start:          start,
		End:            end,
		Universe:       c.Universe,
		RegimeSymbol:   c.RegimeSymbol,
		PassiveSymbol:  c.PassiveSymbol,
		Benchmarks:     c.Benchmarks,
	}
	return settings, settings.Validate()
}

// WarmupDuration is the history loaded before start to prime the indicators
func (c Config) WarmupDuration() (time.Duration, error) {
	if c.Warmup == "" {
		return 0, nil
	}
	duration, err := str2duration.ParseDuration(c.Warmup)
	if err != nil {
		return 0, fmt.Errorf("%w: warmup %q: %v", core.ErrInvalidConfig, c.Warmup, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("%w: warmup must not be negative", core.ErrInvalidConfig)
	}
	return duration, nil
}

// LoadWindow returns the range of bars to load: start minus the warm-up through end.
// A zero bound is open.
func (c Config) LoadWindow() (start, end time.Time, err error) {
	settings, err := c.Settings()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	warmup, err := c.WarmupDuration()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start = settings.Start
	if !start.IsZero() {
		start = core.Day(start.Add(-warmup))
	}
	return start, settings.End, nil
}

func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(core.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not YYYY-MM-DD", core.ErrInvalidConfig, name, value)
	}
	return t, nil
}
