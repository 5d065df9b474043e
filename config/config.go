package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the complete fxdesk configuration.
type Config struct {
	Backend BackendConfig `json:"backend" yaml:"backend"`
	Account AccountConfig `json:"account" yaml:"account"`
	Polling PollingConfig `json:"polling" yaml:"polling"`
	OANDA   OandaConfig   `json:"oanda" yaml:"oanda"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Serve   ServeConfig   `json:"serve" yaml:"serve"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// BackendConfig points at the trading backend.
type BackendConfig struct {
	BaseURL    string `json:"base_url" yaml:"base_url"`
	StreamURL  string `json:"stream_url,omitempty" yaml:"stream_url,omitempty"`
	Timeout    string `json:"timeout" yaml:"timeout"` // e.g. "15s"
	Retries    int    `json:"retries" yaml:"retries"`
	SymbolsTTL string `json:"symbols_ttl" yaml:"symbols_ttl"`
	TokenFile  string `json:"token_file,omitempty" yaml:"token_file,omitempty"`

	// Token comes from the environment only; it is never written to disk
	// with the config.
	Token string `json:"-" yaml:"-"`
}

// AccountConfig identifies the account whose private channel is followed.
type AccountConfig struct {
	ID       string `json:"id" yaml:"id"`
	Currency string `json:"currency" yaml:"currency"`
}

// PollingConfig sets the refresh periods used when push events are not
// available, e.g. "2m".
type PollingConfig struct {
	Orders  string `json:"orders" yaml:"orders"`
	Account string `json:"account" yaml:"account"`
}

// OandaConfig enables the OANDA pricing feed as the tick source.
type OandaConfig struct {
	Env         string   `json:"env" yaml:"env"` // practice or live
	AccountID   string   `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	Instruments []string `json:"instruments,omitempty" yaml:"instruments,omitempty"`
	Token       string   `json:"-" yaml:"-"`
}

// Enabled reports whether OANDA credentials are present.
func (o OandaConfig) Enabled() bool {
	return o.Token != "" && o.AccountID != ""
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ServeConfig is the local JSON API.
type ServeConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // text or json
}

// Env is the environment overlay. Set variables win over the file.
type Env struct {
	BaseURL        string `envconfig:"FXDESK_BASE_URL"`
	StreamURL      string `envconfig:"FXDESK_STREAM_URL"`
	Token          string `envconfig:"FXDESK_TOKEN"`
	AccountID      string `envconfig:"FXDESK_ACCOUNT_ID"`
	LogLevel       string `envconfig:"FXDESK_LOG_LEVEL"`
	LogFormat      string `envconfig:"FXDESK_LOG_FORMAT"`
	OandaToken     string `envconfig:"OANDA_TOKEN"`
	OandaAccountID string `envconfig:"OANDA_ACCOUNT_ID"`
	OandaEnv       string `envconfig:"OANDA_ENV"`
}

// Load reads path (or starts from Default when path is empty), applies the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (JSON or YAML)
func LoadFromFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readFile starts from Default so a partial file keeps the other defaults.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

// ApplyEnv overlays the FXDESK_* and OANDA_* variables.
func (c *Config) ApplyEnv() error {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("process env config: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Backend.BaseURL, env.BaseURL)
	set(&c.Backend.StreamURL, env.StreamURL)
	set(&c.Backend.Token, env.Token)
	set(&c.Account.ID, env.AccountID)
	set(&c.Log.Level, env.LogLevel)
	set(&c.Log.Format, env.LogFormat)
	set(&c.OANDA.Token, env.OandaToken)
	set(&c.OANDA.AccountID, env.OandaAccountID)
	set(&c.OANDA.Env, env.OandaEnv)
	return nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := checkURL("backend.base_url", c.Backend.BaseURL, "http", "https"); err != nil {
		return err
	}
	if c.Backend.StreamURL != "" {
		if err := checkURL("backend.stream_url", c.Backend.StreamURL, "ws", "wss"); err != nil {
			return err
		}
	}
	if c.Backend.Retries < 0 {
		return fmt.Errorf("backend.retries must not be negative")
	}
	for name, v := range map[string]string{
		"backend.timeout":     c.Backend.Timeout,
		"backend.symbols_ttl": c.Backend.SymbolsTTL,
		"polling.orders":      c.Polling.Orders,
		"polling.account":     c.Polling.Account,
	} {
		if _, err := parsePositive(name, v); err != nil {
			return err
		}
	}
	if d, _ := c.OrdersEvery(); d < time.Second {
		return fmt.Errorf("polling.orders must be at least 1s")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.OrdersFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal orders_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}

	if c.OANDA.Token != "" || c.OANDA.AccountID != "" {
		switch strings.ToLower(c.OANDA.Env) {
		case "", "practice", "demo", "live", "trade":
		default:
			return fmt.Errorf("oanda.env must be 'practice' or 'live'")
		}
	}
	return nil
}

func checkURL(name, raw string, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s: invalid url %q", name, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme must be one of %v", name, schemes)
}

func parsePositive(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}

func (c *Config) Timeout() (time.Duration, error) {
	return parsePositive("backend.timeout", c.Backend.Timeout)
}

func (c *Config) SymbolsTTL() (time.Duration, error) {
	return parsePositive("backend.symbols_ttl", c.Backend.SymbolsTTL)
}

func (c *Config) OrdersEvery() (time.Duration, error) {
	return parsePositive("polling.orders", c.Polling.Orders)
}

func (c *Config) AccountEvery() (time.Duration, error) {
	return parsePositive("polling.account", c.Polling.Account)
}

// TokenPath is where the session token is kept: backend.token_file, or
// fxdesk/token under the user config directory.
func (c *Config) TokenPath() string {
	if c.Backend.TokenFile != "" {
		return c.Backend.TokenFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".fxdesk", "token")
	}
	return filepath.Join(dir, "fxdesk", "token")
}

// SetupLogger applies the log level and format to the global logger.
func (l LogConfig) SetupLogger() error {
	level, err := logger.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if l.Format == "json" {
		logger.SetFormatter(&logger.JSONFormatter{})
	} else {
		logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:    "http://localhost:8000/api",
			StreamURL:  "ws://localhost:6001/ws",
			Timeout:    "15s",
			Retries:    2,
			SymbolsTTL: "10m",
		},
		Account: AccountConfig{
			Currency: "USD",
		},
		Polling: PollingConfig{
			Orders:  "2m",
			Account: "1m",
		},
		OANDA: OandaConfig{
			Env:         "practice",
			Instruments: []string{"EUR_USD", "GBP_USD", "USD_JPY"},
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8686",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
