// Package config loads service settings from a JSON file with PDFSTAMP_
// environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix starts every environment override, e.g. PDFSTAMP_SERVER_ADDR.
const EnvPrefix = "PDFSTAMP_"

// Duration is a time.Duration that reads "30s" style strings from JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if nerr := json.Unmarshal(b, &n); nerr != nil {
			return fmt.Errorf("duration must be a string like \"30s\": %w", err)
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Server         Server  `json:"server"`
	Auth           Auth    `json:"auth"`
	Log            Log     `json:"log"`
	Ads            Ads     `json:"ads"`
	Cache          Cache   `json:"cache"`
	Ledger         Ledger  `json:"ledger"`
	Storage        Storage `json:"storage"`
	Layout         Layout  `json:"layout"`
	ValidateOutput bool    `json:"validate"`
}

type Server struct {
	Addr          string   `json:"addr"`
	ReadTimeout   Duration `json:"read_timeout"`
	WriteTimeout  Duration `json:"write_timeout"`
	ShutdownGrace Duration `json:"shutdown_grace"`
	MaxBodyBytes  int64    `json:"max_body_bytes"`
}

// Auth enables RS256 bearer tokens checked against a PEM public key.
type Auth struct {
	Enabled       bool   `json:"enabled"`
	PublicKeyPath string `json:"public_key_path"`
	Audience      string `json:"audience"`
	Issuer        string `json:"issuer"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"` // text | json
}

type Ads struct {
	URL     string   `json:"url"`
	BaseURL string   `json:"base_url"`
	Timeout Duration `json:"timeout"`
	// Script is a JavaScript eligibility predicate; empty keeps every ad.
	Script string `json:"script"`
}

// Cache configures the Redis ad cache. An empty Host disables it.
type Cache struct {
	Host string   `json:"host"`
	Port int      `json:"port"`
	PW   string   `json:"pw"`
	DB   int      `json:"db"`
	TTL  Duration `json:"ttl"`
}

func (c Cache) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Ledger configures the job ledger. Type is pgsql, mysql or empty for none.
type Ledger struct {
	Type string `json:"type"`
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	PW   string `json:"pw"`
	DB   string `json:"db"`
	DSN  string `json:"dsn"`
}

// Layout tunes markup rendering for stamps and prepended pages. Zero values
// keep the renderer defaults.
type Layout struct {
	FontSize   float64 `json:"font_size"`
	LineHeight float64 `json:"line_height"`
}

// Storage confines file-path requests to Root.
type Storage struct {
	Root string `json:"root"`
}

// Default returns settings that run the server without Redis, a database or
// authentication.
func Default() Config {
	return Config{
		Server: Server{
			Addr:          ":8080",
			ReadTimeout:   Duration(30 * time.Second),
			WriteTimeout:  Duration(2 * time.Minute),
			ShutdownGrace: Duration(15 * time.Second),
			MaxBodyBytes:  64 << 20,
		},
		Log: Log{Level: "info", Format: "text"},
		Ads: Ads{
			BaseURL: "https://hwmaint.genome.cshlp.org/adsystem/",
			Timeout: Duration(10 * time.Second),
		},
		Cache:   Cache{Port: 6379, TTL: Duration(5 * time.Minute)},
		Storage: Storage{Root: "."},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Ledger.Type {
	case "", "pgsql", "mysql":
	default:
		return fmt.Errorf("ledger.type: unknown backend %q", c.Ledger.Type)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.Auth.Enabled && c.Auth.PublicKeyPath == "" {
		return fmt.Errorf("auth.public_key_path is required when auth is enabled")
	}
	if c.Layout.FontSize < 0 || c.Layout.LineHeight < 0 {
		return fmt.Errorf("layout: font_size and line_height must not be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"SERVER_ADDR":          &c.Server.Addr,
		"AUTH_PUBLIC_KEY_PATH": &c.Auth.PublicKeyPath,
		"AUTH_AUDIENCE":        &c.Auth.Audience,
		"AUTH_ISSUER":          &c.Auth.Issuer,
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_FORMAT":           &c.Log.Format,
		"ADS_URL":              &c.Ads.URL,
		"ADS_BASE_URL":         &c.Ads.BaseURL,
		"ADS_SCRIPT":           &c.Ads.Script,
		"CACHE_HOST":           &c.Cache.Host,
		"CACHE_PW":             &c.Cache.PW,
		"LEDGER_TYPE":          &c.Ledger.Type,
		"LEDGER_HOST":          &c.Ledger.Host,
		"LEDGER_USER":          &c.Ledger.User,
		"LEDGER_PW":            &c.Ledger.PW,
		"LEDGER_DB":            &c.Ledger.DB,
		"LEDGER_DSN":           &c.Ledger.DSN,
		"STORAGE_ROOT":         &c.Storage.Root,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	ints := map[string]*int{
		"CACHE_PORT":  &c.Cache.Port,
		"CACHE_DB":    &c.Cache.DB,
		"LEDGER_PORT": &c.Ledger.Port,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	bools := map[string]*bool{
		"AUTH_ENABLED": &c.Auth.Enabled,
		"VALIDATE":     &c.ValidateOutput,
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}
	durations := map[string]*Duration{
		"SERVER_READ_TIMEOUT":   &c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":  &c.Server.WriteTimeout,
		"SERVER_SHUTDOWN_GRACE": &c.Server.ShutdownGrace,
		"ADS_TIMEOUT":           &c.Ads.Timeout,
		"CACHE_TTL":             &c.Cache.TTL,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = Duration(d)
		}
	}
	if v, ok := lookup(EnvPrefix + "SERVER_MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSERVER_MAX_BODY_BYTES: %w", EnvPrefix, err)
		}
		c.Server.MaxBodyBytes = n
	}
	return nil
}
