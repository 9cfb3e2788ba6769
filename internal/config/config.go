package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wizmarket/wizapp/internal/credentials"
)

const (
	appName    = "wizapp"
	configFile = "config.json"
	envPrefix  = "WIZAPP_"

	devKeySecret = "dev_cookie_key"
)

// Duration is a time.Duration that reads and writes as "8s" in JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// bare numbers are milliseconds, as the web product writes them
		var ms int64
		if err := json.Unmarshal(b, &ms); err != nil {
			return fmt.Errorf("duration: %s", b)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	StartURL         string   `json:"start_url"`
	AppVersion       string   `json:"app_version"`
	DataDir          string   `json:"data_dir"`
	LogLevel         string   `json:"log_level"`
	LogFormat        string   `json:"log_format"`
	BootTimeout      Duration `json:"boot_timeout"`
	PurchaseDebounce Duration `json:"purchase_debounce"`
	PendingTimeout   Duration `json:"pending_timeout"`
	DevAddr          string   `json:"dev_addr"`

	// DevCookieKey signs the dev bridge handshake cookie. It lives in the
	// keyring, never in config.json.
	DevCookieKey string `json:"-"`
}

func Default() Config {
	return Config{
		StartURL:         "https://wizmarket.ai/app",
		AppVersion:       "dev",
		LogLevel:         "info",
		LogFormat:        "auto",
		BootTimeout:      Duration(8 * time.Second),
		PurchaseDebounce: Duration(800 * time.Millisecond),
		PendingTimeout:   Duration(15 * time.Minute),
		DevAddr:          "127.0.0.1:0",
	}
}

// Load reads config.json from the user config dir, creating it with
// defaults on first run, then applies .env and WIZAPP_* overrides.
func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(configDir, appName))
}

func LoadFrom(appDir string) (*Config, error) {
	path := filepath.Join(appDir, configFile)
	cfg := Default()
	cfg.DataDir = filepath.Join(appDir, "data")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(appDir, 0700); err != nil {
			return nil, err
		}
		out, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(path, out, 0600); err != nil {
			return nil, err
		}
		slog.Info("generated new config", "path", path)
	default:
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env", "err", err)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse builds a config from the JSON the native host hands over. Fields
// left out keep their defaults.
func Parse(raw string, dataDir string) (*Config, error) {
	cfg := Default()
	cfg.DataDir = dataDir
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if cfg.DataDir == "" {
		return nil, errors.New("config: data dir is required")
	}
	return &cfg, nil
}

// EnsureDevCookieKey loads the dev bridge cookie key from the keyring,
// generating one on first use.
func (c *Config) EnsureDevCookieKey() error {
	if c.DevCookieKey != "" {
		return nil
	}
	key, err := credentials.LoadAppSecret(devKeySecret)
	if err == nil {
		c.DevCookieKey = key
		return nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	c.DevCookieKey = base64.StdEncoding.EncodeToString(secret)
	return credentials.StoreAppSecret(devKeySecret, c.DevCookieKey)
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"START_URL":   &cfg.StartURL,
		"APP_VERSION": &cfg.AppVersion,
		"DATA_DIR":    &cfg.DataDir,
		"LOG_LEVEL":   &cfg.LogLevel,
		"LOG_FORMAT":  &cfg.LogFormat,
		"DEV_ADDR":    &cfg.DevAddr,
	}
	for name, dst := range strs {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"BOOT_TIMEOUT":      &cfg.BootTimeout,
		"PURCHASE_DEBOUNCE": &cfg.PurchaseDebounce,
		"PENDING_TIMEOUT":   &cfg.PendingTimeout,
	}
	for name, dst := range durations {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = Duration(d)
	}

	if v := os.Getenv(envPrefix + "DEV_COOKIE_KEY"); v != "" {
		cfg.DevCookieKey = v
	}
	return nil
}
