// Package config loads runtime settings from the environment, an optional
// .env file and an optional CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/raushankrgupta/price-tracker/tracker"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config holds every knob of the service
type Config struct {
	SweepInterval          time.Duration
	MaintenanceInterval    time.Duration
	StartupDelay           time.Duration
	Workers                int
	RequestTimeout         time.Duration
	NotifyTimeout          time.Duration
	SignificantDropPercent float64
	HistoryCap             int
	AlertCap               int
	AlertKeep              int
	HistoryRetention       time.Duration
	CompletedRetention     time.Duration
	FailureWarnThreshold   int

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string

	SendGridAPIKey   string
	EmailFromName    string
	EmailFromAddress string
	TelegramBotToken string

	ChromeEnabled    bool
	ChromePath       string
	SeleniumURL      string
	ChromeDriverPath string
	SeleniumPort     int
	HostRatePerSec   float64
	HostBurst        int

	GeminiAPIKey string
	GeminiModel  string

	AWSRegion     string
	ArchiveBucket string

	Port string
}

var defaults = map[string]any{
	"SWEEP_INTERVAL":           "1h",
	"MAINTENANCE_INTERVAL":     "24h",
	"STARTUP_DELAY":            "5s",
	"WORKERS":                  5,
	"REQUEST_TIMEOUT":          "45s",
	"NOTIFY_TIMEOUT":           "15s",
	"SIGNIFICANT_DROP_PERCENT": -10.0,
	"HISTORY_CAP":              100,
	"ALERT_CAP":                50,
	"ALERT_KEEP":               20,
	"HISTORY_RETENTION":        "720h",
	"COMPLETED_RETENTION":      "2160h",
	"FAILURE_WARN_THRESHOLD":   5,
	"STORE_DRIVER":             DriverMongo,
	"MONGO_URI":                "mongodb://localhost:27017/",
	"MONGO_DATABASE":           "price_tracker",
	"SQLITE_PATH":              "price_tracker.db",
	"SENDGRID_API_KEY":         "",
	"EMAIL_FROM_NAME":          "Price Tracker",
	"EMAIL_FROM_ADDRESS":       "no-reply@price-tracker.local",
	"TELEGRAM_BOT_TOKEN":       "",
	"CHROME_ENABLED":           true,
	"CHROME_PATH":              "",
	"SELENIUM_URL":             "",
	"CHROMEDRIVER_PATH":        "",
	"SELENIUM_PORT":            4444,
	"HOST_RATE_PER_SECOND":     0.5,
	"HOST_BURST":               1,
	"GEMINI_API_KEY":           "",
	"GEMINI_MODEL":             "gemini-1.5-flash",
	"AWS_REGION":               "ap-south-1",
	"ARCHIVE_BUCKET":           "",
	"PORT":                     "8080",
}

// LoadConfig loads environment variables from .env file, then CONFIG_FILE if set
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	v := newViper()
	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType(strings.TrimPrefix(filepath.Ext(file), "."))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return fromViper(v)
}

// LoadFromReader reads settings of the given format ("yaml", "json", "toml")
// on top of the defaults and the environment.
func LoadFromReader(r io.Reader, format string) (*Config, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return fromViper(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		SweepInterval:          v.GetDuration("SWEEP_INTERVAL"),
		MaintenanceInterval:    v.GetDuration("MAINTENANCE_INTERVAL"),
		StartupDelay:           v.GetDuration("STARTUP_DELAY"),
		Workers:                v.GetInt("WORKERS"),
		RequestTimeout:         v.GetDuration("REQUEST_TIMEOUT"),
		NotifyTimeout:          v.GetDuration("NOTIFY_TIMEOUT"),
		SignificantDropPercent: v.GetFloat64("SIGNIFICANT_DROP_PERCENT"),
		HistoryCap:             v.GetInt("HISTORY_CAP"),
		AlertCap:               v.GetInt("ALERT_CAP"),
		AlertKeep:              v.GetInt("ALERT_KEEP"),
		HistoryRetention:       v.GetDuration("HISTORY_RETENTION"),
		CompletedRetention:     v.GetDuration("COMPLETED_RETENTION"),
		FailureWarnThreshold:   v.GetInt("FAILURE_WARN_THRESHOLD"),
		StoreDriver:            strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:               v.GetString("MONGO_URI"),
		MongoDatabase:          v.GetString("MONGO_DATABASE"),
		SQLitePath:             v.GetString("SQLITE_PATH"),
		SendGridAPIKey:         v.GetString("SENDGRID_API_KEY"),
		EmailFromName:          v.GetString("EMAIL_FROM_NAME"),
		EmailFromAddress:       v.GetString("EMAIL_FROM_ADDRESS"),
		TelegramBotToken:       v.GetString("TELEGRAM_BOT_TOKEN"),
		ChromeEnabled:          v.GetBool("CHROME_ENABLED"),
		ChromePath:             v.GetString("CHROME_PATH"),
		SeleniumURL:            v.GetString("SELENIUM_URL"),
		ChromeDriverPath:       v.GetString("CHROMEDRIVER_PATH"),
		SeleniumPort:           v.GetInt("SELENIUM_PORT"),
		HostRatePerSec:         v.GetFloat64("HOST_RATE_PER_SECOND"),
		HostBurst:              v.GetInt("HOST_BURST"),
		GeminiAPIKey:           v.GetString("GEMINI_API_KEY"),
		GeminiModel:            v.GetString("GEMINI_MODEL"),
		AWSRegion:              v.GetString("AWS_REGION"),
		ArchiveBucket:          v.GetString("ARCHIVE_BUCKET"),
		Port:                   v.GetString("PORT"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, ok bool) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	positive("SWEEP_INTERVAL", c.SweepInterval > 0)
	positive("MAINTENANCE_INTERVAL", c.MaintenanceInterval > 0)
	positive("WORKERS", c.Workers > 0)
	positive("REQUEST_TIMEOUT", c.RequestTimeout > 0)
	positive("NOTIFY_TIMEOUT", c.NotifyTimeout > 0)
	positive("HISTORY_CAP", c.HistoryCap > 0)
	positive("ALERT_CAP", c.AlertCap > 0)
	positive("ALERT_KEEP", c.AlertKeep > 0)
	positive("HISTORY_RETENTION", c.HistoryRetention > 0)
	positive("COMPLETED_RETENTION", c.CompletedRetention > 0)
	positive("FAILURE_WARN_THRESHOLD", c.FailureWarnThreshold > 0)

	if c.StartupDelay < 0 {
		errs = append(errs, errors.New("STARTUP_DELAY must not be negative"))
	}
	if c.SignificantDropPercent >= 0 {
		errs = append(errs, errors.New("SIGNIFICANT_DROP_PERCENT must be negative"))
	}
	if c.AlertKeep > c.AlertCap {
		errs = append(errs, fmt.Errorf("ALERT_KEEP (%d) exceeds ALERT_CAP (%d)", c.AlertKeep, c.AlertCap))
	}
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	return errors.Join(errs...)
}

// TrackerSettings maps the engine knobs onto tracker.Settings
func (c *Config) TrackerSettings() tracker.Settings {
	return tracker.Settings{
		SweepInterval:        c.SweepInterval,
		MaintenanceInterval:  c.MaintenanceInterval,
		StartupDelay:         c.StartupDelay,
		Workers:              c.Workers,
		RequestTimeout:       c.RequestTimeout,
		NotifyTimeout:        c.NotifyTimeout,
		DropThreshold:        decimal.NewFromFloat(c.SignificantDropPercent),
		HistoryCap:           c.HistoryCap,
		AlertCap:             c.AlertCap,
		AlertKeep:            c.AlertKeep,
		HistoryRetention:     c.HistoryRetention,
		CompletedRetention:   c.CompletedRetention,
		FailureWarnThreshold: c.FailureWarnThreshold,
	}
}
