package tracker

import (
	"time"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/shopspring/decimal"
)

// Settings are the engine knobs. Zero values are replaced by defaults in withDefaults.
type Settings struct {
	SweepInterval        time.Duration
	MaintenanceInterval  time.Duration
	StartupDelay         time.Duration
	Workers              int
	RequestTimeout       time.Duration
	NotifyTimeout        time.Duration
	DropThreshold        decimal.Decimal // percent, negative
	HistoryCap           int
	AlertCap             int
	AlertKeep            int
	HistoryRetention     time.Duration
	CompletedRetention   time.Duration
	FailureWarnThreshold int
}

// DefaultSettings mirrors the production schedule
func DefaultSettings() Settings {
	return Settings{
		SweepInterval:        time.Hour,
		MaintenanceInterval:  24 * time.Hour,
		StartupDelay:         5 * time.Second,
		Workers:              5,
		RequestTimeout:       45 * time.Second,
		NotifyTimeout:        15 * time.Second,
		DropThreshold:        decimal.NewFromInt(-10),
		HistoryCap:           models.DefaultHistoryCap,
		AlertCap:             models.DefaultAlertCap,
		AlertKeep:            models.DefaultAlertKeep,
		HistoryRetention:     30 * 24 * time.Hour,
		CompletedRetention:   90 * 24 * time.Hour,
		FailureWarnThreshold: 5,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.SweepInterval <= 0 {
		s.SweepInterval = d.SweepInterval
	}
	if s.MaintenanceInterval <= 0 {
		s.MaintenanceInterval = d.MaintenanceInterval
	}
	if s.StartupDelay < 0 {
		s.StartupDelay = d.StartupDelay
	}
	if s.Workers <= 0 {
		s.Workers = d.Workers
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = d.RequestTimeout
	}
	if s.NotifyTimeout <= 0 {
		s.NotifyTimeout = d.NotifyTimeout
	}
	if s.DropThreshold.IsZero() {
		s.DropThreshold = d.DropThreshold
	}
	if s.HistoryCap <= 0 {
		s.HistoryCap = d.HistoryCap
	}
	if s.AlertCap <= 0 {
		s.AlertCap = d.AlertCap
	}
	if s.AlertKeep <= 0 {
		s.AlertKeep = d.AlertKeep
	}
	if s.HistoryRetention <= 0 {
		s.HistoryRetention = d.HistoryRetention
	}
	if s.CompletedRetention <= 0 {
		s.CompletedRetention = d.CompletedRetention
	}
	if s.FailureWarnThreshold <= 0 {
		s.FailureWarnThreshold = d.FailureWarnThreshold
	}
	return s
}
