package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds runtime configuration for one fetch run.
type Config struct {
	// Date range, inclusive, YYYY-MM-DD.
	StartDate string
	EndDate   string

	// Output
	OutDir   string
	WriteCSV bool

	// API
	APIKey    string
	BaseURL   string
	UserAgent string
	PageSize  int

	// Bounds for test runs; zero means unlimited.
	MaxPackages int
	MaxGranules int

	// RateDelay is the fixed pause between successive API calls.
	RateDelay time.Duration

	Verbose bool
}

const dateLayout = "2006-01-02"

// validate surfaces fatal configuration errors before any fetching begins.
func (cfg *Config) validate() error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return errors.New("missing API key: set GOVINFO_API_KEY or pass -api.key")
	}
	start, err := time.Parse(dateLayout, cfg.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: expected YYYY-MM-DD", cfg.StartDate)
	}
	end, err := time.Parse(dateLayout, cfg.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: expected YYYY-MM-DD", cfg.EndDate)
	}
	if end.Before(start) {
		return fmt.Errorf("end date %s precedes start date %s", cfg.EndDate, cfg.StartDate)
	}
	if cfg.RateDelay < 0 {
		return errors.New("rate delay must not be negative")
	}
	return nil
}
