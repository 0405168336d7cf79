package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GOVINFO_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("GOVINFO_BASE_URL")
	}
	if cfg.StartDate == "" {
		cfg.StartDate = os.Getenv("CREC_START")
	}
	if cfg.EndDate == "" {
		cfg.EndDate = os.Getenv("CREC_END")
	}
	if cfg.OutDir == "" {
		cfg.OutDir = os.Getenv("CREC_OUT_DIR")
	}

	if cfg.MaxPackages == 0 {
		if n, err := strconv.Atoi(os.Getenv("CREC_MAX_PACKAGES")); err == nil && n > 0 {
			cfg.MaxPackages = n
		}
	}
	if cfg.MaxGranules == 0 {
		if n, err := strconv.Atoi(os.Getenv("CREC_MAX_GRANULES")); err == nil && n > 0 {
			cfg.MaxGranules = n
		}
	}
	if cfg.RateDelay == 0 {
		if d, err := time.ParseDuration(os.Getenv("CREC_RATE_DELAY")); err == nil && d > 0 {
			cfg.RateDelay = d
		}
	}

	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
		case "1", "true", "yes", "on":
			*dst = true
		}
	}
	setBool(&cfg.WriteCSV, "CREC_WRITE_CSV")
	setBool(&cfg.Verbose, "VERBOSE")
}
