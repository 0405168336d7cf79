package app

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the YAML config-file schema. Nested sections mirror the
// flag namespace.
type FileConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Out   string `yaml:"out"`
	CSV   bool   `yaml:"csv"`

	API struct {
		Key       string `yaml:"key"`
		BaseURL   string `yaml:"baseURL"`
		UserAgent string `yaml:"userAgent"`
	} `yaml:"api"`

	Max struct {
		Packages int `yaml:"packages"`
		Granules int `yaml:"granules"`
	} `yaml:"max"`

	Rate struct {
		// Delay is a Go duration string, e.g. "200ms" or "1s".
		Delay string `yaml:"delay"`
	} `yaml:"rate"`

	PageSize int  `yaml:"pageSize"`
	Verbose  bool `yaml:"verbose"`
}

// LoadFileConfig reads and parses a YAML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// MergeFileConfig fills cfg fields that are still zero from fc. Values
// already set by flags or environment take precedence.
func MergeFileConfig(cfg *Config, fc FileConfig) error {
	if cfg.StartDate == "" {
		cfg.StartDate = fc.Start
	}
	if cfg.EndDate == "" {
		cfg.EndDate = fc.End
	}
	if cfg.OutDir == "" {
		cfg.OutDir = fc.Out
	}
	if !cfg.WriteCSV {
		cfg.WriteCSV = fc.CSV
	}
	if cfg.APIKey == "" {
		cfg.APIKey = fc.API.Key
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fc.API.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = fc.API.UserAgent
	}
	if cfg.MaxPackages == 0 {
		cfg.MaxPackages = fc.Max.Packages
	}
	if cfg.MaxGranules == 0 {
		cfg.MaxGranules = fc.Max.Granules
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = fc.PageSize
	}
	if !cfg.Verbose {
		cfg.Verbose = fc.Verbose
	}
	if cfg.RateDelay == 0 && fc.Rate.Delay != "" {
		d, err := time.ParseDuration(fc.Rate.Delay)
		if err != nil {
			return fmt.Errorf("rate.delay: %w", err)
		}
		cfg.RateDelay = d
	}
	return nil
}
