package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/capitolstream/crecfetch/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// .env is optional; the real environment wins over file values.
	_ = godotenv.Load()

	var (
		start       string
		end         string
		outDir      string
		writeCSV    bool
		maxPackages int
		maxGranules int
		rateDelay   time.Duration
		apiKey      string
		baseURL     string
		userAgent   string
		pageSize    int
		configPath  string
		verbose     bool
	)

	flag.StringVar(&start, "start", os.Getenv("CREC_START"), "Start date YYYY-MM-DD")
	flag.StringVar(&end, "end", os.Getenv("CREC_END"), "End date YYYY-MM-DD (inclusive)")
	flag.StringVar(&outDir, "out", "", "Output directory (default: data)")
	flag.BoolVar(&writeCSV, "csv", false, "Also write a CSV next to the JSONL")
	flag.IntVar(&maxPackages, "max.packages", 0, "Limit number of packages, 0 = no limit (testing)")
	flag.IntVar(&maxGranules, "max.granules", 0, "Limit granules per package, 0 = no limit (testing)")
	flag.DurationVar(&rateDelay, "rate.delay", 0, "Delay between successive API calls (default 200ms)")
	flag.StringVar(&apiKey, "api.key", os.Getenv("GOVINFO_API_KEY"), "GovInfo API key")
	flag.StringVar(&baseURL, "base.url", os.Getenv("GOVINFO_BASE_URL"), "GovInfo API base URL override")
	flag.StringVar(&userAgent, "api.ua", "", "Custom User-Agent for API requests")
	flag.IntVar(&pageSize, "page.size", 0, "Listing page size, capped at the API maximum of 100")
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	cfg := app.Config{
		StartDate:   start,
		EndDate:     end,
		OutDir:      outDir,
		WriteCSV:    writeCSV,
		APIKey:      apiKey,
		BaseURL:     baseURL,
		UserAgent:   userAgent,
		PageSize:    pageSize,
		MaxPackages: maxPackages,
		MaxGranules: maxGranules,
		RateDelay:   rateDelay,
		Verbose:     verbose,
	}

	// Precedence: flags > environment > config file > defaults.
	app.ApplyEnvToConfig(&cfg)
	if configPath != "" {
		fc, err := app.LoadFileConfig(configPath)
		if err != nil {
			log.Error().Err(err).Msg("load config file")
			os.Exit(2)
		}
		if err := app.MergeFileConfig(&cfg, fc); err != nil {
			log.Error().Err(err).Msg("merge config file")
			os.Exit(2)
		}
	}
	if cfg.RateDelay == 0 {
		cfg.RateDelay = 200 * time.Millisecond
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(2)
	}
}

func run(cfg app.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	return a.Run(context.Background())
}
