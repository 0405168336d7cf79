package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/capitolstream/crecfetch/internal/extract"
	"github.com/capitolstream/crecfetch/internal/govinfo"
	"github.com/capitolstream/crecfetch/internal/output"
)

// App runs one fetch: list packages in range, walk their granules, extract
// speeches, append records.
type App struct {
	cfg    Config
	client *govinfo.Client
}

// New validates cfg and builds the App. Configuration errors are fatal and
// reported here, before any network call.
func New(cfg Config) (*App, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "data"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crecfetch/1.0 (+https://github.com/capitolstream/crecfetch)"
	}
	client := &govinfo.Client{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		HTTPClient: newAPIHTTPClient(),
		UserAgent:  cfg.UserAgent,
		PageSize:   cfg.PageSize,
		RateDelay:  cfg.RateDelay,
	}
	return &App{cfg: cfg, client: client}, nil
}

// Run executes the fetch sequentially: one granule is fetched, extracted,
// and written before the next fetch begins. A fetch or parse failure for one
// granule is logged and contributes zero records; the batch continues.
func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	stem := fmt.Sprintf("speeches_%s_to_%s", a.cfg.StartDate, a.cfg.EndDate)
	jsonlPath := filepath.Join(a.cfg.OutDir, stem+".jsonl")

	out, err := output.NewJSONLWriter(jsonlPath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	var packages, granules, speeches int
	log.Info().
		Str("start", a.cfg.StartDate).
		Str("end", a.cfg.EndDate).
		Msg("fetching CREC packages")

	err = a.client.EachPackage(ctx, a.cfg.StartDate, a.cfg.EndDate, func(p govinfo.Package) error {
		if p.PackageID == "" {
			return nil
		}
		packages++
		log.Info().
			Int("n", packages).
			Str("package", p.PackageID).
			Str("date", p.DateIssued).
			Msg("package")

		seen := 0
		err := a.client.EachGranule(ctx, p.PackageID, func(g govinfo.Granule) error {
			if g.GranuleID == "" {
				return nil
			}
			seen++
			if a.cfg.MaxGranules > 0 && seen > a.cfg.MaxGranules {
				return govinfo.Stop
			}

			recs, err := a.granuleRecords(ctx, p, g)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Str("granule", g.GranuleID).Msg("granule skipped")
				return nil
			}
			for _, rec := range recs {
				if err := out.Append(rec); err != nil {
					return err
				}
			}
			speeches += len(recs)
			granules++
			if granules%25 == 0 {
				log.Info().Int("granules", granules).Int("speeches", speeches).Msg("progress")
			}
			return nil
		})
		if err != nil {
			return err
		}
		if a.cfg.MaxPackages > 0 && packages >= a.cfg.MaxPackages {
			return govinfo.Stop
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", jsonlPath, err)
	}

	log.Info().
		Int("packages", packages).
		Int("granules", granules).
		Int("speeches", speeches).
		Str("jsonl", jsonlPath).
		Msg("done")

	if a.cfg.WriteCSV {
		csvPath := filepath.Join(a.cfg.OutDir, stem+".csv")
		rows, err := output.ToCSV(jsonlPath, csvPath)
		if err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		log.Info().Str("csv", csvPath).Int("rows", rows).Msg("wrote CSV")
	}
	return nil
}

// granuleRecords fetches one granule document and extracts its speeches.
// Errors here are per-granule: the caller recovers them and continues.
func (a *App) granuleRecords(ctx context.Context, p govinfo.Package, g govinfo.Granule) ([]output.Record, error) {
	text, sum, err := a.client.DocumentText(ctx, p.PackageID, g.GranuleID)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	title := strings.TrimSpace(sum.Title)
	if title == "" {
		title = strings.TrimSpace(g.Title)
	}
	page := govinfo.PageFromGranuleID(g.GranuleID)

	speeches := extract.FromMarkup([]byte(text))
	recs := make([]output.Record, 0, len(speeches))
	for _, sp := range speeches {
		recs = append(recs, output.Record{
			Date:       p.DateIssued,
			Chamber:    strings.ToUpper(g.GranuleClass),
			Speaker:    sp.Speaker,
			BioguideID: sp.BioguideID,
			Title:      title,
			Page:       page,
			PackageID:  p.PackageID,
			GranuleID:  g.GranuleID,
			Text:       sp.Text,
			Method:     sp.Method,
		})
	}
	return recs, nil
}
