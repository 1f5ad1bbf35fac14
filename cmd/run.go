package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-etl/internal/config"
	"github.com/sells-group/childcare-etl/internal/fetcher"
	"github.com/sells-group/childcare-etl/internal/layout"
	"github.com/sells-group/childcare-etl/internal/metrics"
	"github.com/sells-group/childcare-etl/internal/model"
	"github.com/sells-group/childcare-etl/internal/normalize"
	"github.com/sells-group/childcare-etl/internal/pipeline"
	"github.com/sells-group/childcare-etl/internal/resilience"
	"github.com/sells-group/childcare-etl/pkg/geocode"
)

// runETL processes the configured workbook end to end.
func runETL(ctx context.Context, c *config.Config, out io.Writer) error {
	if err := c.Validate("run"); err != nil {
		return err
	}
	presence, err := normalize.ParsePresence(c.Normalize.Presence)
	if err != nil {
		return err
	}

	tables, err := layout.Load(c.Normalize.LayoutsFile)
	if err != nil {
		return err
	}

	wb, err := fetcher.OpenWorkbook(c.Input.Path)
	if err != nil {
		return err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	client := geocode.NewClient(c.Geocode.APIKey,
		geocode.WithBaseURL(c.Geocode.BaseURL),
		geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Geocode.TimeoutSecs) * time.Second}),
		geocode.WithRateLimit(c.Geocode.RateLimit),
		geocode.WithRetry(resilience.FromAttempts(c.Geocode.MaxAttempts)),
	)

	m := metrics.New()
	p := pipeline.New(st, client, tables, m, pipeline.Options{
		Layouts:       c.Input.Layouts,
		Presence:      presence,
		Fingerprint:   model.FingerprintOptions{IncludeTimestamp: c.Reconcile.FingerprintTimestamp},
		CacheGeocodes: c.Geocode.Cache,
	})

	summary, runErr := p.Run(ctx, wb)

	if c.Metrics.Textfile != "" {
		if err := m.WriteTextfile(c.Metrics.Textfile); err != nil {
			zap.L().Warn("metrics export failed", zap.Error(err))
		}
	}
	if runErr != nil {
		return eris.Wrap(runErr, "etl")
	}

	zap.L().Info("etl: summary", zap.String("run_id", summary.RunID), zap.Any("layouts", summary.Layouts))
	fmt.Fprintln(out, "ETL process completed successfully.")
	return nil
}
