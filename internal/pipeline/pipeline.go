// Package pipeline runs the provider ETL: every configured layout of a
// workbook is extracted, normalized, geocoded, fingerprinted and reconciled
// against the store, one transaction per layout.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-etl/internal/layout"
	"github.com/sells-group/childcare-etl/internal/metrics"
	"github.com/sells-group/childcare-etl/internal/model"
	"github.com/sells-group/childcare-etl/internal/normalize"
	"github.com/sells-group/childcare-etl/internal/reconcile"
	"github.com/sells-group/childcare-etl/internal/store"
	"github.com/sells-group/childcare-etl/internal/transform"
	"github.com/sells-group/childcare-etl/pkg/geocode"
)

// Source yields the raw rows of a named layout. *fetcher.Workbook
// implements it.
type Source interface {
	StreamSheet(ctx context.Context, name string) (<-chan model.RawRow, <-chan error)
}

// Options configures a Pipeline.
type Options struct {
	// Layouts are processed in this order.
	Layouts     []string
	Presence    normalize.Presence
	Fingerprint model.FingerprintOptions
	// CacheGeocodes routes lookups through the store's geocode cache.
	CacheGeocodes bool
	// Clock supplies etl_timestamp. Defaults to time.Now.
	Clock func() time.Time
}

// Pipeline orchestrates one ETL run.
type Pipeline struct {
	store     store.Store
	resolver  geocode.Resolver
	tables    *layout.Tables
	metrics   *metrics.Metrics
	opts      Options
	extractor *transform.Extractor
	builder   *transform.Builder
}

// New creates a new Pipeline with all dependencies.
func New(st store.Store, resolver geocode.Resolver, tables *layout.Tables, m *metrics.Metrics, opts Options) *Pipeline {
	var builderOpts []transform.BuilderOption
	if opts.Clock != nil {
		builderOpts = append(builderOpts, transform.WithClock(opts.Clock))
	}
	return &Pipeline{
		store:     st,
		resolver:  resolver,
		tables:    tables,
		metrics:   m,
		opts:      opts,
		extractor: transform.NewExtractor(opts.Presence),
		builder:   transform.NewBuilder(opts.Presence, builderOpts...),
	}
}

// Summary reports what a run did.
type Summary struct {
	RunID   string
	Layouts []LayoutSummary
}

// LayoutSummary counts row outcomes for one layout.
type LayoutSummary struct {
	Layout    string
	Rows      int
	Skipped   int
	Inserted  int
	Updated   int
	Unchanged int
	Geocoded  int
	Duration  time.Duration
}

func (s *LayoutSummary) add(o model.Outcome) {
	s.Rows++
	switch o {
	case model.OutcomeSkipped:
		s.Skipped++
	case model.OutcomeInserted:
		s.Inserted++
	case model.OutcomeUpdated:
		s.Updated++
	case model.OutcomeUnchanged:
		s.Unchanged++
	}
}

// Run processes every configured layout of src. Layouts committed before a
// failure stay committed; the failing layout is rolled back. The returned
// summary covers the layouts that were committed.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Summary, error) {
	summary := &Summary{RunID: uuid.New().String()}
	log := zap.L().With(zap.String("run_id", summary.RunID))

	layouts := make([]*layout.Layout, 0, len(p.opts.Layouts))
	for _, name := range p.opts.Layouts {
		l, err := p.tables.Get(name)
		if err != nil {
			return summary, eris.Wrap(err, "pipeline: resolve layouts")
		}
		layouts = append(layouts, l)
	}

	log.Info("pipeline: starting run",
		zap.Strings("layouts", p.opts.Layouts),
		zap.String("presence", p.opts.Presence.String()),
		zap.Bool("geocode_cache", p.opts.CacheGeocodes),
	)

	for _, l := range layouts {
		ls, err := p.runLayout(ctx, src, l, log.With(zap.String("layout", l.Name)))
		if err != nil {
			return summary, eris.Wrapf(err, "pipeline: layout %s", l.Name)
		}
		summary.Layouts = append(summary.Layouts, ls)
	}

	if p.metrics != nil {
		p.metrics.MarkSuccess(time.Now())
	}
	log.Info("pipeline: run complete", zap.Int("layouts", len(summary.Layouts)))
	return summary, nil
}

func (p *Pipeline) runLayout(ctx context.Context, src Source, l *layout.Layout, log *zap.Logger) (ls LayoutSummary, err error) {
	ls.Layout = l.Name
	start := time.Now()

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return ls, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Error("pipeline: rollback failed", zap.Error(rbErr))
		}
		log.Warn("pipeline: layout rolled back", zap.Int("rows_discarded", ls.Rows), zap.Error(err))
	}()

	resolver := p.resolver
	if p.opts.CacheGeocodes {
		resolver = geocode.NewCachedResolver(p.resolver, tx)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rowCh, errCh := src.StreamSheet(streamCtx, l.Name)

	index := 0
	for row := range rowCh {
		index++
		outcome, geocoded, rowErr := p.processRow(ctx, tx, resolver, l, row, log.With(zap.Int("row", index)))
		if rowErr != nil {
			return ls, eris.Wrapf(rowErr, "row %d", index)
		}
		ls.add(outcome)
		if geocoded {
			ls.Geocoded++
		}
		if p.metrics != nil {
			p.metrics.ObserveRow(l.Name, outcome)
		}
	}
	if err := <-errCh; err != nil {
		return ls, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ls, err
	}

	ls.Duration = time.Since(start)
	if p.metrics != nil {
		p.metrics.ObserveLayout(l.Name, start)
	}
	log.Info("pipeline: layout committed",
		zap.Int("rows", ls.Rows),
		zap.Int("inserted", ls.Inserted),
		zap.Int("updated", ls.Updated),
		zap.Int("unchanged", ls.Unchanged),
		zap.Int("skipped", ls.Skipped),
		zap.Int("geocoded", ls.Geocoded),
		zap.Int64("duration_ms", ls.Duration.Milliseconds()),
	)
	return ls, nil
}

// processRow walks one raw row through the row states. The bool reports
// whether a geocode lookup resolved a location.
func (p *Pipeline) processRow(ctx context.Context, tx store.Tx, resolver geocode.Resolver, l *layout.Layout, row model.RawRow, log *zap.Logger) (model.Outcome, bool, error) {
	state := func(s model.RowState) {
		log.Debug("pipeline: row state", zap.String("state", string(s)))
	}

	if row.Empty() {
		state(model.RowStateSkipped)
		return model.OutcomeSkipped, false, nil
	}

	ex := p.extractor.Extract(l, row)
	state(model.RowStateExtracted)

	ages := normalize.ClassifyAges(ex.Ages)
	state(model.RowStateClassified)

	var loc geocode.Location
	if ex.Address != "" {
		var err error
		loc, err = resolver.Resolve(ctx, ex.Address)
		if err != nil {
			return "", false, eris.Wrap(err, "geocode")
		}
		if p.metrics != nil {
			p.metrics.ObserveGeocode(l.Name, !loc.Empty())
		}
	}
	state(model.RowStateLocated)

	prov := p.builder.Build(ex, ages, loc, l.Name)
	state(model.RowStateBuilt)

	prov.RecordHash = model.Fingerprint(prov, p.opts.Fingerprint)
	state(model.RowStateFingerprinted)

	res, err := reconcile.Reconcile(ctx, tx, prov)
	if err != nil {
		return "", false, err
	}
	log.Debug("pipeline: row state",
		zap.String("state", string(model.RowStateReconciled)),
		zap.String("outcome", string(res.Outcome)),
		zap.Int64("id", res.ID),
	)
	return res.Outcome, !loc.Empty(), nil
}
