package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/childcare-etl/internal/fetcher"
	"github.com/sells-group/childcare-etl/internal/layout"
	"github.com/sells-group/childcare-etl/internal/metrics"
	"github.com/sells-group/childcare-etl/internal/model"
	"github.com/sells-group/childcare-etl/internal/normalize"
	"github.com/sells-group/childcare-etl/internal/resilience"
	"github.com/sells-group/childcare-etl/internal/store"
	"github.com/sells-group/childcare-etl/pkg/geocode"
)

type sheet struct {
	name   string
	header []string
	rows   [][]string
}

func writeWorkbook(t *testing.T, sheets ...sheet) *fetcher.Workbook {
	t.Helper()
	f := xlsx.NewFile()
	for _, s := range sheets {
		sh, err := f.AddSheet(s.name)
		require.NoError(t, err)
		hdr := sh.AddRow()
		for _, h := range s.header {
			hdr.AddCell().SetString(h)
		}
		for _, r := range s.rows {
			row := sh.AddRow()
			for _, v := range r {
				cell := row.AddCell()
				if v != "" {
					cell.SetString(v)
				}
			}
		}
	}
	path := filepath.Join(t.TempDir(), "providers.xlsx")
	require.NoError(t, f.Save(path))

	wb, err := fetcher.OpenWorkbook(path)
	require.NoError(t, err)
	return wb
}

func providerWorkbook(t *testing.T) *fetcher.Workbook {
	t.Helper()
	return writeWorkbook(t,
		sheet{
			name:   "source1",
			header: []string{"Name", "Address", "City", "State", "Zip", "Phone", "Accepts Subsidy", "Infant", "Toddler"},
			rows: [][]string{
				{"", "", "", "", "", "", "", "", ""},
				{"Little Sprouts", "1 Main St", "austin", "Texas", "78701", "(512) 555-1234", "Accepts Subsidy", "Y", "Y"},
			},
		},
		sheet{
			name:   "source2",
			header: []string{"Company", "Address1", "City", "State", "Zip", "Ages Accepted 1"},
			rows: [][]string{
				{"Bright Start", "5 Oak Ave", "Tulsa", "OK", "74103", "School-age (5 years and up)"},
			},
		},
		sheet{
			name:   "source3",
			header: []string{"Operation Name", "Address", "City", "State", "Primary Contact Name"},
			rows: [][]string{
				{"Kid Castle", "9 Elm Rd", "Denver", "CO", "Ann Lee - Owner"},
			},
		},
	)
}

// tomtomServer answers every geocode lookup with a fixed location derived
// from the address and counts requests.
func tomtomServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasPrefix(r.URL.Path, "/search/2/geocode/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		addr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/search/2/geocode/"), ".json")
		var results []map[string]any
		if strings.Contains(addr, "1 Main St") {
			results = append(results, map[string]any{
				"address": map[string]string{
					"countrySubdivision": "TX",
					"municipality":       "Austin",
					"postalCode":         "78701",
				},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(url string) *geocode.Client {
	return geocode.NewClient("test-key",
		geocode.WithBaseURL(url),
		geocode.WithRateLimit(0),
		geocode.WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "etl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestPipeline(t *testing.T, st store.Store, resolver geocode.Resolver, opts Options) (*Pipeline, *metrics.Metrics) {
	t.Helper()
	tables, err := layout.Default()
	require.NoError(t, err)
	if opts.Layouts == nil {
		opts.Layouts = []string{"source1", "source2", "source3"}
	}
	m := metrics.New()
	return New(st, resolver, tables, m, opts), m
}

func TestRun_EndToEnd(t *testing.T) {
	srv, _ := tomtomServer(t)
	st := newTestStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p, _ := newTestPipeline(t, st, newTestClient(srv.URL), Options{Clock: func() time.Time { return now }})

	summary, err := p.Run(context.Background(), providerWorkbook(t))
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Layouts, 3)

	s1 := summary.Layouts[0]
	assert.Equal(t, "source1", s1.Layout)
	assert.Equal(t, 2, s1.Rows)
	assert.Equal(t, 1, s1.Skipped)
	assert.Equal(t, 1, s1.Inserted)
	assert.Equal(t, 1, s1.Geocoded)

	counts, err := st.CountBySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"source1": 1, "source2": 1, "source3": 1}, counts)

	got, err := st.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Little Sprouts", *got.Company)
	assert.Equal(t, "Austin", *got.City, "geocoded locality wins over raw city")
	assert.Equal(t, "TX", *got.State)
	assert.Equal(t, "78701", *got.Zip)
	assert.Equal(t, "5125551234", *got.Phone)
	assert.True(t, got.AcceptsFinancialAid)
	assert.Equal(t, "Infants, Toddlers", *got.AgesServed)
	assert.Equal(t, int64(0), *got.MinAge)
	assert.Equal(t, int64(23), *got.MaxAge)
	assert.Equal(t, "source1", got.SourceFile)
	assert.True(t, got.ETLTimestamp.Equal(now))
	assert.Len(t, got.RecordHash, 64)

	school, err := st.Get(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, school)
	assert.Equal(t, "Tulsa", *school.City, "raw city kept when geocoder has no match")
	assert.Equal(t, "School-age", *school.AgesServed)
	assert.Equal(t, int64(60), *school.MinAge)
	assert.Nil(t, school.MaxAge)

	owner, err := st.Get(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "Owner", *owner.Title)
}

func TestRun_SecondRunIsUnchanged(t *testing.T) {
	srv, _ := tomtomServer(t)
	st := newTestStore(t)
	wb := providerWorkbook(t)
	p, m := newTestPipeline(t, st, newTestClient(srv.URL), Options{})

	_, err := p.Run(context.Background(), wb)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rows.WithLabelValues("source1", "inserted")))

	summary, err := p.Run(context.Background(), wb)
	require.NoError(t, err)
	for _, ls := range summary.Layouts {
		assert.Zero(t, ls.Inserted, ls.Layout)
		assert.Zero(t, ls.Updated, ls.Layout)
	}
	assert.Equal(t, 1, summary.Layouts[0].Unchanged)

	counts, err := st.CountBySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"source1": 1, "source2": 1, "source3": 1}, counts)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Rows.WithLabelValues("source1", "unchanged"))+
		testutil.ToFloat64(m.Rows.WithLabelValues("source2", "unchanged"))+
		testutil.ToFloat64(m.Rows.WithLabelValues("source3", "unchanged")))
}

func TestRun_TimestampFingerprintUpdatesEveryRun(t *testing.T) {
	srv, _ := tomtomServer(t)
	st := newTestStore(t)
	wb := providerWorkbook(t)

	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	p, _ := newTestPipeline(t, st, newTestClient(srv.URL), Options{
		Layouts:     []string{"source1"},
		Fingerprint: model.FingerprintOptions{IncludeTimestamp: true},
		Clock:       clock,
	})

	_, err := p.Run(context.Background(), wb)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), wb)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Layouts[0].Updated)
}

// failingResolver fails lookups whose address contains match.
type failingResolver struct {
	next  geocode.Resolver
	match string
}

func (f failingResolver) Resolve(ctx context.Context, address string) (geocode.Location, error) {
	if strings.Contains(address, f.match) {
		return geocode.Location{}, eris.New("geocode: tomtom request: connection refused")
	}
	return f.next.Resolve(ctx, address)
}

func TestRun_TransportFailureRollsBackLayout(t *testing.T) {
	srv, _ := tomtomServer(t)
	st := newTestStore(t)
	resolver := failingResolver{next: newTestClient(srv.URL), match: "Oak Ave"}
	p, _ := newTestPipeline(t, st, resolver, Options{})

	summary, err := p.Run(context.Background(), providerWorkbook(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layout source2")
	assert.Contains(t, err.Error(), "connection refused")
	require.Len(t, summary.Layouts, 1, "only source1 committed")

	counts, err := st.CountBySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"source1": 1}, counts)
}

func TestRun_GeocodeCache(t *testing.T) {
	srv, hits := tomtomServer(t)
	st := newTestStore(t)
	wb := providerWorkbook(t)
	p, _ := newTestPipeline(t, st, newTestClient(srv.URL), Options{CacheGeocodes: true})

	_, err := p.Run(context.Background(), wb)
	require.NoError(t, err)
	first := hits.Load()
	assert.Equal(t, int64(3), first)

	summary, err := p.Run(context.Background(), wb)
	require.NoError(t, err)
	assert.Equal(t, first, hits.Load(), "second run served from cache")
	assert.Equal(t, 1, summary.Layouts[0].Geocoded)
}

func TestRun_BlankCellFallsThroughToNextCandidate(t *testing.T) {
	srv, _ := tomtomServer(t)
	st := newTestStore(t)
	wb := writeWorkbook(t, sheet{
		name:   "source1",
		header: []string{"Name", "Company", "Address", "City", "State"},
		rows:   [][]string{{"", "Acme", "7 Pine St", "Reno", "NV"}},
	})

	p, _ := newTestPipeline(t, st, newTestClient(srv.URL), Options{
		Layouts:  []string{"source1"},
		Presence: normalize.PresenceNonNull,
	})
	_, err := p.Run(context.Background(), wb)
	require.NoError(t, err)

	got, err := st.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", *got.Company)
}

func TestRun_MissingSheet(t *testing.T) {
	st := newTestStore(t)
	wb := writeWorkbook(t, sheet{name: "source1", header: []string{"Name"}})
	p, _ := newTestPipeline(t, st, failingResolver{match: ""}, Options{Layouts: []string{"source1", "source2"}})

	summary, err := p.Run(context.Background(), wb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "source2" not found`)
	assert.Len(t, summary.Layouts, 1)
}

func TestRun_UnknownLayout(t *testing.T) {
	st := newTestStore(t)
	p, _ := newTestPipeline(t, st, failingResolver{match: ""}, Options{Layouts: []string{"source9"}})

	_, err := p.Run(context.Background(), writeWorkbook(t, sheet{name: "source9"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown layout "source9"`)
}
