package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/damsync/internal/damsync"
	"github.com/sells-group/damsync/internal/feed"
	feedmocks "github.com/sells-group/damsync/internal/feed/mocks"
	"github.com/sells-group/damsync/internal/model"
	"github.com/sells-group/damsync/internal/monitoring"
	"github.com/sells-group/damsync/internal/store"
)

type testEnv struct {
	store  *store.SQLiteStore
	feed   *feedmocks.MockSource
	server *Server
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPinger(t, nil)
}

func newTestEnvWithPinger(t *testing.T, pinger Pinger) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	src := feedmocks.NewMockSource(t)
	engine := damsync.NewEngine(st, src, damsync.Options{
		Location: time.UTC,
		Clock:    clockwork.NewFakeClockAt(time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)),
		Pause:    func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		Metrics:  monitoring.NewMetricsForTesting(),
	})
	if pinger == nil {
		pinger = st
	}

	return &testEnv{
		store:  st,
		feed:   src,
		server: NewServer(Options{Addr: ":0"}, damsync.NewQuery(st), engine, pinger),
	}
}

func (e *testEnv) seedDam(t *testing.T, key, state string) *model.Dam {
	t.Helper()
	d, err := e.store.InsertDam(context.Background(), model.Dam{
		SIHKey: key, OfficialName: "Presa " + key, State: state, Latitude: 27.5, Longitude: -109.9,
	})
	require.NoError(t, err)
	return d
}

func (e *testEnv) seedMeasurement(t *testing.T, dam *model.Dam, date string) {
	t.Helper()
	on, err := model.ParseDate(date)
	require.NoError(t, err)
	_, err = e.store.InsertMeasurement(context.Background(), model.Measurement{
		DamID: dam.ID, MeasuredOn: on, Elevation: 100, Capacity: 50, FillPct: 40,
	})
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func record(key string) model.FeedRecord {
	return model.FeedRecord{
		SIHKey:           key,
		OfficialName:     "Presa " + key,
		State:            "Sonora",
		Latitude:         model.Float(27.5),
		Longitude:        model.Float(-109.9),
		CurrentElevation: model.Float(100.5),
		CurrentCapacity:  model.Float(80.2),
		FillPct:          model.Float(64.1),
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env = newTestEnvWithPinger(t, stubPinger{err: errors.New("db down")})
	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "db down", decode[map[string]string](t, rec)["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/dams/catalog", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListDams_Empty(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/dams/catalog", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetDam(t *testing.T) {
	env := newTestEnv(t)
	env.seedDam(t, "X1", "Sonora")

	rec := env.do(t, http.MethodGet, "/api/dams/catalog/sihKey/X1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Presa X1", decode[model.Dam](t, rec).OfficialName)

	rec = env.do(t, http.MethodGet, "/api/dams/catalog/sihKey/NOPE", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, "/api/dams/catalog/sihKey/NOPE", body.Path)
}

func TestDamsByState(t *testing.T) {
	env := newTestEnv(t)
	env.seedDam(t, "X1", "Nuevo León")

	rec := env.do(t, http.MethodGet, "/api/dams/catalog/state/nuevo%20leon", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Dam](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/dams/catalog/state/Jalisco", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDamsGeoJSON(t *testing.T) {
	env := newTestEnv(t)
	env.seedDam(t, "X1", "Sonora")

	rec := env.do(t, http.MethodGet, "/api/dams/geojson", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"FeatureCollection"`)
	assert.Contains(t, rec.Body.String(), `"X1"`)
}

func TestSyncCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.seedDam(t, "X1", "Chihuahua")
	env.feed.On("Fetch", mock.Anything, "2024-03-02").
		Return([]model.FeedRecord{record("X1"), record("X2")}, nil).Once()

	rec := env.do(t, http.MethodGet, "/api/dams/catalog/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[catalogSyncResponse](t, rec)
	assert.Equal(t, 1, resp.SyncCount)
	require.Len(t, resp.Created, 1)
	assert.Equal(t, "X2", resp.Created[0].SIHKey)
	require.Len(t, resp.Updated, 1)
	assert.Equal(t, "Sonora", resp.Updated[0].State)
}

func TestSyncCatalog_UpstreamDown(t *testing.T) {
	env := newTestEnv(t)
	env.feed.On("Fetch", mock.Anything, "2024-03-02").
		Return(nil, eris.Wrap(feed.ErrUpstreamUnavailable, "feed: fetch 2024-03-02: timeout")).Once()

	rec := env.do(t, http.MethodGet, "/api/dams/catalog/sync", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSyncDate_WritesThenSkips(t *testing.T) {
	env := newTestEnv(t)
	env.seedDam(t, "X1", "Sonora")
	env.feed.On("Fetch", mock.Anything, "2024-03-01").
		Return([]model.FeedRecord{record("X1")}, nil).Twice()

	rec := env.do(t, http.MethodGet, "/api/dams/measurements/sync/date/2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[syncResponse](t, rec)
	assert.Equal(t, 1, first.SyncCount)
	require.Len(t, first.Measurements, 1)
	assert.InDelta(t, 64.1, first.Measurements[0].FillPct, 1e-9)
	assert.Empty(t, first.Messages)

	rec = env.do(t, http.MethodGet, "/api/dams/measurements/sync/date/2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[syncResponse](t, rec)
	assert.Equal(t, 0, second.SyncCount)
	assert.Equal(t, []string{"Daily measurement for dam X1 on 2024-03-01 already exists"}, second.Messages)
}

func TestSyncDate_InvalidDate(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/dams/measurements/sync/date/03-01-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncDate_UpstreamDown(t *testing.T) {
	env := newTestEnv(t)
	env.feed.On("Fetch", mock.Anything, "2024-03-01").
		Return(nil, eris.Wrap(feed.ErrUpstreamUnavailable, "feed: fetch 2024-03-01: 503")).Once()

	rec := env.do(t, http.MethodGet, "/api/dams/measurements/sync/date/2024-03-01", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[syncResponse](t, rec)
	assert.Equal(t, "2024-03-01", resp.Date)
	assert.Contains(t, resp.Error, "upstream unavailable")
}

func TestSyncToday(t *testing.T) {
	env := newTestEnv(t)
	env.feed.On("Fetch", mock.Anything, "2024-03-02").Return([]model.FeedRecord{}, nil).Once()

	rec := env.do(t, http.MethodGet, "/api/dams/measurements/sync/date/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03-02", decode[syncResponse](t, rec).Date)
}

func TestSyncDates(t *testing.T) {
	env := newTestEnv(t)
	env.seedDam(t, "X1", "Sonora")
	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		env.feed.On("Fetch", mock.Anything, d).Return([]model.FeedRecord{record("X1")}, nil).Once()
	}

	rec := env.do(t, http.MethodPost, "/api/dams/measurements/sync/dates",
		map[string]string{"startDate": "2024-03-01", "endDate": "2024-03-03"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[[]syncResponse](t, rec)
	require.Len(t, resp, 3)
	for i, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		assert.Equal(t, d, resp[i].Date)
		assert.Equal(t, 1, resp[i].SyncCount)
	}
	assert.Equal(t, resp[0].RunID, resp[2].RunID)
}

func TestSyncDates_PlaceholderEndMeansStart(t *testing.T) {
	env := newTestEnv(t)
	env.feed.On("Fetch", mock.Anything, "2024-03-01").Return([]model.FeedRecord{}, nil).Once()

	rec := env.do(t, http.MethodPost, "/api/dams/measurements/sync/dates",
		map[string]string{"startDate": "2024-03-01", "endDate": "string"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]syncResponse](t, rec), 1)
}

func TestSyncDates_BadRange(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/dams/measurements/sync/dates",
		map[string]string{"startDate": "2024-03-05", "endDate": "2024-03-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/dams/measurements/sync/dates", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryMeasurements(t *testing.T) {
	env := newTestEnv(t)
	x1 := env.seedDam(t, "X1", "Sonora")
	x2 := env.seedDam(t, "X2", "Sonora")
	env.seedMeasurement(t, x1, "2024-03-01")
	env.seedMeasurement(t, x1, "2024-03-02")
	env.seedMeasurement(t, x2, "2024-03-02")

	tests := []struct {
		name   string
		body   map[string]string
		status int
		count  int
	}{
		{"by key", map[string]string{"sihKey": "X1"}, http.StatusOK, 2},
		{"by dates", map[string]string{"startDate": "2024-03-02"}, http.StatusOK, 2},
		{"by key and dates", map[string]string{"sihKey": "X1", "startDate": "2024-03-01", "endDate": "string"}, http.StatusOK, 1},
		{"unknown key", map[string]string{"sihKey": "NOPE"}, http.StatusNotFound, 0},
		{"nothing", map[string]string{}, http.StatusBadRequest, 0},
		{"bad start", map[string]string{"startDate": "yesterday"}, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/dams/measurements", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				assert.Len(t, decode[[]model.Measurement](t, rec), tt.count)
			}
		})
	}
}

func TestQueryMeasurements_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/dams/measurements", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[errorBody](t, rec).Message)
}

func TestListMeasurements(t *testing.T) {
	env := newTestEnv(t)
	x1 := env.seedDam(t, "X1", "Sonora")
	env.seedMeasurement(t, x1, "2024-03-01")
	env.seedMeasurement(t, x1, "2024-03-02")

	rec := env.do(t, http.MethodGet, "/api/dams/measurements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ms := decode[[]model.Measurement](t, rec)
	require.Len(t, ms, 2)
	assert.Equal(t, "2024-03-02", ms[0].Date())
}

func TestInfoEndpoints(t *testing.T) {
	env := newTestEnv(t)
	x1 := env.seedDam(t, "X1", "Sonora")
	env.seedDam(t, "X2", "Chihuahua")
	env.seedMeasurement(t, x1, "2024-03-01")
	env.seedMeasurement(t, x1, "2024-03-02")

	rec := env.do(t, http.MethodGet, "/api/dams/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]model.DamInfo](t, rec)
	require.Len(t, all, 2)
	assert.Len(t, all[0].Measurements, 2)

	rec = env.do(t, http.MethodPost, "/api/dams/info/sihKey",
		map[string]string{"sihKey": "X1", "startDate": "2024-03-02"})
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[model.DamInfo](t, rec)
	assert.Equal(t, "X1", info.Dam.SIHKey)
	assert.Len(t, info.Measurements, 1)

	rec = env.do(t, http.MethodPost, "/api/dams/info/sihKey", map[string]string{"sihKey": "NOPE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/dams/info/state", map[string]string{"state": "chihuahua"})
	require.Equal(t, http.StatusOK, rec.Code)
	byState := decode[[]model.DamInfo](t, rec)
	require.Len(t, byState, 1)
	assert.Empty(t, byState[0].Measurements)

	rec = env.do(t, http.MethodPost, "/api/dams/info/dates",
		map[string]string{"startDate": "2024-03-01", "endDate": "2024-03-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	byDates := decode[[]model.DamInfo](t, rec)
	require.Len(t, byDates, 2)
	assert.Len(t, byDates[0].Measurements, 1)

	rec = env.do(t, http.MethodPost, "/api/dams/info/dates", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(eris.Wrap(store.ErrNotFound, "x")))
	assert.Equal(t, http.StatusBadRequest, statusFor(eris.Wrap(damsync.ErrInvalidRange, "x")))
	assert.Equal(t, http.StatusBadGateway, statusFor(eris.Wrap(feed.ErrUpstreamUnavailable, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
