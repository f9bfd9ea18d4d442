package httpapi

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/umbratrace"
	"github.com/poiesic/umbratrace/batch"
	"github.com/poiesic/umbratrace/catalog"
	"github.com/poiesic/umbratrace/config"
	"github.com/poiesic/umbratrace/core"
	"github.com/poiesic/umbratrace/metrics"
	"github.com/poiesic/umbratrace/storage"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	engine, err := umbratrace.NewEngine(cfg, umbratrace.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	srv, err := NewServer(engine, cfg, opts...)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) core.Response {
	t.Helper()
	var resp core.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body["error"]
}

func resultIDs(resp core.Response) []string {
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = r.ID
	}
	return ids
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.ErrorIs(t, err, ErrEngineRequired)
}

func TestNewServer_InvalidConfig(t *testing.T) {
	engine := &stubEngine{}
	_, err := NewServer(engine, config.NewConfig(config.WithMaxBatchQueries(0)))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSearch_Get(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/api/search?q=hydra", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("ETag"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	resp := decodeResponse(t, w)
	assert.Equal(t, "hydra", resp.Query)
	assert.Equal(t, fixedNow, resp.Timestamp)
	assert.Equal(t, []string{"tw-hydraclaw", "gh-hydraclaw", "email-breach", "img-recon"}, resultIDs(resp))
	assert.Equal(t, 27, resp.Summary.FootprintScore)
	assert.Equal(t, 4, resp.Summary.MatchCount)
	assert.Equal(t, []string{"Reykjavík", "Iceland", "Oslo"}, resp.Summary.TopLocations)
}

func TestSearch_GetFilters(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"confidence", "/api/search?q=hydra&confidence=100", []string{"tw-hydraclaw", "email-breach", "img-recon"}},
		{"short alias", "/api/search?q=hydra&c=100", []string{"tw-hydraclaw", "email-breach", "img-recon"}},
		{"confidence wins over alias", "/api/search?q=hydra&confidence=0&c=100", []string{"tw-hydraclaw", "gh-hydraclaw", "email-breach", "img-recon"}},
		{"types", "/api/search?q=hydra&types=image", []string{"img-recon"}},
		{"comma separated types", "/api/search?q=hydra&types=image,metadata", []string{"email-breach", "img-recon"}},
		{"no query", "/api/search", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, resultIDs(decodeResponse(t, w)))
		})
	}
}

func TestSearch_GetInvalidFilter(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, target := range []string{
		"/api/search?q=hydra&confidence=abc",
		"/api/search?q=hydra&c=101",
		"/api/search?q=hydra&confidence=-5",
		"/api/search?q=hydra&types=video",
	} {
		t.Run(target, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeError(t, w), "invalid filter")
		})
	}
}

func TestSearch_Post(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/search", `{"q": "shadow", "filters": {"confidence": 60, "types": ["social", "metadata"]}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	resp := decodeResponse(t, w)
	assert.Equal(t, []string{"tw-hydraclaw", "phone-signal", "unused-handle"}, resultIDs(resp))
}

func TestSearch_PostWithoutFilters(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/search", `{"q": "HYDRA"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decodeResponse(t, w).Summary.MatchCount)
}

func TestSearch_PostErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"q": `},
		{"empty body", ``},
		{"wrong type", `{"q": 42}`},
		{"trailing data", `{"q": "hydra"} {"q": "again"}`},
		{"unknown type", `{"q": "hydra", "filters": {"types": ["video"]}}`},
		{"threshold too high", `{"q": "hydra", "filters": {"confidence": 250}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeError(t, w))
		})
	}
}

func TestETag_CoversContent(t *testing.T) {
	base := &core.Response{
		Query:     "hydra",
		Timestamp: fixedNow,
		Summary:   core.Summary{FootprintScore: 27, MatchCount: 1, TopLocations: []string{"Oslo"}},
		Results: []core.MergedRecord{{Record: core.Record{
			ID:         "img-recon",
			Type:       core.RecordTypeImage,
			Source:     "Reverse Image",
			Confidence: core.ConfidenceHigh,
			Metadata:   core.Metadata{"device": core.String("Pixel 8")},
		}}},
	}
	tag, err := etag(base)
	require.NoError(t, err)

	later := *base
	later.Timestamp = fixedNow.Add(time.Hour)
	laterTag, err := etag(&later)
	require.NoError(t, err)
	assert.Equal(t, tag, laterTag, "timestamp does not change the tag")

	edited := *base
	edited.Results = []core.MergedRecord{base.Results[0]}
	edited.Results[0].Metadata = core.Metadata{"device": core.String("Pixel 9")}
	editedTag, err := etag(&edited)
	require.NoError(t, err)
	assert.NotEqual(t, tag, editedTag, "metadata is part of the tag")

	rescored := *base
	rescored.Summary.TopLocations = []string{"Bergen"}
	rescoredTag, err := etag(&rescored)
	require.NoError(t, err)
	assert.NotEqual(t, tag, rescoredTag, "summary is part of the tag")
}

func TestSearch_ETagChangesWithCatalogContent(t *testing.T) {
	records := catalog.Fixtures(fixedNow)
	for i := range records {
		if records[i].ID == "tw-hydraclaw" {
			records[i].Metadata["bio"] = core.String("Edited bio")
		}
	}
	edited, err := catalog.New(records)
	require.NoError(t, err)

	engine, err := umbratrace.NewEngine(nil,
		umbratrace.WithClock(func() time.Time { return fixedNow }),
		umbratrace.WithCatalog(edited))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	editedSrv, err := NewServer(engine, nil)
	require.NoError(t, err)

	original := do(t, newTestServer(t, nil), http.MethodGet, "/api/search?q=hydra", "")
	require.Equal(t, http.StatusOK, original.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=hydra", nil)
	req.Header.Set("If-None-Match", original.Header().Get("ETag"))
	w := httptest.NewRecorder()
	editedSrv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, original.Header().Get("ETag"), w.Header().Get("ETag"))
	assert.Contains(t, w.Body.String(), "Edited bio")
}

func TestDecodeJSON_FilterTypeErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		message string
	}{
		{"confidence as string", `{"q": "hydra", "filters": {"confidence": "abc"}}`, core.ErrInvalidFilter, "filters.confidence must be a number"},
		{"types as string", `{"q": "hydra", "filters": {"types": "social"}}`, core.ErrInvalidFilter, "filters.types must be a list of record types"},
		{"query as number", `{"q": 42}`, ErrMalformedRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body))
			var body searchRequest
			err := decodeJSON(httptest.NewRecorder(), req, &body)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorContains(t, err, tt.message)
		})
	}
}

func TestSearch_PostNonNumericThreshold(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/api/search", "/api/search/batch"} {
		t.Run(path, func(t *testing.T) {
			body := `{"q": "hydra", "queries": ["hydra"], "filters": {"confidence": "abc"}}`
			w := do(t, srv, http.MethodPost, path, body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeError(t, w), "invalid filter")
		})
	}
}

func TestSearch_ETag(t *testing.T) {
	srv := newTestServer(t, nil)

	first := do(t, srv, http.MethodGet, "/api/search?q=hydra", "")
	second := do(t, srv, http.MethodGet, "/api/search?q=hydra", "")
	other := do(t, srv, http.MethodGet, "/api/search?q=hydra&c=100", "")

	tag := first.Header().Get("ETag")
	assert.Equal(t, tag, second.Header().Get("ETag"))
	assert.NotEqual(t, tag, other.Header().Get("ETag"))

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=hydra", nil)
	req.Header.Set("If-None-Match", tag)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestSearch_CacheMaxAge(t *testing.T) {
	srv := newTestServer(t, config.NewConfig(config.WithCacheMaxAge(5*time.Minute)))

	w := do(t, srv, http.MethodGet, "/api/search?q=hydra", "")

	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))
}

func TestSearch_HTMLNotEscaped(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/api/search?q=ciphertrace", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "&fit=crop")
	assert.Contains(t, w.Body.String(), "Urban exploration + crypto privacy")
}

func TestSearch_Gzip(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=hydra", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var resp core.Response
	require.NoError(t, json.NewDecoder(zr).Decode(&resp))
	assert.Equal(t, 4, resp.Summary.MatchCount)
}

func TestSearchBatch(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/search/batch", `{"queries": ["hydra", "cipher", ""], "filters": {"confidence": 100}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var responses []core.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&responses))
	require.Len(t, responses, 3)
	assert.Equal(t, "hydra", responses[0].Query)
	assert.Equal(t, 3, responses[0].Summary.MatchCount)
	assert.Equal(t, 0, responses[1].Summary.MatchCount)
	assert.Equal(t, 0, responses[2].Summary.MatchCount)
}

func TestSearchBatch_Errors(t *testing.T) {
	srv := newTestServer(t, config.NewConfig(config.WithMaxBatchQueries(2)))

	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", `{"queries": []}`, ErrEmptyBatch},
		{"too large", `{"queries": ["a", "b", "c"]}`, ErrBatchTooLarge},
		{"malformed", `{"queries": "hydra"}`, ErrMalformedRequest},
		{"invalid filter", `{"queries": ["hydra"], "filters": {"confidence": -1}}`, core.ErrInvalidFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/search/batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeError(t, w), tt.want.Error())
		})
	}
}

func TestRecent(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, q := range []string{"hydra", "shadow", "hydra", "umbra analyst"} {
		w := do(t, srv, http.MethodGet, "/api/search?q="+strings.ReplaceAll(q, " ", "+"), "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	list := func(target string) []string {
		w := do(t, srv, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, w.Code)
		var entries []core.RecentSearch
		require.NoError(t, json.NewDecoder(w.Body).Decode(&entries))
		terms := make([]string, len(entries))
		for i, e := range entries {
			terms[i] = e.Term
		}
		return terms
	}

	assert.Equal(t, []string{"umbra analyst", "hydra", "shadow"}, list("/api/recent"))
	assert.Equal(t, []string{"umbra analyst"}, list("/api/recent?limit=1"))

	w := do(t, srv, http.MethodDelete, "/api/recent/umbra%20analyst", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"hydra", "shadow"}, list("/api/recent"))

	w = do(t, srv, http.MethodDelete, "/api/recent/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, storage.ErrNotFound.Error(), decodeError(t, w))

	w = do(t, srv, http.MethodDelete, "/api/recent", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{}, list("/api/recent"))
}

func TestRecent_EscapedSlash(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/api/search?q=r%2Fnetsec", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeResponse(t, w).Summary.MatchCount)

	w = do(t, srv, http.MethodDelete, "/api/recent/r%2Fnetsec", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecent_InvalidLimit(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, limit := range []string{"0", "-1", "ten"} {
		w := do(t, srv, http.MethodGet, "/api/recent?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, limit)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	srv := newTestServer(t, nil, WithMetrics(m, reg))

	do(t, srv, http.MethodGet, "/api/search?q=hydra", "")
	do(t, srv, http.MethodGet, "/api/search?q=hydra&c=bad", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/search", http.MethodGet, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/search", http.MethodGet, "400")))

	w := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "umbratrace_http_requests_total")
}

func TestMetricsEndpoint_NotMounted(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "trace-123")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get(requestIDHeader))

	first := do(t, srv, http.MethodGet, "/healthz", "").Header().Get(requestIDHeader)
	second := do(t, srv, http.MethodGet, "/healthz", "").Header().Get(requestIDHeader)
	assert.Len(t, first, 36)
	assert.NotEqual(t, first, second)
}

func TestRateLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cfg := config.NewConfig(config.WithRateLimit(0.001, 2))
	srv := newTestServer(t, cfg, WithMetrics(m, nil))

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/search?q=hydra", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/recent", "").Code)

	w := do(t, srv, http.MethodGet, "/api/search?q=hydra", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, decodeError(t, w), "rate limit exceeded")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))

	// health checks are not limited
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
}

func TestSimulatedLatency(t *testing.T) {
	cfg := config.NewConfig(config.WithLatency(20*time.Millisecond, 40*time.Millisecond))
	var spans []int64
	srv := newTestServer(t, cfg, WithJitter(func(n int64) int64 {
		spans = append(spans, n)
		return 0
	}))

	start := time.Now()
	w := do(t, srv, http.MethodGet, "/api/search?q=hydra", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, []int64{int64(20*time.Millisecond) + 1}, spans)

	// recent searches are served without delay
	do(t, srv, http.MethodGet, "/api/recent", "")
	assert.Len(t, spans, 1)
}

func TestSimulatedLatency_Cancelled(t *testing.T) {
	cfg := config.NewConfig(config.WithLatency(time.Minute, time.Minute))
	srv := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=hydra", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.ServeHTTP(w, req)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("request was not abandoned")
	}
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type stubEngine struct {
	searchErr error
	panics    bool
}

func (s *stubEngine) Search(_ context.Context, _ string, _ *core.FilterState) (*core.Response, error) {
	if s.panics {
		panic("boom")
	}
	return nil, s.searchErr
}

func (s *stubEngine) SearchBatch(_ context.Context, queries []string, _ *core.FilterState) ([]batch.Result, error) {
	results := make([]batch.Result, len(queries))
	for i, q := range queries {
		results[i] = batch.Result{Query: q, Err: s.searchErr}
	}
	return results, nil
}

func (s *stubEngine) History() storage.HistoryRepository {
	return nil
}

func TestSearch_InternalErrorHidesDetail(t *testing.T) {
	srv, err := NewServer(&stubEngine{searchErr: errors.New("disk on fire")}, nil)
	require.NoError(t, err)

	w := do(t, srv, http.MethodGet, "/api/search?q=hydra", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decodeError(t, w))

	w = do(t, srv, http.MethodPost, "/api/search/batch", `{"queries": ["hydra"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decodeError(t, w))
}

func TestRecovery(t *testing.T) {
	srv, err := NewServer(&stubEngine{panics: true}, nil)
	require.NoError(t, err)

	w := do(t, srv, http.MethodGet, "/api/search?q=hydra", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decodeError(t, w))
}
