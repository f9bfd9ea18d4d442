package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/umbratrace/catalog"
	"github.com/poiesic/umbratrace/core"
	"github.com/poiesic/umbratrace/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total uint64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetHistogram().GetSampleCount()
		}
	}
	return total
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{fmt.Errorf("%w: threshold", core.ErrInvalidFilter), OutcomeInvalidFilter},
		{context.Canceled, OutcomeCancelled},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), OutcomeCancelled},
		{errors.New("boom"), OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func TestIncrementSearch(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementSearch(nil)
	m.IncrementSearch(nil)
	m.IncrementSearch(core.ErrInvalidFilter)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Searches.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(OutcomeInvalidFilter)))
}

func TestObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("/api/search", "GET", "200", 5*time.Millisecond)
	m.ObserveRequest("/api/search", "GET", "400", time.Millisecond)
	m.IncrementRateLimited()
	m.IncrementHistoryErrors()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/search", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/search", "GET", "400")))
	assert.Equal(t, uint64(2), sampleCount(t, reg, "umbratrace_http_request_duration_seconds"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryErrors))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncrementSearch(nil)
		m.ObserveRequest("/", "GET", "200", time.Millisecond)
		m.IncrementRateLimited()
		m.IncrementHistoryErrors()
	})
	assert.Nil(t, m.NewSearchMonitor())
}

func TestSearchMonitor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	s, err := search.NewSearcher(catalog.Default(time.Now()))
	require.NoError(t, err)

	for _, q := range []string{"hydra", "umbra"} {
		_, err := s.SearchWithMonitor(context.Background(), q, nil, m.NewSearchMonitor())
		require.NoError(t, err)
	}

	assert.Equal(t, 3, testutil.CollectAndCount(m.StageRecords), "one series per stage")
	assert.Equal(t, uint64(6), sampleCount(t, reg, "umbratrace_search_stage_records"))
	assert.Equal(t, uint64(2), sampleCount(t, reg, "umbratrace_search_duration_seconds"))
	assert.Equal(t, uint64(2), sampleCount(t, reg, "umbratrace_footprint_score"))
}

func TestSearchMonitor_RejectedFilterRecordsNothing(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	s, err := search.NewSearcher(catalog.Default(time.Now()))
	require.NoError(t, err)

	threshold := -1.0
	_, err = s.SearchWithMonitor(context.Background(), "hydra", &core.FilterState{Confidence: &threshold}, m.NewSearchMonitor())
	require.ErrorIs(t, err, core.ErrInvalidFilter)

	assert.Equal(t, uint64(0), sampleCount(t, reg, "umbratrace_search_duration_seconds"))
	assert.Equal(t, 0, testutil.CollectAndCount(m.StageRecords))
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	}, "collectors only collide within one registry")
}
