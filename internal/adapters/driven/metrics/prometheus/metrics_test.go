package prometheus

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

func TestRecorder_Ingest(t *testing.T) {
	r := New()

	r.IngestCompleted(domain.OutcomeCompleted, 2*time.Second)
	r.IngestCompleted(domain.OutcomeCompleted, time.Second)
	r.IngestCompleted(domain.OutcomeNoContent, 0)
	r.FragmentsEmbedded(7)
	r.FragmentsEmbedded(0)
	r.BatchFailed()
	r.RateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.IngestsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.IngestsTotal.WithLabelValues("no_content")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.EmbeddedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.BatchesFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RateLimitedTotal))
}

func TestRecorder_ObserveQueryCache(t *testing.T) {
	r := New()
	hits, misses := int64(0), int64(0)

	require.NoError(t, r.ObserveQueryCache(func() (int64, int64) { return hits, misses }))

	hits, misses = 3, 1
	assert.Equal(t, 3.0, testutil.ToFloat64(r.QueryCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.QueryCacheMisses))

	count, err := testutil.GatherAndCount(r.registry, "brief_query_cache_hits_total", "brief_query_cache_misses_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Error(t, r.ObserveQueryCache(func() (int64, int64) { return 0, 0 }))
}

func TestRecorder_Search(t *testing.T) {
	r := New()

	r.SearchCompleted(3, 50*time.Millisecond, nil)
	r.SearchCompleted(0, 10*time.Millisecond, nil)
	r.SearchCompleted(0, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.SearchesTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SearchesTotal.WithLabelValues("zero_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SearchesTotal.WithLabelValues("error")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.SearchLatency))
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.BatchFailed()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "brief_embedding_batches_failed_total 1")
}

func TestServer_ServesMetrics(t *testing.T) {
	r := New()
	r.RateLimited()

	srv, err := NewServer("127.0.0.1:0", r)
	require.NoError(t, err)
	srv.Start()
	defer srv.Shutdown(context.Background()) //nolint:errcheck

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "brief_rate_limited_total 1")
}
