package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	t.Parallel()

	pr := NewPrometheusRecorder(nil)
	pr.ObserveRender(OutcomeRendered, 2*time.Millisecond)
	pr.ObserveRender(OutcomeFailed, time.Millisecond)
	pr.ObserveRequest(http.MethodGet, "/{slug}", http.StatusOK, 5*time.Millisecond)
	pr.ObserveRequest(http.MethodGet, "/{slug}", http.StatusOK, 5*time.Millisecond)
	pr.ObserveRequest(http.MethodGet, "/{slug}", http.StatusNotFound, time.Millisecond)
	pr.IncCatalogReload(true)
	pr.SetCatalogSize(3, 7)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.requests.WithLabelValues("GET", "/{slug}", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.requests.WithLabelValues("GET", "/{slug}", "404")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.reloads.WithLabelValues("success")), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(pr.catalogSize.WithLabelValues("post")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(pr.renderDuration))

	mfs, err := pr.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func TestPrometheusHandler(t *testing.T) {
	t.Parallel()

	pr := NewPrometheusRecorder(nil)
	pr.ObserveRender(OutcomeCached, time.Microsecond)

	rec := httptest.NewRecorder()
	pr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "site_markdown_render_duration_seconds"))
}

func TestNoopRecorder(t *testing.T) {
	t.Parallel()

	r := OrNoop(nil)
	_, ok := r.(NoopRecorder)
	require.True(t, ok)
	r.ObserveRender(OutcomeRendered, time.Second)
	r.ObserveRequest("GET", "/", 200, time.Second)
	r.IncCatalogReload(false)
	r.SetCatalogSize(0, 0)

	var nilProm *PrometheusRecorder
	nilProm.ObserveRender(OutcomeRendered, time.Second)
}
