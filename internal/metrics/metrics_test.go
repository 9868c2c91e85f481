package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.SearchServed(SearchSourceRemote)
	r.SearchServed(SearchSourceFallback)
	r.StaleDiscarded()
	r.OrderSubmitted("success")
	r.ObserveBackend("search", time.Now())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `dashboard_search_requests_total{source="fallback"} 1`)
	assert.Contains(t, string(body), `dashboard_orders_total{result="success"} 1`)
	assert.Contains(t, string(body), "dashboard_search_stale_discarded_total 1")
	assert.Contains(t, string(body), "dashboard_backend_request_seconds")
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry

	assert.NotPanics(t, func() {
		r.SearchServed(SearchSourceRemote)
		r.StaleDiscarded()
		r.OrderSubmitted("generic")
		r.ObserveBackend("orders", time.Now())
	})
}
