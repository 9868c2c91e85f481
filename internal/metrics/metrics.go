// Package metrics содержит Prometheus-метрики дашборда.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Источники результатов поиска.
const (
	SearchSourceRemote   = "remote"
	SearchSourceFallback = "fallback"
)

// Registry хранит метрики дашборда. Методы безопасно вызывать у nil.
type Registry struct {
	reg            *prometheus.Registry
	searches       *prometheus.CounterVec
	staleDiscarded prometheus.Counter
	orders         *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
}

// NewRegistry создаёт отдельный реестр и регистрирует в нём метрики.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	searches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_search_requests_total",
		Help: "Search requests by result source.",
	}, []string{"source"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_search_stale_discarded_total",
		Help: "Search responses discarded because a newer query was issued.",
	})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_orders_total",
		Help: "Order submissions by outcome category.",
	}, []string{"result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_backend_request_seconds",
		Help:    "Latency of panel backend calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	r.MustRegister(searches, stale, orders, latency)

	return &Registry{
		reg:            r,
		searches:       searches,
		staleDiscarded: stale,
		orders:         orders,
		backendLatency: latency,
	}
}

// Handler возвращает HTTP-обработчик для выгрузки метрик.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// SearchServed учитывает поисковый запрос, обслуженный указанным источником.
func (r *Registry) SearchServed(source string) {
	if r == nil {
		return
	}
	r.searches.WithLabelValues(source).Inc()
}

// StaleDiscarded учитывает отброшенный устаревший ответ поиска.
func (r *Registry) StaleDiscarded() {
	if r == nil {
		return
	}
	r.staleDiscarded.Inc()
}

// OrderSubmitted учитывает попытку оформления заказа.
func (r *Registry) OrderSubmitted(result string) {
	if r == nil {
		return
	}
	r.orders.WithLabelValues(result).Inc()
}

// ObserveBackend учитывает длительность обращения к бэкенду.
func (r *Registry) ObserveBackend(op string, started time.Time) {
	if r == nil {
		return
	}
	r.backendLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
