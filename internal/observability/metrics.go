package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	quotationsCreated *prometheus.CounterVec
	numberConflicts   prometheus.Counter
	sequenceFallbacks *prometheus.CounterVec
	rateRefreshed     *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry, metrik HTTP dan metrik domain.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reseller_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reseller_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reseller_quotations_created_total",
		Help: "Jumlah penawaran yang tersimpan, per sumber nomor.",
	}, []string{"source"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reseller_quotation_number_conflicts_total",
		Help: "Jumlah tabrakan nomor penawaran yang memicu alokasi ulang.",
	})
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reseller_quotation_sequence_fallbacks_total",
		Help: "Jumlah alokasi nomor yang tidak memakai counter utama.",
	}, []string{"source"})
	refreshed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reseller_exchange_rate_refresh_products_total",
		Help: "Produk yang diproses saat pembaruan kurs, per hasil.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, created, conflicts, fallbacks, refreshed)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		quotationsCreated: created,
		numberConflicts:   conflicts,
		sequenceFallbacks: fallbacks,
		rateRefreshed:     refreshed,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// QuotationCreated mencatat penawaran baru beserta sumber nomornya.
func (m *Metrics) QuotationCreated(source string) {
	if m == nil {
		return
	}
	m.quotationsCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) NumberConflict() {
	if m == nil {
		return
	}
	m.numberConflicts.Inc()
}

func (m *Metrics) SequenceFallback(source string) {
	if m == nil {
		return
	}
	m.sequenceFallbacks.WithLabelValues(source).Inc()
}

// ObserveRateRefresh mencatat hasil satu kali pembaruan kurs massal.
func (m *Metrics) ObserveRateRefresh(updated, failed int) {
	if m == nil {
		return
	}
	m.rateRefreshed.WithLabelValues("updated").Add(float64(updated))
	m.rateRefreshed.WithLabelValues("failed").Add(float64(failed))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
