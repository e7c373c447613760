package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "basedist_runs_total",
		Help: "Total pipeline runs by outcome",
	}, []string{"outcome"})
	RunDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "basedist_run_duration_ms",
		Help:    "Pipeline run duration in milliseconds",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
	})
	MatrixCellsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "basedist_matrix_cells_total",
		Help: "Total distance matrix cells computed",
	})
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "basedist_geocode_requests_total",
		Help: "Total external geocode lookups",
	})
	GeocodeFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "basedist_geocode_fail_total",
		Help: "Total geocode lookups that returned no coordinate",
	})
	GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "basedist_geocode_cache_hits_total",
		Help: "Total geocode cache hits",
	})
	GeocodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "basedist_geocode_duration_ms",
		Help:    "Geocode call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		RunDurationMs,
		MatrixCellsTotal,
		GeocodeRequestsTotal,
		GeocodeFailTotal,
		GeocodeCacheHitsTotal,
		GeocodeDurationMs,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
