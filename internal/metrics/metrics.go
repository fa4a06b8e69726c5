package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal - общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration - длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Длительность HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RequestsInFlight - количество запросов в обработке
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Текущее количество запросов в обработке",
		},
	)

	// GeoQueriesTotal - количество поисков маршрутов поблизости
	GeoQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_queries_total",
			Help: "Общее количество поисков маршрутов поблизости",
		},
		[]string{"mode", "cached"},
	)

	GeoQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geo_query_duration_seconds",
			Help:    "Длительность поиска маршрутов в секундах",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"mode"},
	)

	// WSConnections - открытые WebSocket соединения
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Текущее количество WebSocket соединений",
		},
	)

	// NotificationsTotal - push-уведомления по результату отправки
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Количество push-уведомлений по статусу",
		},
		[]string{"status"},
	)
)

// Статусы уведомлений
const (
	NotificationSent       = "sent"
	NotificationFailed     = "failed"
	NotificationDropped    = "dropped"
	NotificationNoToken    = "no_token"
	NotificationTokenReset = "token_cleared"
)

// TrackGeoQuery отслеживает поиск маршрутов
func TrackGeoQuery(mode string, cached bool, duration time.Duration) {
	GeoQueriesTotal.WithLabelValues(mode, strconv.FormatBool(cached)).Inc()
	GeoQueryDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func TrackNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}
