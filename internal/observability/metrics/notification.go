package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains metrics for the MQTT and webhook sinks.
type NotificationMetrics struct {
	MQTTConnectionStatus prometheus.Gauge
	MQTTReconnects       prometheus.Counter
	Delivered            *prometheus.CounterVec
	Errors               *prometheus.CounterVec
	PublishLatency       *prometheus.HistogramVec
	MessageSize          *prometheus.HistogramVec
}

// NewNotificationMetrics creates and registers the notification metrics.
func NewNotificationMetrics(registry prometheus.Registerer) (*NotificationMetrics, error) {
	m := &NotificationMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() {
	m.MQTTConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_connection_status",
		Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
	})

	m.MQTTReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_reconnect_attempts_total",
		Help: "Total number of MQTT reconnection attempts",
	})

	m.Delivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_messages_delivered_total",
			Help: "Total number of inspection events delivered",
		},
		[]string{"sink"}, // mqtt, webhook
	)

	m.Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_errors_total",
			Help: "Total number of failed deliveries",
		},
		[]string{"sink"},
	)

	m.PublishLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_publish_latency_seconds",
			Help:    "Latency of event deliveries",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		},
		[]string{"sink"},
	)

	m.MessageSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_message_size_bytes",
			Help:    "Size of delivered payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		},
		[]string{"sink"},
	)
}

// UpdateMQTTConnectionStatus sets the connection gauge.
func (m *NotificationMetrics) UpdateMQTTConnectionStatus(connected bool) {
	if connected {
		m.MQTTConnectionStatus.Set(1)
	} else {
		m.MQTTConnectionStatus.Set(0)
	}
}

// IncrementMQTTReconnects counts a reconnection attempt.
func (m *NotificationMetrics) IncrementMQTTReconnects() {
	m.MQTTReconnects.Inc()
}

// RecordDelivery records a delivery attempt of a payload to a sink.
func (m *NotificationMetrics) RecordDelivery(sink string, sizeBytes int, latency time.Duration, err error) {
	m.PublishLatency.WithLabelValues(sink).Observe(latency.Seconds())
	if err != nil {
		m.Errors.WithLabelValues(sink).Inc()
		return
	}
	m.Delivered.WithLabelValues(sink).Inc()
	m.MessageSize.WithLabelValues(sink).Observe(float64(sizeBytes))
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.MQTTConnectionStatus.Desc()
	ch <- m.MQTTReconnects.Desc()
	m.Delivered.Describe(ch)
	m.Errors.Describe(ch)
	m.PublishLatency.Describe(ch)
	m.MessageSize.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.MQTTConnectionStatus
	ch <- m.MQTTReconnects
	m.Delivered.Collect(ch)
	m.Errors.Collect(ch)
	m.PublishLatency.Collect(ch)
	m.MessageSize.Collect(ch)
}
