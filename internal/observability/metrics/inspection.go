package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// InspectionMetrics contains the metrics of the inspection pipeline.
type InspectionMetrics struct {
	InspectionsTotal  *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
	ModelLoads        *prometheus.CounterVec
	FacesRejected     prometheus.Counter
	StoreFailures     prometheus.Counter
	Corrections       *prometheus.CounterVec
}

// NewInspectionMetrics creates and registers the inspection metrics.
func NewInspectionMetrics(registry prometheus.Registerer) (*InspectionMetrics, error) {
	m := &InspectionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register inspection metrics: %w", err)
	}
	return m, nil
}

func (m *InspectionMetrics) initMetrics() {
	m.InspectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspections_total",
			Help: "Total number of inspections by verdict status and pipeline outcome",
		},
		[]string{"status", "outcome"}, // status: OK, NOK, none; outcome: ok, rejected, failed
	)

	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inspection_inference_duration_seconds",
			Help:    "Time taken by a single model inference",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"model_type"},
	)

	m.ModelLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_model_loads_total",
			Help: "Model selections by resulting model type and status",
		},
		[]string{"model_type", "status"},
	)

	m.FacesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspection_privacy_rejections_total",
		Help: "Total number of photos rejected because faces were detected",
	})

	m.StoreFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspection_store_failures_total",
		Help: "Total number of verdicts served without being stored",
	})

	m.Corrections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_corrections_total",
			Help: "Total number of corrections by training candidate decision",
		},
		[]string{"candidate"},
	)
}

// RecordInspection counts a finished pipeline run.
func (m *InspectionMetrics) RecordInspection(status, outcome string) {
	if status == "" {
		status = "none"
	}
	m.InspectionsTotal.WithLabelValues(status, outcome).Inc()
}

// ObserveInference records the duration of one inference.
func (m *InspectionMetrics) ObserveInference(modelType string, seconds float64) {
	m.InferenceDuration.WithLabelValues(modelType).Observe(seconds)
}

// RecordModelLoad counts a model resolution.
func (m *InspectionMetrics) RecordModelLoad(modelType, status string) {
	m.ModelLoads.WithLabelValues(modelType, status).Inc()
}

// IncFacesRejected counts a privacy rejection.
func (m *InspectionMetrics) IncFacesRejected() {
	m.FacesRejected.Inc()
}

// IncStoreFailures counts a verdict that could not be stored.
func (m *InspectionMetrics) IncStoreFailures() {
	m.StoreFailures.Inc()
}

// RecordCorrection counts a correction.
func (m *InspectionMetrics) RecordCorrection(candidate bool) {
	m.Corrections.WithLabelValues(fmt.Sprint(candidate)).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *InspectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InspectionsTotal.Describe(ch)
	m.InferenceDuration.Describe(ch)
	m.ModelLoads.Describe(ch)
	ch <- m.FacesRejected.Desc()
	ch <- m.StoreFailures.Desc()
	m.Corrections.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *InspectionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InspectionsTotal.Collect(ch)
	m.InferenceDuration.Collect(ch)
	m.ModelLoads.Collect(ch)
	ch <- m.FacesRejected
	ch <- m.StoreFailures
	m.Corrections.Collect(ch)
}
