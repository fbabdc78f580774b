package observability

import (
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)
	var total float64
	for m := range ch {
		var metric dto.Metric
		require.NoError(t, m.Write(&metric))
		total += metric.GetCounter().GetValue()
	}
	return total
}

// TestNewMetricsConcurrency verifies that every instance uses its own registry.
func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20
	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Inspection)
			assert.NotNil(t, m.Datastore)
			assert.NotNil(t, m.HTTP)
			assert.NotNil(t, m.Notification)
		}()
	}
	wg.Wait()
}

func TestInspectionCounters(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Inspection.RecordInspection("NOK", "ok")
	m.Inspection.RecordInspection("NOK", "ok")
	m.Inspection.RecordInspection("", "rejected")
	m.Inspection.IncFacesRejected()
	m.Inspection.IncStoreFailures()

	assert.InDelta(t, 2, counterValue(t, m.Inspection.InspectionsTotal.WithLabelValues("NOK", "ok")), 0)
	assert.InDelta(t, 1, counterValue(t, m.Inspection.InspectionsTotal.WithLabelValues("none", "rejected")), 0)
	assert.InDelta(t, 1, counterValue(t, m.Inspection.FacesRejected), 0)
	assert.InDelta(t, 1, counterValue(t, m.Inspection.StoreFailures), 0)
}

func TestNotificationDelivery(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Notification.RecordDelivery("webhook", 120, 5*time.Millisecond, nil)
	m.Notification.RecordDelivery("webhook", 0, time.Millisecond, io.ErrUnexpectedEOF)

	assert.InDelta(t, 1, counterValue(t, m.Notification.Delivered.WithLabelValues("webhook")), 0)
	assert.InDelta(t, 1, counterValue(t, m.Notification.Errors.WithLabelValues("webhook")), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.HTTP.RecordHTTPRequest("POST", "/api/v2/inspect", 200, 0.12)
	m.Datastore.RecordDbOperation("db_insert", "analyses", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{method="POST",path="/api/v2/inspect",status_code="200"} 1`)
	assert.Contains(t, body, `datastore_operations_total{operation="db_insert",status="success",table="analyses"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
