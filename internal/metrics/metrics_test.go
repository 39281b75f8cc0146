package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(completions.WithLabelValues("COMPLETED"))
	IncCompletion("COMPLETED")
	assert.Equal(t, before+1, testutil.ToFloat64(completions.WithLabelValues("COMPLETED")))

	before = testutil.ToFloat64(extractions.WithLabelValues("degraded"))
	IncExtraction("degraded")
	assert.Equal(t, before+1, testutil.ToFloat64(extractions.WithLabelValues("degraded")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveHTTP("GET", "/health", 200, 5*time.Millisecond)
	ObserveProvider("open-mistral-7b", "200", time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "neural_chat_http_requests_total")
	assert.Contains(t, string(body), "neural_chat_provider_request_duration_seconds")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "2xx", statusLabel(200))
	assert.Equal(t, "4xx", statusLabel(429))
	assert.Equal(t, "5xx", statusLabel(502))
}
