package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.ParseOutcomes.WithLabelValues("accepted", "date_found").Inc()
	m.Searches.WithLabelValues("ok").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseOutcomes.WithLabelValues("accepted", "date_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Searches.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pitchfinder_parse_outcomes_total{outcome="accepted",reason="date_found"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
