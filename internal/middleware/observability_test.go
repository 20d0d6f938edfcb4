package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/metrics"
)

func TestObservability_RecordsRequestMetrics(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	metrics.GetRegistry().Reset()

	handler := Observability(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)

	all := metrics.GetAllMetrics()
	counters, ok := all["counters"].(map[string]*metrics.Metric)
	require.True(t, ok)

	found := false
	for key := range counters {
		if strings.HasPrefix(key, "http_requests_total") {
			found = true
		}
	}
	assert.True(t, found, "http_requests_total counter not recorded")
}

func TestObservability_DefaultsToOKStatus(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	handler := Observability(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
