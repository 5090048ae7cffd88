package observability

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/danmuck/ovsfront/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordTransaction("vsctl", 2, 3*time.Millisecond, nil)
	RecordTransaction("native", 1, 9*time.Millisecond, errors.New("constraint violation"))
	RecordTransactionRetry("native")
	RecordMonitorEvent("Logical_Port", "update", true)

	if got := testutil.ToFloat64(transactions.WithLabelValues("native", "false")); got < 1 {
		t.Fatalf("failed native transactions=%v", got)
	}
	if got := testutil.ToFloat64(transactionRetries.WithLabelValues("native")); got < 1 {
		t.Fatalf("native retries=%v", got)
	}
}

func TestRequestObserverLabelsRoutes(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	r := gin.New()
	r.Use(RequestObserver(zerolog.New(&logs)))
	r.GET("/ports/:name", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", unmatchedRoute, "404"))
	for _, path := range []string{"/ports/p1", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/ports/:name", "200")); got < 1 {
		t.Fatalf("route requests=%v", got)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", unmatchedRoute, "404")) - before; got != 2 {
		t.Fatalf("unmatched requests=%v want 2", got)
	}
	if !strings.Contains(logs.String(), `"level":"warn"`) {
		t.Fatalf("404s should log at warn: %s", logs.String())
	}
}
