package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDeliveryCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncDeliveryAttempt("EMAIL", "failed")
	metrics.IncDeliveryAttempt("sms", "success")
	metrics.IncNotificationDelivered("sms")
	metrics.IncNotificationFailed(FailureReasonExhausted)
	metrics.IncNotificationFailed("")
	metrics.ObserveChannelSendDuration("sms", 120*time.Millisecond)
	metrics.IncWorkerInFlight()
	metrics.DecWorkerInFlight()
	metrics.IncPendingRepublished()

	if got := testutil.ToFloat64(metrics.deliveryAttemptsTotal.WithLabelValues("email", "failed")); got != 1 {
		t.Fatalf("delivery_attempts_total{email,failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveryAttemptsTotal.WithLabelValues("sms", "success")); got != 1 {
		t.Fatalf("delivery_attempts_total{sms,success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsDeliveredTotal.WithLabelValues("sms")); got != 1 {
		t.Fatalf("notifications_delivered_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsFailedTotal.WithLabelValues(FailureReasonExhausted)); got != 1 {
		t.Fatalf("notifications_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsFailedTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("notifications_failed_total{unknown} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.workerInflight); got != 0 {
		t.Fatalf("worker_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.pendingRepublishedTotal); got != 1 {
		t.Fatalf("pending_republished_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncDeliveryAttempt("sms", "success")
	metrics.IncNotificationDelivered("sms")
	metrics.IncNotificationFailed(FailureReasonError)
	metrics.ObserveChannelSendDuration("sms", time.Second)
	metrics.IncWorkerInFlight()
	metrics.DecWorkerInFlight()
	metrics.IncPendingRepublished()
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	metrics.IncNotificationDelivered("telegram")

	app := fiber.New()
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `fallback_dispatch_notifications_delivered_total{channel="telegram"} 1`) {
		t.Fatalf("metrics output missing delivered counter:\n%s", body)
	}
}
