package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerServesGatherer(t *testing.T) {
	registry := prometheus.NewRegistry()
	batches := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_batches_total", Help: "batches"})
	registry.MustRegister(batches)
	batches.Add(3)

	app := fiber.New()
	app.Get("/metrics", MetricsHandler(registry))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "test_batches_total 3")
	require.NotContains(t, string(body), "graderbot_api_requests_total")
}

func TestGradingCollectorsRegisterOnDefaultRegistry(t *testing.T) {
	GradingItems().WithLabelValues("failure").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	require.Contains(t, names, "graderbot_grading_items_total")
}
