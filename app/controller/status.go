package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConnectionChecker reports broker connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

type StatusController struct {
	broker   ConnectionChecker
	gatherer prometheus.Gatherer
}

// NewStatusController constructs the health and metrics controller.
func NewStatusController(broker ConnectionChecker, gatherer prometheus.Gatherer) *StatusController {
	return &StatusController{broker: broker, gatherer: gatherer}
}

// Health reports 200 while the broker is connected and 503 otherwise.
func (c *StatusController) Health(ctx echo.Context) error {
	if c.broker == nil || !c.broker.IsConnected() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "broker": "disconnected"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok", "broker": "connected"})
}

// Metrics serves the Prometheus exposition for the gatherer.
func (c *StatusController) Metrics() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{}))
}

// Register mounts the status routes on e.
func (c *StatusController) Register(e *echo.Echo) {
	e.GET("/health", c.Health)
	e.GET("/metrics", c.Metrics())
}
