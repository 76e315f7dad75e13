package cmd

import (
	"context"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/vurg/notification-service/app/controller"
)

// setupStatusServer configures the Echo server exposing health and metrics.
func setupStatusServer(statusController *controller.StatusController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())

	statusController.Register(e)
	return e
}

func shutdownServer(e *echo.Echo, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Status server shutdown error")
	}
}
