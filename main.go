package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/config"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/app"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/consumer"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/handler"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/middleware"
	"github.com/Eursukkul/booking-microservice/sublet-service/pkg/rabbitmq"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg := config.Load()
	logger := app.NewLogger(cfg.LogLevel)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("[Main] failed to initialise")
	}
	defer a.Close()

	// RabbitMQ consumer: sync listings from the listing service
	if cfg.RabbitURL != "" {
		mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, logger)
		if err != nil {
			logger.WithError(err).Fatal("[Main] failed to connect to RabbitMQ")
		}
		defer mqConsumer.Close()

		msgs, err := mqConsumer.Consume()
		if err != nil {
			logger.WithError(err).Fatal("[Main] failed to start consuming")
		}
		consumer.NewListingConsumer(a.Repos.Listings, logger).Start(msgs)
	} else {
		logger.Warn("[Main] RABBITMQ_URL not set, listings will not be synced")
	}

	e := newServer(cfg, a)

	go func() {
		logger.Infof("[Main] sublet service starting on :%s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("[Main] server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("[Main] graceful shutdown failed")
	}
	logger.Info("[Main] stopped")
}

// newServer builds the echo instance with every route mounted.
func newServer(cfg *config.Config, a *app.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(echoMw.RequestID())
	e.Use(middleware.RequestLogger(a.Logger))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "sublet-service"})
	})

	handler.NewReservationHandler(a.Payments, a.Reservations, a.Decisions, a.Cancellations, a.Reviews).RegisterRoutes(e)
	handler.NewCalendarHandler(a.Repos.Availability, a.Repos.Profiles).RegisterRoutes(e)
	handler.NewReconcileHandler(a.Job, nil).RegisterRoutes(e, middleware.CronSecret(cfg.CronSecret))
	return e
}
