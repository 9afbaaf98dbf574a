// Command reconcile runs the reconciliation job once, for cron or a
// container scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/config"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/app"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/reconcile"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "maximum duration of the run")
	flag.Parse()

	cfg := config.Load()
	logger := app.NewLogger(cfg.LogLevel)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("[Reconcile] failed to initialise")
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var summary reconcile.Summary
	err = reconcile.RunWithTimeout(ctx, *timeout, func(ctx context.Context) error {
		var err error
		summary, err = a.Job.Run(ctx, time.Now())
		return err
	})

	entry := logger.WithField("summary", summary)
	if err != nil {
		entry.WithError(err).Error("[Reconcile] run failed")
		a.Close()
		os.Exit(1)
	}
	entry.Info("[Reconcile] run completed")
}
