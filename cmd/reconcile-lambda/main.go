// Command reconcile-lambda runs the reconciliation job on an EventBridge
// schedule.
package main

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/config"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/app"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/reconcile"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

var (
	job    *reconcile.Job
	logger *logrus.Logger
)

func init() {
	cfg := config.Load()
	logger = app.NewLogger(cfg.LogLevel)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("[ReconcileLambda] failed to initialise")
	}
	job = a.Job
}

// HandleRequest is triggered by an EventBridge schedule. The event time is
// used as the reference clock so a delayed invocation resolves the same day.
func HandleRequest(ctx context.Context, event events.CloudWatchEvent) (reconcile.Summary, error) {
	now := event.Time
	if now.IsZero() {
		now = time.Now()
	}
	logger.WithField("event_id", event.ID).Info("[ReconcileLambda] starting run")

	summary, err := job.Run(ctx, now)
	if err != nil {
		logger.WithField("summary", summary).WithError(err).Error("[ReconcileLambda] run failed")
		return summary, err
	}
	logger.WithField("summary", summary).Info("[ReconcileLambda] run completed")
	return summary, nil
}

func main() {
	lambda.Start(HandleRequest)
}
