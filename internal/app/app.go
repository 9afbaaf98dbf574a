// Package app assembles the service graph shared by the HTTP server and the
// reconciliation entry points.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/config"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/reconcile"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository/memory"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/service"
	"github.com/Eursukkul/booking-microservice/sublet-service/pkg/database"
	"github.com/Eursukkul/booking-microservice/sublet-service/pkg/rabbitmq"
	"github.com/sirupsen/logrus"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Repositories struct {
	Tx           repository.Transactor
	Listings     repository.ListingRepository
	Availability repository.AvailabilityRepository
	Reservations repository.ReservationRepository
	Profiles     repository.ProfileRepository
	Reviews      repository.ReviewRepository
	// SimulatedIntents backs the simulated processor.
	SimulatedIntents gateway.IntentStore
}

type App struct {
	Config *config.Config
	Logger *logrus.Logger
	Repos  Repositories

	Payments      service.PaymentService
	Reservations  service.ReservationService
	Decisions     service.DecisionService
	Cancellations service.CancellationService
	Reviews       service.ReviewService
	Job           *reconcile.Job

	closers []func()
}

func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithField("level", level).Warn("[App] unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// New connects the configured backends and builds every service.
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	repos, err := a.repositories()
	if err != nil {
		return nil, err
	}
	a.Repos = repos

	deps := service.Dependencies{
		Tx:           repos.Tx,
		Listings:     repos.Listings,
		Availability: repos.Availability,
		Reservations: repos.Reservations,
		Reviews:      repos.Reviews,
		Gateway:      a.gateway(),
		Notifier:     a.notifier(),
		Logger:       logger,
		Location:     cfg.Location,
	}

	a.Payments = service.NewPaymentService(deps)
	a.Reservations = service.NewReservationService(deps)
	a.Decisions = service.NewDecisionService(deps)
	a.Cancellations = service.NewCancellationService(deps)
	a.Reviews = service.NewReviewService(deps, cfg.ReviewWindowDays())

	a.Job = reconcile.NewJob(reconcile.Config{
		HostResponseWindow: cfg.HostResponseWindow,
		Location:           cfg.Location,
	}, reconcile.Deps{
		Tx:           repos.Tx,
		Reservations: repos.Reservations,
		Profiles:     repos.Profiles,
		Gateway:      deps.Gateway,
		Notifier:     deps.Notifier,
		Rejecter:     a.Decisions,
		Refunds:      a.Cancellations,
		Holds:        a.Cancellations,
		Reviews:      a.Reviews,
		Logger:       logger,
	})
	return a, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) repositories() (Repositories, error) {
	switch a.Config.Storage {
	case StorageMemory:
		a.Logger.Warn("[App] using in-memory storage, data is lost on exit")
		store := memory.NewStore()
		return Repositories{
			Tx:           store,
			Listings:     store.Listings(),
			Availability: store.Availability(),
			Reservations: store.Reservations(),
			Profiles:     store.Profiles(),
			Reviews:      store.Reviews(),

			SimulatedIntents: gateway.NewMemoryIntentStore(),
		}, nil
	case StoragePostgres, "":
		db, err := database.NewPostgresDB(a.Config.DSN())
		if err != nil {
			return Repositories{}, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		}
		return Repositories{
			Tx:           repository.NewTransactor(db),
			Listings:     repository.NewListingRepository(db),
			Availability: repository.NewAvailabilityRepository(db),
			Reservations: repository.NewReservationRepository(db),
			Profiles:     repository.NewProfileRepository(db),
			Reviews:      repository.NewReviewRepository(db),

			SimulatedIntents: repository.NewSimulatedIntentRepository(db),
		}, nil
	default:
		return Repositories{}, fmt.Errorf("unknown STORAGE %q", a.Config.Storage)
	}
}

func (a *App) gateway() gateway.Gateway {
	processors := map[gateway.RefKind]gateway.Processor{
		gateway.KindSimulated: gateway.NewSimulatedWithStore(a.Repos.SimulatedIntents),
	}
	if a.Config.GatewaySecretKey != "" {
		processors[gateway.KindLive] = gateway.NewStripeProcessor(gateway.StripeConfig{
			SecretKey: a.Config.GatewaySecretKey,
			BaseURL:   a.Config.GatewayBaseURL,
			Timeout:   a.Config.GatewayTimeout,
		}, a.Logger)
	} else {
		a.Logger.Warn("[App] GATEWAY_SECRET_KEY not set, only simulated payments are available")
	}

	retry := gateway.DefaultRetryPolicy()
	if a.Config.GatewayMaxRetries > 0 {
		retry.MaxAttempts = a.Config.GatewayMaxRetries
	}
	return gateway.NewAdapter(processors, gateway.AdapterConfig{
		Currency:          a.Config.Currency,
		CautionHoldAmount: a.Config.CautionHoldAmount,
		Retry:             retry,
	}, a.Logger)
}

func (a *App) notifier() notify.Notifier {
	if a.Config.RabbitURL == "" {
		return notify.NewLogNotifier(a.Logger)
	}
	pub, err := rabbitmq.NewPublisher(a.Config.RabbitURL, a.Logger)
	if err != nil {
		a.Logger.WithError(err).Warn("[App] notification broker unavailable, logging notifications instead")
		return notify.NewLogNotifier(a.Logger)
	}
	a.closers = append(a.closers, pub.Close)
	return notify.NewBrokerNotifier(pub, a.Logger)
}
