// Package app builds the object graph shared by the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/eatcaterly-backend/database"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/config"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/handlers"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/queue"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/routes"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/services"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

// App holds every long-lived dependency of the backend.
type App struct {
	Config *config.Config

	Store     storage.Store
	Sessions  storage.SessionStore
	Locker    storage.Locker
	Menus     *services.MenuResolver
	SMS       services.SMSSender
	Publisher queue.Publisher
	Gateway   services.PaymentGateway

	Finalizer *services.OrderFinalizer
	Ordering  *services.OrderingService
	Payments  *services.PaymentService
	Broadcast *services.BroadcastService
	Owner     *services.OwnerNotifier

	closers []func() error
}

// New connects to the configured backends and wires the services.
// On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	store, db, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	if db != nil {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		a.onClose(func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}

	if err := a.openSessions(ctx); err != nil {
		return nil, err
	}

	twilio := services.NewTwilioService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	a.SMS = services.NewRecordingSender(twilio, a.Store)

	if cfg.RabbitMQURL != "" {
		log.Info().Msg("Publishing order events to RabbitMQ")
		a.Publisher = queue.NewRabbitPublisher(cfg.RabbitMQURL)
	} else {
		log.Warn().Msg("RABBITMQ_URL not set - order events are dropped")
		a.Publisher = queue.NopPublisher{}
	}
	a.onClose(a.Publisher.Close)

	if cfg.StripeSecretKey != "" {
		a.Gateway = services.NewStripeGateway(cfg.StripeSecretKey, cfg.Currency, cfg.PaymentSuccessURL, cfg.PaymentCancelURL)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set - using local payment links")
		a.Gateway = services.FakeGateway{BaseURL: cfg.PublicBaseURL}
	}

	a.Menus = services.NewMenuResolver(a.Store, cfg.Location(), cfg.MenuCacheTTL)
	a.Finalizer = services.NewOrderFinalizer(a.Store, a.Gateway, a.Publisher, a.SMS, cfg.DependencyTimeout)
	a.Ordering = services.NewOrderingService(a.Store, a.Sessions, a.Locker, a.Menus, a.Finalizer, services.OrderingOptions{
		LockWait:          cfg.LockWait,
		DependencyTimeout: cfg.DependencyTimeout,
	})
	a.Payments = services.NewPaymentService(a.Store, a.SMS, a.Publisher)
	a.Broadcast = services.NewBroadcastService(a.Store, a.Menus, a.SMS, cfg.DependencyTimeout)
	a.Owner = services.NewOwnerNotifier(a.SMS, cfg.OwnerPhone)

	log.Info().
		Str("session_backend", cfg.SessionBackend).
		Bool("twilio", twilio.Enabled()).
		Bool("stripe", cfg.StripeSecretKey != "").
		Msg("All services initialized")
	return a, nil
}

// OpenStore returns the persistent store. The *gorm.DB is nil for the
// in-memory store.
func OpenStore(cfg *config.Config) (storage.Store, *gorm.DB, error) {
	if cfg.UseMemoryStore {
		log.Warn().Msg("Using in-memory storage (not for production!)")
		return storage.NewMemoryStore(), nil, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewDatabaseStore(db), db, nil
}

// openSessions picks the session store and the matching per-phone lock.
// Sessions and locks must live in the same place, otherwise two instances
// could both believe they own a conversation.
func (a *App) openSessions(ctx context.Context) error {
	cfg := a.Config
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		rdb, err := storage.NewRedisClient(ctx, storage.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TLS:      cfg.RedisTLS,
		})
		if err != nil {
			return err
		}
		a.onClose(rdb.Close)
		a.Sessions = storage.NewRedisSessionStore(rdb, "", cfg.SessionTTL)
		a.Locker = storage.NewRedisLocker(rdb, cfg.LockLease)
		log.Info().Str("addr", cfg.RedisAddr).Msg("Sessions stored in Redis")
		return nil

	case config.SessionBackendMemory, "":
		sessions := storage.NewMemorySessionStore(cfg.SessionTTL, cfg.SessionSweep)
		a.onClose(sessions.Close)
		a.Sessions = sessions
		a.Locker = storage.NewKeyedMutex()
		return nil

	default:
		return fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// Handlers builds the HTTP handlers on top of the services.
func (a *App) Handlers(version string) routes.Handlers {
	return routes.Handlers{
		Health:  handlers.NewHealthHandler(version, a.Store, a.Sessions),
		SMS:     handlers.NewSMSHandler(a.Store, a.Ordering, a.SMS),
		Payment: handlers.NewPaymentHandler(a.Payments),
		Admin:   handlers.NewAdminHandler(a.Store, a.Menus, a.Finalizer, a.Config.Location()),
	}
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
