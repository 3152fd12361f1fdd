package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/eatcaterly-backend/database"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/app"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/jobs"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/queue"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/routes"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	var noJobs bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn().Err(err).Msg("Error while closing resources")
				}
			}()

			server := newServer()
			routes.SetupRoutes(server, cfg, a.Handlers(version))

			var notificationJob *jobs.NotificationJob
			if cfg.BroadcastEnabled && !noJobs {
				hour, minute, err := cfg.BroadcastClock()
				if err != nil {
					return err
				}
				notificationJob = jobs.NewNotificationJob(a.Broadcast, cfg.Location(), hour, minute, cfg.DormantAfter)
				notificationJob.Start(ctx)
			}

			var paymentLinkJob *jobs.PaymentLinkJob
			if !noJobs {
				paymentLinkJob = jobs.NewPaymentLinkJob(a.Finalizer, cfg.PaymentLinkRetryInterval, cfg.PaymentLinkRetryAfter)
				paymentLinkJob.Start(ctx)
			}

			// Handle graceful shutdown
			go func() {
				<-ctx.Done()
				log.Info().Msg("Gracefully shutting down...")
				if notificationJob != nil {
					notificationJob.Stop()
				}
				if paymentLinkJob != nil {
					paymentLinkJob.Stop()
				}
				if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
					log.Warn().Err(err).Msg("Server shutdown")
				}
			}()

			log.Info().
				Str("port", cfg.Port).
				Str("env", cfg.Env).
				Bool("memory_store", cfg.UseMemoryStore).
				Str("sessions", cfg.SessionBackend).
				Msg("EatCaterly Backend starting")

			if err := server.Listen(":" + cfg.Port); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noJobs, "no-jobs", false, "do not run scheduled jobs in this process")
	return cmd
}

func newServer() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:     "EatCaterly Backend v" + version,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	server.Use(recover.New())
	server.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		Output: log.Logger,
	}))
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	return server
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume order events and text the business owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.RabbitMQURL == "" {
				return errors.New("RABBITMQ_URL is required for the worker")
			}

			ctx, stop := signalContext()
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			log.Info().Str("queue", queue.OrdersQueue).Msg("Worker started")
			err = queue.Consume(ctx, cfg.RabbitMQURL, a.Owner.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func broadcastCmd() *cobra.Command {
	var dormancy bool

	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Text today's menu to every subscribed customer once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Broadcast.SendDailyMenu(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("menu %s: sent %d, failed %d\n", report.MenuID, report.Sent, report.Failed)

			if dormancy {
				n, err := a.Broadcast.MarkDormantCustomers(ctx, cfg.DormantAfter)
				if err != nil {
					return err
				}
				cmd.Printf("marked %d customers dormant\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dormancy, "dormancy", false, "also run the dormant customer sweep")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.UseMemoryStore {
				return errors.New("USE_MEMORY_STORE is set, nothing to migrate")
			}
			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err == nil {
				defer sqlDB.Close()
			}

			log.Info().Msg("Running database migrations...")
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info().Msg("Database migrations completed")
			return nil
		},
	}
}
