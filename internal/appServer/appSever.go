package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/tithi-booking/config"
	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/database/memory"
	repository "github.com/ds124wfegd/tithi-booking/internal/database/postgres"
	rediscache "github.com/ds124wfegd/tithi-booking/internal/database/redis"
	"github.com/ds124wfegd/tithi-booking/internal/service"
	"github.com/ds124wfegd/tithi-booking/internal/transport"
	"github.com/ds124wfegd/tithi-booking/internal/worker"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/ds124wfegd/tithi-booking/pkg/kafka"
	"github.com/ds124wfegd/tithi-booking/pkg/mq"
	"github.com/ds124wfegd/tithi-booking/pkg/postgres"
	"github.com/ds124wfegd/tithi-booking/pkg/queue"
	"github.com/ds124wfegd/tithi-booking/pkg/redis"
	"github.com/ds124wfegd/tithi-booking/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// backends groups the storage side of the application so the HTTP layer
// and the workers share one instance of each.
type backends struct {
	store        database.Store
	holds        database.HoldCache
	availability database.AvailabilityCache
	deadLetters  queue.DLQHandler
	closers      []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logrus.WithError(err).Warn("Failed to close backend")
		}
	}
}

func openBackends(ctx context.Context, cfg *config.Config, clk clock.Clock) (*backends, error) {
	b := &backends{}

	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)

		if cfg.Database.Migrate {
			if err := postgres.RunMigrations(ctx, db); err != nil {
				b.Close()
				return nil, err
			}
		}
		b.store = repository.NewStore(db)
	default:
		logrus.Warn("Using in-memory storage, data will not survive a restart")
		b.store = memory.NewStore()
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, client.Close)

		b.holds = rediscache.NewHoldCache(client)
		b.availability = rediscache.NewAvailabilityCache(client)
		b.deadLetters = queue.NewRedisDLQHandler(client, cfg.Redis.DeadLetters)
	} else {
		b.holds = memory.NewHoldCache(clk)
		b.availability = memory.NewAvailabilityCache(clk)
		b.deadLetters = queue.NewMemoryDLQHandler()
	}

	return b, nil
}

// eventRouter sends each outbox event family to its configured destination,
// falling back to the log when a destination is not set up.
func eventRouter(cfg *config.Config) (*worker.Router, []func() error) {
	router := worker.NewRouter()
	var closers []func() error

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		router.Register("NOTIFY_", worker.NewNotifyHandler(telegram.NewBot(cfg.Telegram.BotToken), cfg.Telegram.ChatID))
		logrus.Info("Telegram notifications enabled")
	} else {
		router.Register("NOTIFY_", worker.LogHandler("notification"))
		logrus.Warn("Telegram bot token not provided, notifications go to the log")
	}

	if cfg.Webhook.URL != "" {
		router.Register("WEBHOOK_", worker.NewWebhookHandler(cfg.Webhook.URL, cfg.Webhook.Timeout))
	} else {
		router.Register("WEBHOOK_", worker.LogHandler("webhook"))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, producer.Close)
		router.Register("ANALYTICS_", worker.NewAnalyticsHandler(producer))
		logrus.WithField("topic", cfg.Kafka.Topic).Info("Kafka analytics enabled")
	} else {
		router.Register("ANALYTICS_", worker.LogHandler("analytics"))
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logrus.WithError(err).Error("RabbitMQ unavailable, booking events go to the log")
			router.Register("BOOKING_", worker.LogHandler("broker"))
		} else {
			closers = append(closers, publisher.Close)
			router.Register("BOOKING_", worker.NewBrokerHandler(publisher))
			logrus.WithField("exchange", cfg.RabbitMQ.Exchange).Info("RabbitMQ publisher enabled")
		}
	}

	return router, closers
}

func newRetryPolicy(cfg *config.Config) queue.RetryPolicy {
	policy, err := queue.NewRetryPolicy(cfg.Outbox.Backoff, cfg.Outbox.BackoffBase, cfg.Outbox.Jitter)
	if err != nil {
		logrus.WithError(err).Warn("Invalid outbox backoff, using linear 60s")
		policy, _ = queue.NewRetryPolicy(queue.BackoffLinear, time.Minute, false)
	}
	return policy
}

func setLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func NewServer(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	setLogLevel(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()

	b, err := openBackends(ctx, cfg, clk)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer b.Close()

	opts := service.OptionsFromConfig(cfg)
	conflicts := service.NewConflictEngine(opts.MinDuration, opts.MaxDuration)

	// Initialize services
	availabilityService := service.NewAvailabilityService(b.store, b.availability, clk, opts)
	holdService := service.NewHoldService(b.store, b.holds, availabilityService, conflicts, clk, opts)
	bookingService := service.NewBookingService(b.store, b.holds, availabilityService, conflicts, nil, clk, opts)
	scheduleService := service.NewScheduleService(b.store, availabilityService, clk)
	catalogService := service.NewCatalogService(b.store, clk)
	waitlistService := service.NewWaitlistService(b.store, clk, opts)
	outboxService := service.NewOutboxService(b.store, b.deadLetters, clk, opts)

	// Outbox dispatcher
	router, routerClosers := eventRouter(cfg)
	b.closers = append(b.closers, routerClosers...)

	dispatcher := worker.NewDispatcher(
		b.store,
		router,
		newRetryPolicy(cfg),
		service.NewQueueAdapter(b.deadLetters),
		clk,
		cfg.Outbox.BatchLimit,
	)
	go dispatcher.Run(ctx, cfg.Outbox.Interval)
	logrus.Info("Outbox dispatcher started")

	cleanupWorker := worker.NewHoldCleanupWorker(holdService, cfg.Worker.HoldReaperInterval, cfg.Worker.BatchSize)
	go cleanupWorker.Start(ctx)

	// Initialize handlers
	handlers := transport.Handlers{
		Bookings:  transport.NewBookingHandler(bookingService),
		Resources: transport.NewResourceHandler(scheduleService, availabilityService),
		Holds:     transport.NewHoldHandler(holdService),
		Catalog:   transport.NewCatalogHandler(catalogService, waitlistService),
		Outbox:    transport.NewOutboxHandler(outboxService),
	}

	if cfg.Server.Env == "production" || cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := transport.InitRoutes(handlers, transport.RouterConfig{
		JWTSecret:      cfg.JWT.Secret,
		AuthDisabled:   cfg.JWT.Disabled,
		RequestTimeout: cfg.Server.Timeout,
	})

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, engine); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithFields(logrus.Fields{
		"address": cfg.GetServerAddress(),
		"version": cfg.Server.AppVersion,
		"driver":  cfg.Database.Driver,
	}).Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
