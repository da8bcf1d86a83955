package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/payment-processing/internal"
	"github.com/frahmantamala/payment-processing/internal/collaborator"
	"github.com/frahmantamala/payment-processing/internal/core/events"
	"github.com/frahmantamala/payment-processing/internal/payment"
	paymentpostgres "github.com/frahmantamala/payment-processing/internal/payment/postgres"
	"github.com/frahmantamala/payment-processing/internal/paymentgateway"
	"github.com/frahmantamala/payment-processing/internal/paymentmethod"
	methodpostgres "github.com/frahmantamala/payment-processing/internal/paymentmethod/postgres"
	"github.com/frahmantamala/payment-processing/internal/transport"
	"github.com/frahmantamala/payment-processing/internal/transport/rest"
	"github.com/frahmantamala/payment-processing/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Router   *chi.Mux
	EventBus *events.EventBus
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		// let in-flight notification handlers drain before the DB goes away
		deps.EventBus.Wait()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitWithLevel(os.Getenv("APP_ENV"), config.Observability.Logging.Level)
	appLogger := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	var gateway paymentgateway.Gateway
	if config.Gateway.BaseURL != "" {
		gateway = paymentgateway.NewHTTPGateway(
			config.Gateway.BaseURL,
			config.Gateway.APIKey,
			config.Gateway.Timeout,
			appLogger)
	} else {
		gateway = paymentgateway.NewSimulator(paymentgateway.SimulatorConfig{
			SuccessRate:  config.Gateway.SuccessRate,
			PaymentDelay: config.Gateway.PaymentDelay,
			RefundDelay:  config.Gateway.RefundDelay,
			Seed:         config.Gateway.Seed,
		}, appLogger)
	}

	eventBus := events.NewEventBus(appLogger)

	orderService := collaborator.NewHTTPOrderService(
		config.Collaborators.OrderServiceURL,
		config.Collaborators.RequestTimeout,
		appLogger)
	notificationService := collaborator.NewHTTPNotificationService(
		config.Collaborators.NotificationServiceURL,
		config.Collaborators.RequestTimeout,
		appLogger)
	notifier := collaborator.NewNotifier(orderService, notificationService, collaborator.NotifierConfig{
		MaxAttempts:      config.Collaborators.MaxRetries,
		RetryBaseDelay:   config.Collaborators.RetryBaseDelay,
		BreakerThreshold: config.Collaborators.BreakerThreshold,
		BreakerCooldown:  config.Collaborators.BreakerCooldown,
	}, collaborator.SystemClock(), appLogger)

	methodRepo := methodpostgres.NewPaymentMethodRepository(gormDB)
	methodService := paymentmethod.NewService(methodRepo, gateway, appLogger)

	paymentRepo := paymentpostgres.NewPaymentRepository(gormDB)
	paymentService := payment.NewService(
		paymentRepo, gateway, orderService, methodService, eventBus,
		config.Gateway.Timeout, appLogger)

	payment.NewEventHandler(notifier, appLogger).RegisterEventHandlers(eventBus)

	baseHandler := transport.NewBaseHandler(appLogger)
	paymentHandler := payment.NewHandler(baseHandler, paymentService, appLogger)
	webhookHandler := payment.NewWebhookHandler(baseHandler, paymentService, appLogger)
	methodHandler := paymentmethod.NewHandler(baseHandler, methodService, appLogger)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB,
		paymentHandler, webhookHandler, methodHandler,
		config.Server.AllowedOrigins, appLogger)

	return &Dependencies{
		Config:   config,
		Logger:   appLogger,
		DB:       db,
		Router:   router,
		EventBus: eventBus,
	}, nil
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
