package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/towlink/dispatch-backend/internal/config"
	"github.com/towlink/dispatch-backend/internal/db"
	"github.com/towlink/dispatch-backend/internal/gateway"
	"github.com/towlink/dispatch-backend/internal/goroutine"
	httpHandlers "github.com/towlink/dispatch-backend/internal/http/handlers"
	httpRouter "github.com/towlink/dispatch-backend/internal/http/router"
	"github.com/towlink/dispatch-backend/internal/logger"
	"github.com/towlink/dispatch-backend/internal/repository"
	"github.com/towlink/dispatch-backend/internal/scheduler"
	"github.com/towlink/dispatch-backend/internal/service"
	"github.com/towlink/dispatch-backend/internal/storage"
	"github.com/towlink/dispatch-backend/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: could not load configuration: %v", err)
	}

	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: could not connect to the database: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: migrations failed: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	documentStorage, err := storage.NewDocumentStorage(cfg.DocumentStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: could not prepare document storage: %v", err)
	}

	paymentGateway := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)

	// Repositories.
	operatorRepo := repository.NewOperatorRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	debtRepo := repository.NewDebtRepository(dbConn)
	captureRepo := repository.NewCaptureRepository(dbConn, walletRepo)
	withdrawalRepo := repository.NewWithdrawalRepository(dbConn, walletRepo)
	batchRepo := repository.NewBatchRepository(dbConn)
	payoutAccountRepo := repository.NewPayoutAccountRepository(dbConn)
	serviceRepo := repository.NewServiceRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// WebSocket hub delivers wallet events to connected operators.
	hub := ws.NewHub(ctx)

	// Services.
	authService := service.NewAuthService(operatorRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))

	commissionService := service.NewCommissionService(cfg.Rates)
	walletService := service.NewWalletService(walletRepo, debtRepo)
	debtService := service.NewDebtService(debtRepo, walletRepo, cfg.Rates, hub)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, walletRepo, payoutAccountRepo, commissionService, paymentGateway, cfg.Rates, hub)
	paymentService := service.NewPaymentService(serviceRepo, captureRepo, walletRepo, commissionService, debtService, paymentGateway)
	payrollService := service.NewPayrollService(batchRepo, walletRepo, withdrawalService, debtService, hub)
	payoutAccountService := service.NewPayoutAccountService(payoutAccountRepo, documentStorage)

	goroutine.SafeGo(hub.Run)

	payrollScheduler := scheduler.NewPayrollScheduler(payrollService, cfg.PayrollWindows, cfg.PayrollLocation, cfg.PayrollPollInterval)
	goroutine.SafeGoWithContext(ctx, payrollScheduler.Run)

	// HTTP handlers.
	authHandler := httpHandlers.NewAuthHandler(authService)
	walletHandler := httpHandlers.NewWalletHandler(walletService)
	debtHandler := httpHandlers.NewDebtHandler(debtService)
	withdrawalHandler := httpHandlers.NewWithdrawalHandler(withdrawalService)
	serviceHandler := httpHandlers.NewServiceHandler(paymentService)
	payrollHandler := httpHandlers.NewPayrollHandler(payrollService)
	payoutAccountHandler := httpHandlers.NewPayoutAccountHandler(payoutAccountService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		walletHandler,
		debtHandler,
		withdrawalHandler,
		serviceHandler,
		payrollHandler,
		payoutAccountHandler,
		notificationHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: http server shutdown error: %v", err)
		}
	}()

	log.Printf("main: HTTP server listening on port %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: server exited with error: %v", err)
	}
}

func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: error closing database: %v", err)
	}
}
