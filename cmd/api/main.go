package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spot-sort/issue-service/internal/api/http"
	"github.com/spot-sort/issue-service/internal/api/http/handlers"
	"github.com/spot-sort/issue-service/internal/auth"
	"github.com/spot-sort/issue-service/internal/config"
	"github.com/spot-sort/issue-service/internal/events"
	"github.com/spot-sort/issue-service/internal/observability"
	"github.com/spot-sort/issue-service/internal/otp"
	"github.com/spot-sort/issue-service/internal/service"
	"github.com/spot-sort/issue-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra, err := buildInfrastructure(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise infrastructure", zap.Error(err))
	}
	defer infra.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartEventCounter(dispatcher, metrics)

	credentials := auth.NewCredentialStore(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	tickets := otp.NewService(otp.ServiceDependencies{
		Store:    infra.tickets,
		Notifier: infra.notifier,
		Logger:   logger,
		TTL:      cfg.OTP.TTL(),
	})

	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:      infra.issues,
		UserRepo:       infra.users,
		Blobs:          infra.blobs,
		Dispatcher:     dispatcher,
		Logger:         logger,
		MaxUploadBytes: cfg.Blob.MaxBytes,
	})
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		IssueRepo:            infra.issues,
		UserRepo:             infra.users,
		Blobs:                infra.blobs,
		Tickets:              tickets,
		Credentials:          credentials,
		Notifier:             infra.notifier,
		Dispatcher:           dispatcher,
		Logger:               logger,
		MaxUploadBytes:       cfg.Blob.MaxBytes,
		DefaultAnonymousZone: cfg.Issues.DefaultAnonymousZone,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:     infra.users,
		Credentials:  credentials,
		TokenManager: tokens,
		Tickets:      tickets,
		Logger:       logger,
	})
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, infra.users, infra.notifier, logger), logger)

	if cfg.Bootstrap.Enabled() {
		admin, created, err := authService.EnsureAdmin(ctx, cfg.Bootstrap.AdminName, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword)
		if err != nil {
			logger.Fatal("failed to ensure bootstrap admin", zap.Error(err))
		}
		logger.Info("bootstrap admin ready", zap.String("user_id", admin.ID), zap.Bool("created", created))
	}

	sweeper := worker.StartTicketSweeper(ctx, infra.memoryTickets, cfg.OTP.SweepInterval(), logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.Blob.MaxBytes + 1<<20,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, infra.probes, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Issues:         handlers.NewIssuesHandler(issueService, submissionService, cfg.Blob.MaxBytes),
		Authority:      handlers.NewAuthorityHandler(issueService, cfg.Blob.MaxBytes),
		Admin:          handlers.NewAdminHandler(authService),
		Uploads:        handlers.NewUploadsHandler(infra.blobs),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, infra.users),
		OTPLimiter:     infra.limiter,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	sweeper.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
