package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/eventharmony/eventharmony/internal/app"
	"github.com/eventharmony/eventharmony/internal/auth"
	"github.com/eventharmony/eventharmony/internal/events"
	"github.com/eventharmony/eventharmony/internal/meetings"
	"github.com/eventharmony/eventharmony/internal/observability"
	"github.com/eventharmony/eventharmony/internal/platform/cache"
	"github.com/eventharmony/eventharmony/internal/platform/db"
	"github.com/eventharmony/eventharmony/internal/shared"
	"github.com/eventharmony/eventharmony/internal/users"
	"github.com/eventharmony/eventharmony/jobs"
)

// accountDirectory exposes participant identity snapshots to the events
// module without importing the users package from it.
type accountDirectory struct {
	accounts *users.PGRepository
}

func (d accountDirectory) Identity(ctx context.Context, userID string) (events.Identity, error) {
	acct, err := d.accounts.Get(ctx, userID)
	if err != nil {
		return events.Identity{}, err
	}
	return events.Identity{
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		Email:     acct.Email,
		Company:   acct.Company,
	}, nil
}

// meetingDirectory answers existence checks for meeting participants and
// their events.
type meetingDirectory struct {
	accounts *users.PGRepository
	events   *events.PGRepository
}

func (d meetingDirectory) AccountExists(ctx context.Context, userID string) (bool, error) {
	_, err := d.accounts.Get(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d meetingDirectory) EventExists(ctx context.Context, eventID string) (bool, error) {
	missing, err := d.events.MissingEvents(ctx, []string{eventID})
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, tokens, jobsClient, auth.ServiceConfig{
		FrontendURL:     cfg.FrontendURL,
		VerificationTTL: cfg.VerificationTTL,
		ResetTTL:        cfg.PasswordResetTTL,
	}, logger)
	authMiddleware := auth.NewMiddleware(authService)
	authHandler := auth.NewHandler(logger, authService)

	usersRepo := users.NewRepository(dbpool)
	eventsRepo := events.NewRepository(dbpool)
	auditLogger := shared.NewAuditLogger(dbpool)

	usersService := users.NewService(usersRepo, eventsRepo, auditLogger, metrics)
	usersHandler := users.NewHandler(logger, usersService)

	statsCache := events.NewStatsCache(redisClient, cfg.StatsCacheTTL, logger)
	eventsService := events.NewService(eventsRepo, accountDirectory{accounts: usersRepo}, jobsClient, statsCache, metrics, logger)
	eventsHandler := events.NewHandler(logger, eventsService)

	meetingsRepo := meetings.NewRepository(dbpool)
	meetingsService := meetings.NewService(meetingsRepo, meetingDirectory{accounts: usersRepo, events: eventsRepo}, metrics)
	meetingsHandler := meetings.NewHandler(logger, meetingsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthMiddleware:  authMiddleware,
		AuthHandler:     authHandler,
		UsersHandler:    usersHandler,
		EventsHandler:   eventsHandler,
		MeetingsHandler: meetingsHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
