package main

import (
	"context"

	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/campuskit/event-registration/internal/api"
	"github.com/campuskit/event-registration/internal/config"
	"github.com/campuskit/event-registration/internal/db"
	"github.com/campuskit/event-registration/internal/repository"
	"github.com/campuskit/event-registration/internal/service"
	"github.com/campuskit/event-registration/pkg/logger"
)

func main() {
	logger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting application")

	cfg, err := config.ParseEnv()
	if err != nil {
		logger.Fatal("failed to parse config", zap.Error(err))
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err = pool.Ping(context.Background()); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}

	logger.Info("database connection established")

	transactor := db.NewPgxTransactor(pool)

	teamRepo := repository.NewPgxTeamRepository(pool)
	eventRepo := repository.NewPgxEventRepository(pool)
	userRepo := repository.NewPgxUserRepository(pool)

	registration := service.NewRegistrationService(transactor).WithTeamRepo(teamRepo).WithEventRepo(eventRepo)
	team := service.NewTeamService(transactor).WithTeamRepo(teamRepo).WithEventRepo(eventRepo)
	event := service.NewEventService(transactor).WithEventRepo(eventRepo).WithTeamRepo(teamRepo)
	user := service.NewUserService(transactor, cfg.AccessTokenTTL).WithUserRepo(userRepo)

	healthChecker := api.MustNewHealthChecker(health.Config{
		Name:    "postgres",
		Timeout: cfg.StoreTimeout,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	e := echo.New()

	handler := api.NewHandler(logger).
		WithRegistrationService(registration).
		WithTeamService(team).
		WithEventService(event).
		WithUserService(user).
		WithHealthChecker(healthChecker)

	handler.RegisterRoutes(e)

	logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
	if err = e.Start(cfg.HTTPAddr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
