package main // Entry point package

import (
	"os"
	"time"

	"github.com/joho/godotenv"    // optional .env loading for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/accounts/internal/cache"
	"github.com/iliyamo/accounts/internal/config"
	"github.com/iliyamo/accounts/internal/cookie"
	"github.com/iliyamo/accounts/internal/database"
	"github.com/iliyamo/accounts/internal/handler"
	"github.com/iliyamo/accounts/internal/jobs"
	applog "github.com/iliyamo/accounts/internal/log"
	"github.com/iliyamo/accounts/internal/middleware"
	"github.com/iliyamo/accounts/internal/queue"
	"github.com/iliyamo/accounts/internal/repository"
	"github.com/iliyamo/accounts/internal/router"
	queue_publisher "github.com/iliyamo/accounts/internal/service"
	"github.com/iliyamo/accounts/internal/utils"
)

func main() {
	_ = godotenv.Load() // missing .env is fine; real deployments use the environment

	cfg := config.Load()
	logger := applog.New(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	sessionTTL := time.Duration(cfg.SessionTTLHours) * time.Hour
	tokenTTL := time.Duration(cfg.TokenTTLHours) * time.Hour

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db, sessionTTL)
	tokens := utils.NewTokenService(cfg.JWTSecret, cfg.TokenIssuer, tokenTTL)
	cookies := cookie.NewManager(cfg.CookieDomain, cfg.Prod())

	// Redis is optional; a nil client degrades session lookups to the database.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn().Msg("redis unavailable, session cache disabled")
	}
	sessionCache := cache.NewSessionCache(rdb, sessionTTL)

	events := queue_publisher.NewPublisher(os.Getenv("RABBITMQ_URL"), logger)
	if events == nil {
		logger.Warn().Msg("RABBITMQ_URL not set, auth events disabled")
	} else {
		// The audit consumer runs in-process and reconnects on its own.
		go func() {
			if err := queue.StartAuthConsumer(os.Getenv("RABBITMQ_URL"), logger); err != nil {
				logger.Error().Err(err).Msg("auth consumer stopped")
			}
		}()
	}

	limiter := middleware.NewLimiter(config.LoadRateLimitConfig())
	stop := make(chan struct{})
	defer close(stop)
	limiter.StartCleanup(stop)

	cleaner := jobs.NewCleaner(sessions, sessionTTL, logger)
	if err := cleaner.Start(); err != nil {
		logger.Fatal().Err(err).Msg("session cleaner failed to start")
	}
	defer cleaner.Stop()

	authHandler := handler.NewAuthHandler(cfg, users, sessions, tokens, cookies, sessionCache, events)
	adminHandler := handler.NewAdminHandler(users, sessions, sessionCache, events)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, limiter)
	router.RegisterForms(e, authHandler, cookies, limiter)
	router.RegisterAdmin(e, adminHandler, tokens, cookies, users)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("issuer", cfg.TokenIssuer).Msg("listening")

	if err := e.Start(addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
