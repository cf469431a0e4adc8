package main

import (
	"fmt"
	"os"

	"github.com/wllfaria/felbot/internal/config"
	"github.com/wllfaria/felbot/internal/database"
	"github.com/wllfaria/felbot/internal/logger"
	"github.com/wllfaria/felbot/internal/server"
	"github.com/wllfaria/felbot/internal/validator"
)

// @title           Felbot API
// @version         1.0
// @description     Felbot links Discord members to Telegram accounts and scopes bot permissions per guild.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Shared key of the bot runtimes.

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the operator JWT.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.InternalAPIKey == "" {
		log.Warn("INTERNAL_API_KEY is not set, internal endpoints will reject every request")
	}
	if appConfig.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set, operator endpoints will reject every request")
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()
	router := server.NewRouter(appConfig, dbManager.DB())

	log.Infof("Starting Felbot API on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
