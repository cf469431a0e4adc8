// Command sweep-tokens deletes consumed and expired linking tokens.
//
// Usage:
//
//	sweep-tokens
//
// Reads the same DB_* environment variables as the API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/wllfaria/felbot/internal/config"
	"github.com/wllfaria/felbot/internal/database"
	"github.com/wllfaria/felbot/internal/logger"
	"github.com/wllfaria/felbot/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Token sweep failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			logger.Get().Warnf("database close error: %v", err)
		}
	}()

	linking := services.NewLinkingService(dbManager.DB(), cfg.LinkTokenTTL)
	deleted, err := linking.SweepExpired(time.Now().UTC())
	if err != nil {
		return err
	}

	logger.Named("sweep-tokens").Infof("Deleted %d consumed or expired linking tokens", deleted)
	return nil
}
