package main

import (
	"log"

	"go.uber.org/zap"

	"github.com/pageza/nutrilog/backend/config"
	"github.com/pageza/nutrilog/backend/internal/database"
	"github.com/pageza/nutrilog/backend/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.Open(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}
	zlog.Info("schema is up to date", zap.String("driver", cfg.DBDriver))
}
