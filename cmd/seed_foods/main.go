package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/pageza/nutrilog/backend/config"
	"github.com/pageza/nutrilog/backend/internal/database"
	"github.com/pageza/nutrilog/backend/internal/logger"
	"github.com/pageza/nutrilog/backend/internal/openfoodfacts"
	"github.com/pageza/nutrilog/backend/internal/repository"
)

// Barcodes imported when none are given on the command line
var defaultBarcodes = []string{
	"3017620422003", // Nutella
	"3274080005003", // Cristaline
	"3228857000166", // Pain de mie Harrys
	"3033710065967", // Nesquik
	"8000500310427", // Kinder Bueno
}

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "timeout per product lookup")
	flag.Parse()

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

	barcodes := flag.Args()
	if len(barcodes) == 0 {
		barcodes = defaultBarcodes
	}

	client := openfoodfacts.NewClient(cfg.OpenFoodFactsURL, zlog)
	foods := repository.NewFoodRepository(db, zlog)

	var created, skipped, failed int
	for _, code := range barcodes {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		rec, err := client.Product(ctx, code)
		if err != nil {
			cancel()
			zlog.Warn("lookup failed", zap.String("barcode", code), zap.Error(err))
			failed++
			continue
		}
		food, isNew, err := foods.ImportFromExternal(ctx, *rec)
		cancel()
		switch {
		case err != nil:
			zlog.Warn("import failed", zap.String("barcode", code), zap.Error(err))
			failed++
		case isNew:
			zlog.Info("imported", zap.String("barcode", code), zap.Int64("food_id", food.ID), zap.String("name", food.Name))
			created++
		default:
			skipped++
		}
	}
	zlog.Info("seeding finished", zap.Int("created", created), zap.Int("skipped", skipped), zap.Int("failed", failed))
}
