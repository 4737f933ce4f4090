package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	berthdb "ms-reservation/internal/berths/db"
	"ms-reservation/internal/config"
	"ms-reservation/internal/database"
	"ms-reservation/internal/database/migrations"
	"ms-reservation/internal/logger"

	"github.com/joho/godotenv"
)

// Applies migrations and seeds the configured train and berth layout. Safe to
// run repeatedly; an already seeded inventory is left untouched.
func main() {
	down := flag.Bool("down", false, "roll back all migrations instead of seeding")
	flag.Parse()

	_ = godotenv.Load() // Loads .env file if present
	cfg := config.Load()

	log, err := logger.NewLogger("", "reservation-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.Database.MigrationsDir,
		AutoMigrate:   true,
	}, log)
	defer runner.Close()

	if *down {
		if err := runner.MigrateDown(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		log.Info("MIGRATE", "All migrations rolled back")
		return
	}

	if err := runner.RunMigrations(); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	ctx := context.Background()
	berths := berthdb.New(bunDB)
	train, err := berths.EnsureTrain(ctx, cfg.Inventory.TrainName, cfg.Inventory.TrainNumber)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to ensure train: %v", err))
	}

	seeded, err := berths.Seed(ctx, cfg.Inventory)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to seed berths: %v", err))
	}
	free, err := berths.CountFreeByType(ctx)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to count berths: %v", err))
	}
	allocated, err := berths.CountAllocated(ctx)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to count berths: %v", err))
	}

	log.Info("SEED", fmt.Sprintf("Train %s (%s) id=%d: seeded %d new berths", train.Name, train.Number, train.ID, seeded))
	log.Info("SEED", fmt.Sprintf("Free berths by type: %v, allocated: %d", free, allocated))
}
