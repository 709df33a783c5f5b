package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"salon/internal/database"
	"salon/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/salon.db", "path to sqlite db")
	)
	flag.Parse()

	seed, err := service.LoadCatalogSeed(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if len(seed.Services) == 0 && len(seed.Masters) == 0 {
		return fmt.Errorf("no services or masters in %s", *catalogPath)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := service.ApplyCatalogSeed(ctx, db, seed, &logger); err != nil {
		return err
	}

	fmt.Printf("done: services=%d masters=%d\n", len(seed.Services), len(seed.Masters))
	return nil
}
