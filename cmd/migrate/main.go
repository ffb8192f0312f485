// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	purge := flag.Bool("purge-expired", false, "delete documents whose TTL has passed")
	flag.Parse()

	// Load configuration
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	s, err := store.NewGormStore(&cfg.Database)
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	fmt.Println("Starting document store migration...")
	fmt.Printf("Driver: %s\n", cfg.Database.Driver)

	if err := s.AutoMigrate(); err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Migration completed successfully")

	// Validate schema to confirm everything is correct
	if err := s.ValidateSchema(); err != nil {
		fmt.Printf("Schema validation failed after migration: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Schema validation passed")

	if *purge {
		n, err := s.PurgeExpired(context.Background())
		if err != nil {
			fmt.Printf("Purge failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Purged %d expired documents\n", n)
	}
}
