// Command migrate applies the database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"opinara/internal/config"
	"opinara/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|check>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Println("schema up to date")
	case "check":
		if err := database.Ping(ctx, db); err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
		for _, m := range database.PersistentModels() {
			if !db.Migrator().HasTable(m) {
				log.Printf("missing table for %T", m)
			}
		}
		log.Println("check complete")
	default:
		return usage()
	}
	return nil
}
