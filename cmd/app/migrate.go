// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/go-marketplace/internal/config"
	"codeberg.org/oliverandrich/go-marketplace/internal/database"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withDB(func(db *sqlx.DB) error {
					// Open already migrated the schema.
					return printVersion(db)
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the last migration",
				Action: withDB(func(db *sqlx.DB) error {
					if err := database.MigrateDown(db.DB); err != nil {
						return fmt.Errorf("rolling back migration: %w", err)
					}
					return printVersion(db)
				}),
			},
			{
				Name:  "reset",
				Usage: "Roll back all migrations",
				Action: withDB(func(db *sqlx.DB) error {
					if err := database.MigrateReset(db.DB); err != nil {
						return fmt.Errorf("resetting schema: %w", err)
					}
					return printVersion(db)
				}),
			},
			{
				Name:   "status",
				Usage:  "Print the current schema version",
				Action: withDB(printVersion),
			},
		},
	}
}

func withDB(fn func(db *sqlx.DB) error) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)

		db, err := database.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("failed to close database", "error", closeErr)
			}
		}()

		return fn(db)
	}
}

func printVersion(db *sqlx.DB) error {
	version, err := database.MigrationVersion(db.DB)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d\n", version)
	return nil
}
