package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/go-api-accounts/internal/config"
	"github.com/go-api-accounts/internal/infrastructure/dynamo"
	"github.com/go-api-accounts/internal/infrastructure/sqlstore"
)

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.StoreDriver == config.StoreDynamo {
		if cmd.Bool("down") {
			return errors.New("--down is only supported for SQL stores")
		}
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open dynamo store: %w", err)
		}
		if err := dynamo.Bootstrap(ctx, client, cfg.DynamoTables); err != nil {
			return fmt.Errorf("bootstrap dynamo tables: %w", err)
		}
		slog.Info("dynamo tables ready", "accounts", cfg.DynamoTables.Accounts, "emails", cfg.DynamoTables.AccountEmails)
		return nil
	}

	db, err := sqlstore.Connect(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer db.Close()

	if cmd.Bool("down") {
		if err := sqlstore.MigrateDown(db); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		slog.Info("rolled back last migration", "store", cfg.StoreDriver)
		return nil
	}
	if err := sqlstore.RunMigrations(db); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	slog.Info("migrations applied", "store", cfg.StoreDriver)
	return nil
}
