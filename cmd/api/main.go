package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/go-api-accounts/internal/config"
	"github.com/go-api-accounts/internal/logging"
	transporthttp "github.com/go-api-accounts/internal/transport/http"
)

func main() {
	cmd := &cli.Command{
		Name:    "accounts",
		Usage:   "Account registration, verification and password recovery API",
		Version: transporthttp.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "Path to a dotenv file loaded before reading the environment",
				Sources: cli.EnvVars("ENV_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: runServe,
			},
			{
				Name:  "migrate",
				Usage: "Create DynamoDB tables or apply SQL migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "down", Usage: "Roll back the last SQL migration"},
				},
				Action: runMigrate,
			},
		},
		Action: runServe,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the dotenv file named by --env-file, then the environment,
// and installs the default logger.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	envFile := cmd.String("env-file")
	if err := godotenv.Load(envFile); err != nil && cmd.IsSet("env-file") {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg := config.Load()
	logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}
