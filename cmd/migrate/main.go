// Command migrate applies the embedded PostgreSQL migrations.
//
//	migrate [up|down|status|version|redo|reset]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bucket-api/internal/config"
	"github.com/bucket-api/internal/infrastructure/postgres"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg := config.Load()
	if err := postgres.Migrate(command, cfg.DatabaseURL); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.Info("migration finished", "command", command)
}
