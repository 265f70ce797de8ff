// Command unifyctl is the operator CLI: it triggers match passes, repairs
// stuck ingest runs, seeds match configuration, and mints reviewer tokens.
// It talks to the database directly rather than going through the HTTP
// surface, so it works even when the server is down.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"unify/internal/platform/config"
	"unify/internal/platform/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "unifyctl",
		Short:         "Operator tooling for the entity resolution service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newRepairCmd(), newConfigCmd(), newTokenCmd(), newDBCmd())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openDB connects using the same environment configuration as the server.
func openDB(ctx context.Context) (*sql.DB, config.Config, error) {
	cfg := config.FromEnv()
	if cfg.DatabaseURL == "" {
		return nil, cfg, fmt.Errorf("UNIFY_DATABASE_URL is not set")
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, cfg, err
	}
	return db, cfg, nil
}
