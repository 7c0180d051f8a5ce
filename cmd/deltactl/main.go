// Command deltactl runs operator tasks against the Delta database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/dsatschool/delta-api/internal/config"
	"github.com/dsatschool/delta-api/internal/domain/delta"
	"github.com/dsatschool/delta-api/internal/domain/user"
	"github.com/dsatschool/delta-api/internal/pkg/database"
	"github.com/dsatschool/delta-api/internal/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "deltactl",
	Short:         "Operate the Delta coin ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		logger.Init(logger.Config{Level: level, Environment: "development", Output: os.Stderr})
	},
}

func init() {
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openDB(cmd *cobra.Command) (*sqlx.DB, error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		url = config.Load().DatabaseURL
	}
	db, err := database.NewPostgres(url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// withLedger opens the database and runs fn with a ledger service.
func withLedger(cmd *cobra.Command, fn func(ctx context.Context, svc *delta.Service) error) error {
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer database.ClosePostgres(db)

	svc := delta.NewService(delta.NewRepository(db), user.NewRepository(db))
	return fn(cmd.Context(), svc)
}
