package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ugcvideo/internal/adapter/repo"
	"ugcvideo/internal/infra"
	"ugcvideo/internal/infra/credentials"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:           "ugcctl",
	Short:         "Operator tooling for the UGC video generation service.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load(".env", ".env.local")
		if databaseURL == "" {
			databaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (default $DATABASE_URL)")
}

func requireDatabaseURL() (string, error) {
	if databaseURL == "" {
		return "", errors.New("DATABASE_URL is required via --database-url or environment")
	}
	return databaseURL, nil
}

// stores is the database-backed state the ledger and key commands touch.
type stores struct {
	ledger      *repo.LedgerRepositoryPG
	credentials *credentials.Store
	close       func()
}

func openStores(ctx context.Context, name string) (*stores, error) {
	dbURL, err := requireDatabaseURL()
	if err != nil {
		return nil, err
	}
	pool, err := infra.OpenPool(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	logger := infra.NewLogger("cli").With().Str("cmd", name).Logger()
	runner := infra.NewSQLRunner(pool, logger)
	return &stores{
		ledger:      repo.NewLedgerRepository(runner),
		credentials: credentials.NewStore(runner),
		close:       pool.Close,
	}, nil
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "ugcctl: %v\n", err)
	os.Exit(1)
}
