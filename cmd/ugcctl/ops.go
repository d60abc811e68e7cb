package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ugcvideo/internal/app"
	"ugcvideo/internal/config"
	"ugcvideo/internal/infra"
	"ugcvideo/internal/infra/credentials"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Time out stale pending generations and refund eligible failures once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if databaseURL != "" {
			cfg.DatabaseURL = databaseURL
		}
		logger := infra.NewLogger("cli").With().Str("cmd", "sweep").Logger()

		c, err := app.Build(cmd.Context(), cfg, &logger)
		if err != nil {
			return err
		}
		defer c.Close()

		report, err := c.Generations.SweepStale(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("timed out %d, refunded %d\n", report.TimedOut, report.Refunded)
		return nil
	},
}

var (
	keyProvider  string
	keyValue     string
	keyRotatedBy string
)

var pipelineKeyCmd = &cobra.Command{
	Use:   "pipeline-key",
	Short: "Manage credentials for the external processor",
}

var pipelineKeySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the processor credential used when none is configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := strings.ToLower(strings.TrimSpace(keyProvider))
		key := strings.TrimSpace(keyValue)
		if key == "" {
			switch provider {
			case credentials.ProviderN8N:
				key = strings.TrimSpace(os.Getenv("N8N_WEBHOOK_SECRET"))
			default:
				key = strings.TrimSpace(os.Getenv("PYTHON_API_KEY"))
			}
		}
		if key == "" {
			return errors.New("a key is required via --key or environment")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		st, err := openStores(ctx, "pipeline-key")
		if err != nil {
			return err
		}
		defer st.close()

		if err := st.credentials.SetToken(ctx, provider, key, keyRotatedBy); err != nil {
			return fmt.Errorf("persist %s key: %w", provider, err)
		}
		fmt.Printf("%s key stored successfully\n", provider)
		return nil
	},
}

func init() {
	pipelineKeySetCmd.Flags().StringVar(&keyProvider, "provider", credentials.ProviderPythonBackend, "credential owner (python_backend or n8n)")
	pipelineKeySetCmd.Flags().StringVar(&keyValue, "key", "", "credential value (falls back to PYTHON_API_KEY or N8N_WEBHOOK_SECRET)")
	pipelineKeySetCmd.Flags().StringVar(&keyRotatedBy, "rotated-by", os.Getenv("USER"), "operator recorded with the rotation")

	pipelineKeyCmd.AddCommand(pipelineKeySetCmd)
	rootCmd.AddCommand(sweepCmd, pipelineKeyCmd)
}
