// Command bear serves the API and runs its maintenance tasks.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/devmarvs/bear/config"
	"github.com/devmarvs/bear/logging"
)

var Version = "dev"

var (
	configPath  string
	envPath     string
	secretsPath string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bear",
		Short:         "Transactional API server with session authentication",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "bear.yaml", "base config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-config", "", "environment overlay config file")
	rootCmd.PersistentFlags().StringVar(&secretsPath, "secrets", "", "secrets file (defaults to secrets_path from config)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sessionsCmd())
	return rootCmd
}

// loadConfig reads the layered config named by the persistent flags.
// Missing files fall back to defaults and BEAR_ environment variables.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadProfile(config.Profile{
		BasePath:     configPath,
		EnvPath:      envPath,
		SecretsPath:  secretsPath,
		EnvPrefix:    config.DefaultEnvPrefix,
		AllowMissing: true,
	})
	if err != nil {
		return cfg, nil, err
	}
	logger := logging.NewLogger(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, logger, nil
}
