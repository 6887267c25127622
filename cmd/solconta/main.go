// Command solconta is the terminal client of the SolConta API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"solconta/internal/logger"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "solconta",
		Short: "Lleva tus ingresos y gastos desde la terminal",
		Long: `solconta registra ingresos y gastos en tu cuenta de SolConta y muestra
el balance, las categorías con más gasto y la tendencia de la semana.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/solconta/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", "http://localhost:8080", "SolConta API base URL")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.SetDefault("timezone", "America/Lima")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(signupCmd())
	rootCmd.AddCommand(confirmCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(resetPasswordCmd())
	rootCmd.AddCommand(newPasswordCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(transactionsCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	logger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

// initConfig reads the config file and environment. The file is also where
// the session is stored, so its directory is created when missing.
func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".config", "solconta", "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(cfgFile), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	viper.SetConfigFile(cfgFile)

	viper.SetEnvPrefix("SOLCONTA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.Init("production", viper.GetString("log_level"))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "solconta", version)
		},
	}
}
