// Package cmd implements the mailagent command line.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/comigor/mailagent/internal/api"
	"github.com/comigor/mailagent/internal/config"
	"github.com/comigor/mailagent/internal/logger"
)

// Set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfgFile  string
	logLevel string
	apiURL   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mailagent",
	Short: "AI-assisted inbox: analysis backend, chat agent and draft editor",
	Long: `mailagent runs an email analysis backend and talks to it from the terminal.

Run "mailagent serve" to start the REST API, then "mailagent chat" to ask the
agent about your inbox or have it draft a reply.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		load := config.Load
		if cfgFile != "" {
			load = func() (*config.Config, error) { return config.LoadFrom(cfgFile) }
		}
		loaded, err := load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if apiURL != "" {
			cfg.API.BaseURL = apiURL
		}
		logger.SetLevel(cfg.Log.Level)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mailagent %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or $CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "REST API base URL (overrides api.base_url)")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newClient() *api.Client {
	return api.NewClient(cfg.API)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
