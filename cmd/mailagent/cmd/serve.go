package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/comigor/mailagent/internal/assistant"
	"github.com/comigor/mailagent/internal/llm"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/server"
	"github.com/comigor/mailagent/internal/store"
)

var serveHost, servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the email analysis REST API",
	Long: `Starts the backend: the email store, the background analysis workers and
the REST API used by "mailagent chat".

Without an LLM API key every assistant feature answers with its fallback.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveHost != "" {
			cfg.Server.Host = serveHost
		}
		if servePort != "" {
			cfg.Server.Port = servePort
		}

		closeLog := logger.Setup(cfg.Log.File, false)
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(ctx, cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		a := assistant.New(llm.New(cfg.LLM))
		proc := server.NewProcessor(st, a, cfg.Server.Workers)
		srv := server.New(st, a, proc, cfg.Store.MockInbox)

		logger.L.Info("backend ready",
			"store", cfg.Store.Path,
			"model", cfg.LLM.Model,
			"workers", cfg.Server.Workers,
		)
		return srv.ListenAndServe(ctx, net.JoinHostPort(cfg.Server.Host, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
