package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duochat/duochat/internal/config"
	"github.com/duochat/duochat/internal/logger"
	"github.com/duochat/duochat/internal/tui"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "duochat",
	Short: "duochat - terminal client for one-to-one chat",
	Long: `duochat is a terminal client for a one-to-one conversation service.

It keeps the conversation list and the open chat synchronized with the server
over a realtime channel, degrading to periodic polling when the channel drops.

Configuration lives in ~/.duochat/config.yaml; the session cookie is read from
~/.duochat/.session.json (log in through the web client and copy the cookie,
or point --server at a backend that does not require one).

Examples:
  duochat                              # Connect to the configured server
  duochat --server http://host:8000    # Override the server for this run
  duochat --debug                      # Verbose log in ~/.duochat/duochat.log`,
	Version: version,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if flagServer != "" {
			cfg.ServerURL = flagServer
		}
		if flagDebug {
			cfg.Debug = true
		}

		if err := logger.Init(config.LogPath, cfg.Debug); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logger.Close()

		logger.Info("duochat %s starting (server %s)", version, cfg.ServerURL)
		return tui.Run(cfg)
	},
}

var (
	flagServer string
	flagDebug  bool
)

func init() {
	rootCmd.Flags().StringVarP(&flagServer, "server", "s", "", "Server base URL (overrides config.yaml)")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
}
