package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/caarlos0/env/v11"
	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"

	"onchaincourt/internal/app"
)

// config comes from OCC_* environment variables; flags override.
type config struct {
	Home      string `env:"OCC_HOME" envDefault:".occ"`
	Addr      string `env:"OCC_ADDR" envDefault:"tcp://127.0.0.1:26658"`
	Transport string `env:"OCC_TRANSPORT" envDefault:"socket"`
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "occd",
		Short:        "Hidden-hand card engine ABCI application",
		SilenceUsage: true,
	}
	cmd.AddCommand(startCmd())
	return cmd
}

func startCmd() *cobra.Command {
	var cfg config
	envErr := env.Parse(&cfg)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Serve the engine over an ABCI socket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envErr != nil {
				return fmt.Errorf("parse environment: %w", envErr)
			}
			return runServer(cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Home, "home", cfg.Home, "app home directory (state is stored under <home>/app)")
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "ABCI listen address")
	cmd.Flags().StringVar(&cfg.Transport, "transport", cfg.Transport, "ABCI transport (socket|grpc)")
	return cmd
}

func runServer(cfg config) error {
	logger := log.NewLogger(os.Stderr)

	a, err := app.New(cfg.Home, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	srv, err := server.NewServer(cfg.Addr, cfg.Transport, a)
	if err != nil {
		return fmt.Errorf("new abci server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start abci server: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	logger.Info("abci server started", "addr", cfg.Addr, "transport", cfg.Transport, "home", cfg.Home)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
