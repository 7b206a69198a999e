package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/infrastructure/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		opts server.Options
		port string
		mode string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the playground over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			if mode != "" {
				cfg.Sandbox.Mode = mode
			}

			logger, err := root.logger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.NewServer(ctx, cfg, logger, opts)
			if err != nil {
				logger.Error("Failed to create server", zap.Error(err))
				return err
			}

			runErr := srv.Run(ctx)
			if err := srv.Close(); err != nil {
				logger.Warn("Error during shutdown", zap.Error(err))
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides config)")
	cmd.Flags().StringVar(&mode, "mode", "", "preview execution mode: headless or browser")
	cmd.Flags().StringVar(&opts.SeedDir, "seed", "", "seed new sessions from this directory")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "push changes under --seed into open sessions")
	return cmd
}
