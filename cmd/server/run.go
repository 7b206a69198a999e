package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/config"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livecode/internal/playground"
	"github.com/GriffinCanCode/livecode/internal/preview"
	"github.com/GriffinCanCode/livecode/internal/sandbox"
)

type runOptions struct {
	clicks  []string
	wait    time.Duration
	timeout time.Duration
	dom     bool
	output  string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Run a project headlessly and print its console",
		Long: `Run loads the HTML, CSS, JavaScript and Python files under dir (or the
starter project when dir is omitted), executes the combined document in a
headless frame and prints everything it logged.

Examples:
  # Print the starter project's load output
  livecode run

  # Click a button, then give its timers two seconds to fire
  livecode run ./site --click "#btn" --wait 2s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			logger, err := root.logger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			var seed []workspace.File
			if len(args) == 1 {
				seed, err = playground.NewSeeder(args[0], logging.Component(logger.Logger, "seed")).Load(ctx)
				if err != nil {
					return err
				}
			}

			s, err := playground.Open(ctx, sessionOptions(cfg, logger, seed))
			if err != nil {
				return err
			}
			defer s.Close()

			if err := opts.drive(ctx, s); err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), opts.output)
			if err := p.records(s.Logs()); err != nil {
				return err
			}
			if opts.dom {
				html, err := s.Snapshot(ctx)
				if err != nil {
					return err
				}
				return p.dom(html)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&opts.clicks, "click", nil, "click the first element matching a CSS selector (repeatable)")
	cmd.Flags().DurationVar(&opts.wait, "wait", 0, "let timers run this long before printing")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")
	cmd.Flags().BoolVar(&opts.dom, "dom", false, "also print the final DOM")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	return cmd
}

// drive settles the first render, fires each click and waits out timers.
func (o *runOptions) drive(ctx context.Context, s *playground.Session) error {
	if err := s.Settle(ctx); err != nil {
		return err
	}
	for _, selector := range o.clicks {
		if err := s.Dispatch(ctx, selector, "click"); err != nil {
			return fmt.Errorf("click %s: %w", selector, err)
		}
		if err := s.Settle(ctx); err != nil {
			return err
		}
	}
	if o.wait > 0 {
		select {
		case <-time.After(o.wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		return s.Settle(ctx)
	}
	return nil
}

// sessionOptions builds headless session options from configuration.
func sessionOptions(cfg *config.Config, logger *logging.Logger, seed []workspace.File) playground.Options {
	return playground.Options{
		Mode:      playground.ModeHeadless,
		Seed:      seed,
		Aggregate: preview.Options{Provenance: cfg.Preview.Provenance},
		Synth:     preview.SynthOptions{Guard: cfg.Preview.Guard},
		Sandbox: sandbox.Config{
			Timeout:        cfg.Sandbox.Timeout,
			ReloadDebounce: cfg.Sandbox.ReloadDebounce,
			MaxDepth:       cfg.Sandbox.MaxDepth,
		},
		MaxEntries: cfg.Console.MaxEntries,
		Logger:     logging.Component(logger.Logger, "playground"),
	}
}
