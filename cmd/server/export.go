package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livecode/internal/playground"
	"github.com/GriffinCanCode/livecode/internal/preview"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export [dir]",
		Short: "Write a project as one standalone HTML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := workspace.Defaults()
			if len(args) == 1 {
				cfg, err := root.load()
				if err != nil {
					return err
				}
				logger, err := root.logger(cfg)
				if err != nil {
					return err
				}
				files, err = playground.NewSeeder(args[0], logging.Component(logger.Logger, "seed")).Load(cmd.Context())
				if err != nil {
					return err
				}
			}

			data := preview.Export(preview.Aggregate(files, preview.Options{}))
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Project downloaded!")+" "+out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", preview.ExportFilename, `output file, "-" for stdout`)
	return cmd
}
