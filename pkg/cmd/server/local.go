package server

import (
	"context"
	"fmt"

	appserver "filestore/internal/app/server"
	"filestore/internal/application/services"
	"filestore/internal/config"
	"filestore/internal/formats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// local runs fn against the configured store directly. Commands that touch
// files on this machine use it instead of the server.
func local(ctx context.Context, o *Options, fn func(*config.Config, *appserver.App) error) error {
	cfg, err := o.Config()
	if err != nil {
		return err
	}
	app, err := appserver.NewApp(ctx, cfg, Logger(cfg), prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(cfg, app)
}

func newSaveNpyCommand(ctx context.Context, o *Options) *cobra.Command {
	var basePath string
	cmd := &cobra.Command{
		Use:   "save-npy FILE",
		Short: "Copy an array into the writer directory and register it",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			arr, err := formats.ReadNpyFile(args[0])
			if err != nil {
				return err
			}
			return local(ctx, o, func(cfg *config.Config, app *appserver.App) error {
				dir := basePath
				if dir == "" {
					dir = cfg.Writer.BasePath
				}
				datumID, err := services.SaveArray(ctx, app.Store, arr, dir)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), datumID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&basePath, "base-path", "", "Directory for the new file (overrides writer.base-path)")
	return cmd
}

func newRelocateCommand(ctx context.Context, o *Options) *cobra.Command {
	var removeOrigin bool
	cmd := &cobra.Command{
		Use:   "relocate RESOURCE_ID NEW_ROOT",
		Short: "Copy a resource's files under a new root and record the move",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return local(ctx, o, func(_ *config.Config, app *appserver.App) error {
				rel, err := app.Relocator.ChangeRoot(ctx, args[0], args[1], removeOrigin)
				if err != nil {
					return err
				}
				return printYAML(c.OutOrStdout(), toRelocationView(*rel))
			})
		},
	}
	cmd.Flags().BoolVar(&removeOrigin, "remove-origin", false, "Delete the original files after copying")
	return cmd
}
