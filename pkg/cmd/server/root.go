package server

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the filestore command tree
func NewRootCommand(ctx context.Context, out, errOut io.Writer) *cobra.Command {
	o := NewOptions()
	cmd := &cobra.Command{
		Use:           "filestore",
		Short:         "Resolve datum references into arrays",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	o.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCommand(ctx, o),
		newGetCommand(ctx, o),
		newSpecsCommand(ctx, o),
		newFilesCommand(ctx, o),
		newHistoryCommand(ctx, o),
		newInsertResourceCommand(ctx, o),
		newInsertDatumCommand(ctx, o),
		newSaveNpyCommand(ctx, o),
		newRelocateCommand(ctx, o),
	)
	return cmd
}
