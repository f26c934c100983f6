package cli

import (
	"context"
	"fmt"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/genericclioptions"

	"github.com/spf13/cobra"
)

type CleanupOptions struct {
	*genericclioptions.StdioOptions

	db *DatabaseOptions

	assumeYes bool
}

var _ genericclioptions.CmdOptions = &CleanupOptions{}

// NewCleanupOptions initializes the options struct.
func NewCleanupOptions(stdio *genericclioptions.StdioOptions, db *DatabaseOptions) *CleanupOptions {
	return &CleanupOptions{
		StdioOptions: stdio,
		db:           db,
	}
}

func (*CleanupOptions) Complete() error { return nil }

func (*CleanupOptions) Validate() error { return nil }

func (o *CleanupOptions) Run(ctx context.Context, _ ...string) error {
	if !o.assumeYes {
		if o.NonInteractive {
			return fmt.Errorf("cleanup requires confirmation; rerun with --yes")
		}

		ok, err := confirm(o.Out, o.In, "Drop the revision bookkeeping table? [y/N] ")
		if err != nil {
			return err
		}

		if !ok {
			o.Infof("Cleanup aborted.\n")
			return nil
		}
	}

	if err := o.db.Engine.DropRevisionTable(ctx); err != nil {
		return err
	}

	o.Infof("Revision bookkeeping table dropped.\n")

	return nil
}

// NewCmdCleanup creates the cleanup cobra command.
func NewCmdCleanup(defaults *DefaultDriftOptions) *cobra.Command {
	o := NewCleanupOptions(defaults.StdioOptions, defaults.databaseOptions)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop the revision bookkeeping table",
		Long: `Drop the revision bookkeeping table from the target database.

Schema objects created by applied migrations are left untouched; only the
record of which revision is applied is removed. The next apply treats the
database as fresh and replays the chain from the base.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().BoolVarP(&o.assumeYes, "yes", "y", false, "drop without prompting")

	return cmd
}
