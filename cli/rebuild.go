package cli

import (
	"context"
	"fmt"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/engine"
	"github.com/driftsql/drift/genericclioptions"

	"github.com/spf13/cobra"
)

type RebuildOptions struct {
	*genericclioptions.StdioOptions

	db *DatabaseOptions

	assumeYes bool
}

var _ genericclioptions.CmdOptions = &RebuildOptions{}

// NewRebuildOptions initializes the options struct.
func NewRebuildOptions(stdio *genericclioptions.StdioOptions, db *DatabaseOptions) *RebuildOptions {
	return &RebuildOptions{
		StdioOptions: stdio,
		db:           db,
	}
}

func (*RebuildOptions) Complete() error { return nil }

func (*RebuildOptions) Validate() error { return nil }

func (o *RebuildOptions) Run(ctx context.Context, _ ...string) error {
	if !o.assumeYes {
		if o.NonInteractive {
			return fmt.Errorf("rebuild requires confirmation; rerun with --yes")
		}

		ok, err := confirm(o.Out, o.In, "Roll back all applied revisions and reapply the full chain? [y/N] ")
		if err != nil {
			return err
		}

		if !ok {
			o.Infof("Rebuild aborted.\n")
			return nil
		}
	}

	recorded, err := o.db.Engine.Current(ctx)
	if err != nil {
		return err
	}

	if len(recorded) > 0 {
		if err := o.db.Engine.Downgrade(ctx, o.db.Chain.Len()); err != nil {
			return err
		}
	}

	return o.db.Engine.Upgrade(ctx, engine.TargetHead)
}

// NewCmdRebuild creates the rebuild cobra command.
func NewCmdRebuild(defaults *DefaultDriftOptions) *cobra.Command {
	o := NewRebuildOptions(defaults.StdioOptions, defaults.databaseOptions)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Roll back everything and reapply the full migration chain",
		Long: `Roll back all applied revisions down to the base, then reapply the entire
chain up to the newest definition.

Every applied revision must carry a non-empty down section for the teardown
half to succeed.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().BoolVarP(&o.assumeYes, "yes", "y", false, "rebuild without prompting")

	return cmd
}
