package cli

import (
	"context"
	"fmt"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/genericclioptions"

	"github.com/spf13/cobra"
)

type RollbackOptions struct {
	*genericclioptions.StdioOptions

	db *DatabaseOptions

	steps     int
	assumeYes bool
}

var _ genericclioptions.CmdOptions = &RollbackOptions{}

// NewRollbackOptions initializes the options struct.
func NewRollbackOptions(stdio *genericclioptions.StdioOptions, db *DatabaseOptions) *RollbackOptions {
	return &RollbackOptions{
		StdioOptions: stdio,
		db:           db,
		steps:        1,
	}
}

func (*RollbackOptions) Complete() error { return nil }

func (o *RollbackOptions) Validate() error {
	if o.steps <= 0 {
		return fmt.Errorf("rollback: steps must be positive, got %d", o.steps)
	}

	return nil
}

func (o *RollbackOptions) Run(ctx context.Context, _ ...string) error {
	if !o.assumeYes {
		if o.NonInteractive {
			return fmt.Errorf("rollback requires confirmation; rerun with --yes")
		}

		ok, err := confirm(o.Out, o.In, "Roll back %d revision(s)? [y/N] ", o.steps)
		if err != nil {
			return err
		}

		if !ok {
			o.Infof("Rollback aborted.\n")
			return nil
		}
	}

	return o.db.Engine.Downgrade(ctx, o.steps)
}

// NewCmdRollback creates the rollback cobra command.
func NewCmdRollback(defaults *DefaultDriftOptions) *cobra.Command {
	o := NewRollbackOptions(defaults.StdioOptions, defaults.databaseOptions)

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recently applied migrations",
		Long: `Roll back applied migrations one revision at a time, newest first.

Each rolled-back revision must carry a non-empty down section. Rolling back
past the first revision stops at the base, leaving a fresh database.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().IntVarP(&o.steps, "steps", "n", 1, "number of revisions to roll back")
	cmd.Flags().BoolVarP(&o.assumeYes, "yes", "y", false, "roll back without prompting")

	return cmd
}
