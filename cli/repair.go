package cli

import (
	"context"
	"fmt"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/genericclioptions"
	"github.com/driftsql/drift/reconcile"

	"github.com/spf13/cobra"
)

type RepairOptions struct {
	*genericclioptions.StdioOptions

	db *DatabaseOptions

	assumeYes bool
}

var _ genericclioptions.CmdOptions = &RepairOptions{}

// NewRepairOptions initializes the options struct.
func NewRepairOptions(stdio *genericclioptions.StdioOptions, db *DatabaseOptions) *RepairOptions {
	return &RepairOptions{
		StdioOptions: stdio,
		db:           db,
	}
}

func (*RepairOptions) Complete() error { return nil }

func (o *RepairOptions) Validate() error {
	if !o.assumeYes && o.NonInteractive {
		return fmt.Errorf("repair requires confirmation; rerun with --yes")
	}

	return nil
}

func (o *RepairOptions) Run(ctx context.Context, _ ...string) error {
	r := reconcile.New(o.db.Engine, o.db.Chain,
		reconcile.WithLogf(o.Infof),
		reconcile.WithConfirm(o.repairConfirm()),
	)

	res, err := r.Repair(ctx)
	if err != nil {
		return err
	}

	if res == reconcile.ResultConsistent {
		o.Infof("Recorded revision is consistent; nothing to repair.\n")
	}

	return nil
}

func (o *RepairOptions) repairConfirm() reconcile.ConfirmFunc {
	if o.assumeYes {
		return func(string, string) (bool, error) { return true, nil }
	}

	return func(recorded, head string) (bool, error) {
		return confirm(o.Out, o.In, "Overwrite recorded revision %q with head %q? [y/N] ", recorded, head)
	}
}

// NewCmdRepair creates the repair cobra command.
func NewCmdRepair(defaults *DefaultDriftOptions) *cobra.Command {
	o := NewRepairOptions(defaults.StdioOptions, defaults.databaseOptions)

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Realign a mismatched recorded revision with the newest definition",
		Long: `Overwrite a recorded revision that matches no known definition with the
newest definition in the chain.

Repair rewrites bookkeeping only; no migration statements are executed.
If the recorded revision pointed at an older definition that was renamed or
deleted, realigning to the newest one skips the intermediate migrations,
so the overwrite must be confirmed.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().BoolVarP(&o.assumeYes, "yes", "y", false, "repair without prompting")

	return cmd
}
