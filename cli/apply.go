package cli

import (
	"context"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/genericclioptions"
	"github.com/driftsql/drift/reconcile"

	"github.com/spf13/cobra"
)

type ApplyOptions struct {
	*genericclioptions.StdioOptions

	db     *DatabaseOptions
	config *ConfigOptions

	assumeYes bool
}

var _ genericclioptions.CmdOptions = &ApplyOptions{}

// NewApplyOptions initializes the options struct.
func NewApplyOptions(stdio *genericclioptions.StdioOptions, db *DatabaseOptions, config *ConfigOptions) *ApplyOptions {
	return &ApplyOptions{
		StdioOptions: stdio,
		db:           db,
		config:       config,
	}
}

func (*ApplyOptions) Complete() error { return nil }

func (*ApplyOptions) Validate() error { return nil }

func (o *ApplyOptions) Run(ctx context.Context, _ ...string) error {
	opts := []reconcile.Opt{reconcile.WithLogf(o.Infof)}

	if f := o.repairConfirm(); f != nil {
		opts = append(opts, reconcile.WithConfirm(f))
	}

	r := reconcile.New(o.db.Engine, o.db.Chain, opts...)

	if err := r.Apply(ctx); err != nil {
		return err
	}

	return genericclioptions.RunHook(ctx, o.StdioOptions, o.config.Hooks.PostApplyCmd)
}

// repairConfirm builds the confirmation hook gating revision repair.
//
// With --yes, repair proceeds unprompted. Without a terminal to prompt on,
// no hook is installed and a detected mismatch fails the run, pointing the
// operator at 'drift repair'.
func (o *ApplyOptions) repairConfirm() reconcile.ConfirmFunc {
	if o.assumeYes {
		return func(string, string) (bool, error) { return true, nil }
	}

	if o.NonInteractive {
		return nil
	}

	return func(recorded, head string) (bool, error) {
		return confirm(o.Out, o.In, "Overwrite recorded revision %q with head %q? [y/N] ", recorded, head)
	}
}

// NewCmdApply creates the apply cobra command.
func NewCmdApply(defaults *DefaultDriftOptions) *cobra.Command {
	o := NewApplyOptions(defaults.StdioOptions, defaults.databaseOptions, defaults.configOptions)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the recorded revision and apply pending migrations",
		Long: `Apply all pending migrations up to the newest definition.

Before applying, the recorded revision is checked against the known
definitions. A recorded revision that matches no definition is repaired by
realigning it to the newest definition, after confirmation; repair rewrites
bookkeeping only and never replays migration statements. Applying when
already up to date is a no-op.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().BoolVarP(&o.assumeYes, "yes", "y", false, "repair a mismatched recorded revision without prompting")

	return cmd
}
