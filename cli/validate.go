package cli

import (
	"context"
	"fmt"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/drifterrors"
	"github.com/driftsql/drift/genericclioptions"
	"github.com/driftsql/drift/reconcile"

	"github.com/spf13/cobra"
)

type ValidateOptions struct {
	*genericclioptions.StdioOptions

	db *DatabaseOptions
}

var _ genericclioptions.CmdOptions = &ValidateOptions{}

// NewValidateOptions initializes the options struct.
func NewValidateOptions(stdio *genericclioptions.StdioOptions, db *DatabaseOptions) *ValidateOptions {
	return &ValidateOptions{
		StdioOptions: stdio,
		db:           db,
	}
}

func (*ValidateOptions) Complete() error { return nil }

func (*ValidateOptions) Validate() error { return nil }

func (o *ValidateOptions) Run(ctx context.Context, _ ...string) error {
	r := reconcile.New(o.db.Engine, o.db.Chain)

	valid, err := r.CheckChainValidity(ctx)
	if err != nil {
		return err
	}

	if !valid {
		recorded, err := r.RecordedRevision(ctx)
		if err != nil {
			return err
		}

		return fmt.Errorf("%w: recorded revision %q matches no known definition", drifterrors.ErrUnknownRevision, recorded)
	}

	o.Infof("OK\n")

	return nil
}

// NewCmdValidate creates the validate cobra command.
func NewCmdValidate(defaults *DefaultDriftOptions) *cobra.Command {
	o := NewValidateOptions(defaults.StdioOptions, defaults.databaseOptions)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that the recorded revision matches a known definition",
		Long: `Check the revision recorded in the database against the known definition
chain without modifying anything.

Exits non-zero when the recorded revision matches no definition.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	return cmd
}
