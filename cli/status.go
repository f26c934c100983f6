package cli

import (
	"context"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/genericclioptions"

	"github.com/spf13/cobra"
)

type StatusOptions struct {
	*genericclioptions.StdioOptions

	db *DatabaseOptions
}

var _ genericclioptions.CmdOptions = &StatusOptions{}

// NewStatusOptions initializes the options struct.
func NewStatusOptions(stdio *genericclioptions.StdioOptions, db *DatabaseOptions) *StatusOptions {
	return &StatusOptions{
		StdioOptions: stdio,
		db:           db,
	}
}

func (*StatusOptions) Complete() error { return nil }

func (*StatusOptions) Validate() error { return nil }

func (o *StatusOptions) Run(ctx context.Context, _ ...string) error {
	recorded, err := o.db.Engine.Current(ctx)
	if err != nil {
		return err
	}

	head, ok := o.db.Chain.Head()
	if !ok {
		head = "none"
	}

	o.Printf("Recorded revision: %s\n", orNone(recorded))
	o.Printf("Latest definition: %s\n", head)

	consistent, err := o.db.Engine.Check(ctx)
	if err != nil {
		return err
	}

	if !consistent {
		o.Warnf("Recorded revision %q matches no known definition.\nRun 'drift repair' to realign it with the newest definition.\n", recorded)
		return nil
	}

	pending, err := o.db.Engine.Pending(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		o.Printf("Database is up to date.\n")
		return nil
	}

	o.Printf("Pending revisions (%d):\n", len(pending))

	for _, id := range pending {
		o.Printf("  %s\n", id)
	}

	return nil
}

func orNone(rev string) string {
	if len(rev) == 0 {
		return "none"
	}

	return rev
}

// NewCmdStatus creates the status cobra command.
func NewCmdStatus(defaults *DefaultDriftOptions) *cobra.Command {
	o := NewStatusOptions(defaults.StdioOptions, defaults.databaseOptions)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recorded revision and pending migrations",
		Long: `Show the revision recorded in the database, the newest known definition,
and any definitions not yet applied.

A recorded revision that matches no known definition is reported but not
modified; use 'drift repair' to realign it.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	return cmd
}
