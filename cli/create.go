package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/genericclioptions"
	"github.com/driftsql/drift/revid"
	"github.com/driftsql/drift/revision"

	"github.com/spf13/cobra"
)

type CreateOptions struct {
	*genericclioptions.StdioOptions

	db *DatabaseOptions

	message string
	from    string

	// empty skips reading up SQL and writes a bare definition template.
	empty bool
}

var _ genericclioptions.CmdOptions = &CreateOptions{}

// NewCreateOptions initializes the options struct.
func NewCreateOptions(stdio *genericclioptions.StdioOptions, db *DatabaseOptions) *CreateOptions {
	return &CreateOptions{
		StdioOptions: stdio,
		db:           db,
	}
}

func (*CreateOptions) Complete() error { return nil }

func (o *CreateOptions) Validate() error {
	if len(o.message) == 0 {
		return errors.New("create: a non-empty message is required")
	}

	if o.empty && len(o.from) > 0 {
		return errors.New("create: --from cannot be used when creating an empty definition")
	}

	return nil
}

func (o *CreateOptions) Run(_ context.Context, _ ...string) error {
	upSQL, err := o.readUpSQL()
	if err != nil {
		return err
	}

	id, err := revid.New()
	if err != nil {
		return fmt.Errorf("generate revision id: %w", err)
	}

	down := revision.DownBase
	if head, ok := o.db.Chain.Head(); ok {
		down = head
	}

	if err := os.MkdirAll(o.db.Dir, 0o755); err != nil {
		return fmt.Errorf("create migrations dir: %w", err)
	}

	d := &revision.Definition{
		ID:      id,
		Down:    down,
		Message: o.message,
		UpSQL:   upSQL,
	}

	path, err := revision.Write(o.db.Dir, d)
	if err != nil {
		return err
	}

	o.Infof("Created %s\n", filepath.ToSlash(path))

	return nil
}

// readUpSQL resolves the new definition's up section from --from or piped
// stdin. An empty definition carries no statements.
func (o *CreateOptions) readUpSQL() (string, error) {
	if o.empty {
		return "", nil
	}

	if len(o.from) > 0 {
		raw, err := os.ReadFile(filepath.Clean(o.from))
		if err != nil {
			return "", fmt.Errorf("read up sql: %w", err)
		}

		return string(raw), nil
	}

	if !o.NonInteractive {
		return "", errors.New("create: no up SQL provided; use --from or pipe the statements via stdin")
	}

	raw, err := io.ReadAll(o.In)
	if err != nil {
		return "", fmt.Errorf("read up sql from stdin: %w", err)
	}

	return string(raw), nil
}

// NewCmdCreate creates the create cobra command.
func NewCmdCreate(defaults *DefaultDriftOptions) *cobra.Command {
	o := NewCreateOptions(defaults.StdioOptions, defaults.databaseOptions)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new migration definition chained onto the current head",
		Long: `Create a new migration definition file in the migrations directory.

The up section is read from the --from file or from piped stdin. The new
definition's predecessor is the current head of the chain, or the base when
no definitions exist yet. The down section is left for the author to fill.`,
		Example: `  # create a definition from a file
  drift create -m "add users table" --from users.sql

  # create a definition from piped statements
  echo 'CREATE TABLE users (id INTEGER);' | drift create -m "add users table"`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().StringVarP(&o.message, "message", "m", "", "short human-readable description of the change")
	cmd.Flags().StringVarP(&o.from, "from", "f", "", "file containing the up section statements")

	return cmd
}

// NewCmdCreateEmpty creates the create-empty cobra command.
func NewCmdCreateEmpty(defaults *DefaultDriftOptions) *cobra.Command {
	o := NewCreateOptions(defaults.StdioOptions, defaults.databaseOptions)
	o.empty = true

	cmd := &cobra.Command{
		Use:   "create-empty",
		Short: "Create a new empty migration definition",
		Long: `Create a new migration definition file with empty up and down sections.

The definition is chained onto the current head so it can be filled in and
applied later.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().StringVarP(&o.message, "message", "m", "", "short human-readable description of the change")

	return cmd
}
