package cli

import (
	"errors"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/genericclioptions"

	"github.com/spf13/cobra"
)

// Version is the drift build version, set at build time via ldflags.
var Version = "dev"

func newVersionCommand(defaults *DefaultDriftOptions) *cobra.Command {
	cmd := cobra.Command{
		Use:                "version",
		Short:              "Show version",
		DisableFlagParsing: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return clierror.Check(func() error {
				if len(args) > 0 {
					return errors.New("version: command takes no arguments")
				}

				defaults.Printf("%s\n", Version)

				return nil
			}())
		},
	}

	genericclioptions.MarkAllFlagsHidden(&cmd)

	return &cmd
}
