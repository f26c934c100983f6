package cli

import (
	"context"
	"fmt"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/genericclioptions"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

type ConfigOptions struct {
	*genericclioptions.StdioOptions

	*FileConfig
	userPath string // userPath is the config file path explicitly provided by the user, if any.
}

var _ genericclioptions.CmdOptions = &ConfigOptions{}

// NewConfigOptions initializes the options struct.
func NewConfigOptions(stdio *genericclioptions.StdioOptions) *ConfigOptions {
	return &ConfigOptions{
		StdioOptions: stdio,
		FileConfig:   newFileConfig(),
	}
}

func (o *ConfigOptions) Complete() error {
	c, err := LoadFileConfig(o.userPath)
	if err != nil {
		return err
	}

	o.FileConfig = c

	return nil
}

func (*ConfigOptions) Validate() error {
	return nil
}

func (*ConfigOptions) Run(context.Context, ...string) error {
	return nil
}

// NewCmdConfig creates the cobra config command tree.
func NewCmdConfig(driftOpts *DefaultDriftOptions) *cobra.Command {
	hiddenFlags := []string{"config", "dsn", "driver", "dir", "password"}
	o := NewConfigOptions(driftOpts.StdioOptions)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Resolve and inspect the active drift configuration (subcommands available)",
		Long: fmt.Sprintf(`Resolve and display the active drift configuration.

If --file is not provided, the default config path (~/%s) is used.`, defaultConfigName),
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.RejectDisallowedFlags(cmd, hiddenFlags...))
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))

			if len(o.path) == 0 {
				o.Infof("No config file found; using default values.\n")
				return
			}

			out, err := toml.Marshal(o.FileConfig)
			clierror.Check(err)

			o.Infof("Resolved config at %q:\n\n%s", o.path, string(out))
		},
	}

	cmd.PersistentFlags().StringVarP(&o.userPath, "file", "f", "",
		fmt.Sprintf("path to the configuration file (default: ~/%s)", defaultConfigName))

	cmd.AddCommand(newGenerateConfigCmd(driftOpts))
	cmd.AddCommand(newValidateConfigCmd(driftOpts))

	genericclioptions.MarkFlagsHidden(cmd, hiddenFlags...)

	return cmd
}

type generateConfigOptions struct {
	*genericclioptions.StdioOptions
}

var _ genericclioptions.CmdOptions = &generateConfigOptions{}

func newGenerateConfigOptions(driftOpts *DefaultDriftOptions) *generateConfigOptions {
	return &generateConfigOptions{
		StdioOptions: driftOpts.StdioOptions,
	}
}

func (*generateConfigOptions) Complete() error {
	return nil
}

func (*generateConfigOptions) Validate() error {
	return nil
}

func (o *generateConfigOptions) Run(context.Context, ...string) error {
	out, err := toml.Marshal(newFileConfig())
	clierror.Check(err)

	o.Infof("%s", string(out))

	return nil
}

// newGenerateConfigCmd creates the 'generate' subcommand for generating default config.
func newGenerateConfigCmd(driftOpts *DefaultDriftOptions) *cobra.Command {
	hiddenFlags := []string{"file", "config", "dsn", "driver", "dir", "password"}
	o := newGenerateConfigOptions(driftOpts)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a default config file",
		Long: `Outputs the default configuration in TOML format to stdout.

This command does not accept any arguments.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.RejectDisallowedFlags(cmd, hiddenFlags...))
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	genericclioptions.MarkFlagsHidden(cmd, hiddenFlags...)

	return cmd
}

type validateConfigOptions struct {
	*genericclioptions.StdioOptions

	configPath string
}

var _ genericclioptions.CmdOptions = &validateConfigOptions{}

func newValidateConfigOptions(stdio *genericclioptions.StdioOptions) *validateConfigOptions {
	return &validateConfigOptions{
		StdioOptions: stdio,
	}
}

func (*validateConfigOptions) Complete() error {
	return nil
}

func (*validateConfigOptions) Validate() error {
	return nil
}

func (o *validateConfigOptions) Run(context.Context, ...string) error {
	c, err := LoadFileConfig(o.configPath)
	clierror.Check(err)

	if len(c.path) == 0 {
		o.Infof("No config file found; Nothing to validate.\n")
		return nil
	}

	o.Infof("%s: OK\n", c.path)

	return nil
}

// newValidateConfigCmd creates the 'validate' subcommand for validating the config file.
func newValidateConfigCmd(driftOpts *DefaultDriftOptions) *cobra.Command {
	hiddenFlags := []string{"config", "dsn", "driver", "dir", "password"}
	o := newValidateConfigOptions(driftOpts.StdioOptions)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check config validity",
		Long: fmt.Sprintf(`Loads the configuration file and checks for common errors.

If --file is not provided, the default config path (~/%s) is used.`, defaultConfigName),
		Run: func(cmd *cobra.Command, _ []string) {
			o.configPath, _ = cmd.InheritedFlags().GetString("file")

			clierror.Check(genericclioptions.RejectDisallowedFlags(cmd, hiddenFlags...))
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	genericclioptions.MarkFlagsHidden(cmd, hiddenFlags...)

	return cmd
}
