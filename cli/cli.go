package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/engine"
	"github.com/driftsql/drift/genericclioptions"
	"github.com/driftsql/drift/input"
	"github.com/driftsql/drift/revision"
	"github.com/driftsql/drift/store"

	"github.com/spf13/cobra"
)

const (
	// defaultMigrationsDir is the default location of the migration
	// definition files, relative to the working directory.
	defaultMigrationsDir = "./migrations"
)

// DatabaseOptions resolves the target database and definition chain shared
// by all subcommands.
type DatabaseOptions struct {
	Driver string
	DSN    string
	Dir    string

	ConnectRetries  int
	ConnectInterval time.Duration

	// PromptPassword asks for a PostgreSQL password when the DSN omits one.
	PromptPassword bool

	Chain  *revision.Chain
	Engine *engine.Engine

	db    *sql.DB
	stdio *genericclioptions.StdioOptions

	connect bool
}

var _ genericclioptions.CmdOptions = &DatabaseOptions{}

type DatabaseOptionsOpts func(*DatabaseOptions)

// NewDatabaseOptions creates a new DatabaseOptions with provided configurations.
func NewDatabaseOptions(stdio *genericclioptions.StdioOptions, opts ...DatabaseOptionsOpts) *DatabaseOptions {
	o := &DatabaseOptions{
		stdio:   stdio,
		connect: true,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithConnect controls whether a database connection is established.
// Commands operating on definition files alone disable it.
func WithConnect(enabled bool) DatabaseOptionsOpts {
	return func(o *DatabaseOptions) {
		o.connect = enabled
	}
}

// Complete sets the default migrations directory if not provided.
func (o *DatabaseOptions) Complete() error {
	if len(o.Dir) == 0 {
		o.Dir = defaultMigrationsDir
	}

	return nil
}

// Validate checks that a database target is configured when one is needed.
func (o *DatabaseOptions) Validate() error {
	if o.connect && len(o.DSN) == 0 {
		return fmt.Errorf("no database configured; set --dsn, %s, or the config file", envDatabaseURLKey)
	}

	return nil
}

// Run loads the definition chain and, unless connecting is disabled, opens
// the database and builds the migration engine.
func (o *DatabaseOptions) Run(ctx context.Context, _ ...string) error {
	chain, err := revision.Load(o.Dir)
	if err != nil {
		return err
	}

	o.Chain = chain

	o.stdio.Debugf("Loaded %d migration definitions from %q\n", chain.Len(), o.Dir)

	if !o.connect {
		return nil
	}

	driver := o.Driver
	if len(driver) == 0 {
		driver = store.InferDriver(o.DSN)
	}

	dialect, err := engine.DialectFor(driver)
	if err != nil {
		return err
	}

	dsn := o.DSN

	if driver == store.DriverPostgreSQL && o.PromptPassword {
		dsn, err = o.ensurePassword(dsn)
		if err != nil {
			return err
		}
	}

	db, err := store.Open(driver, dsn)
	if err != nil {
		return err
	}

	if err := store.WaitReady(ctx, db, o.ConnectRetries, o.ConnectInterval, o.stdio.Warnf); err != nil {
		_ = db.Close()
		return err
	}

	o.db = db
	o.Engine = engine.New(db, dialect, chain, engine.WithLogf(o.stdio.Infof))

	return nil
}

// Close releases the database handle, if one was opened.
func (o *DatabaseOptions) Close() error {
	if o.db == nil {
		return nil
	}

	return o.db.Close()
}

// ensurePassword prompts for a PostgreSQL password when the DSN carries none.
func (o *DatabaseOptions) ensurePassword(dsn string) (string, error) {
	has, err := store.HasPassword(dsn)
	if err != nil {
		return "", err
	}

	if has {
		return dsn, nil
	}

	if o.stdio.NonInteractive {
		return "", fmt.Errorf("dsn has no password and input is non-interactive; embed the password in the DSN or drop --password")
	}

	pass, err := input.PromptPassword(o.stdio.ErrOut, int(o.stdio.In.Fd()))
	if err != nil {
		return "", fmt.Errorf("read database password: %w", err)
	}

	return store.WithPassword(dsn, string(pass))
}

type DefaultDriftOptions struct {
	*genericclioptions.StdioOptions

	configOptions   *ConfigOptions
	databaseOptions *DatabaseOptions
}

var _ genericclioptions.CmdOptions = &DefaultDriftOptions{}

func NewDefaultDriftOptions(iostreams *genericclioptions.IOStreams) *DefaultDriftOptions {
	stdio := &genericclioptions.StdioOptions{IOStreams: iostreams}

	return &DefaultDriftOptions{
		StdioOptions:    stdio,
		configOptions:   NewConfigOptions(stdio),
		databaseOptions: NewDatabaseOptions(stdio),
	}
}

func (o *DefaultDriftOptions) Complete() error {
	if err := o.StdioOptions.Complete(); err != nil {
		return err
	}

	if err := o.configOptions.Complete(); err != nil {
		return err
	}

	return o.databaseOptions.Complete()
}

func (o *DefaultDriftOptions) Validate() error {
	if err := o.StdioOptions.Validate(); err != nil {
		return err
	}

	return o.configOptions.Validate()
}

// Run overlays unset database options with environment and config file
// values, then resolves the database target.
//
// Precedence, highest first: command-line flags, environment
// (DATABASE_URL, then the discrete POSTGRES_* variables), config file,
// built-in defaults.
func (o *DefaultDriftOptions) Run(ctx context.Context, _ ...string) error {
	if err := o.configOptions.Run(ctx); err != nil {
		return err
	}

	var (
		db   = o.databaseOptions
		conf = o.configOptions.FileConfig
	)

	if len(db.DSN) == 0 {
		db.DSN = databaseURLFromEnv()
	}

	if len(db.DSN) == 0 {
		db.DSN = conf.Database.DSN
	}

	if len(db.Driver) == 0 {
		db.Driver = conf.Database.Driver
	}

	if db.Dir == defaultMigrationsDir && len(conf.Migrations.Dir) > 0 {
		db.Dir = conf.Migrations.Dir
	}

	if db.ConnectRetries == 0 {
		db.ConnectRetries = conf.Database.ConnectRetries
	}

	if db.ConnectInterval == 0 {
		db.ConnectInterval = conf.Database.connectInterval
	}

	if err := db.Validate(); err != nil {
		return err
	}

	return db.Run(ctx)
}

// confirm prompts via out and reads a yes/no answer from in.
func confirm(out io.Writer, in io.Reader, prompt string, a ...any) (bool, error) {
	response, err := input.PromptRead(out, in, prompt, a...)
	if err != nil {
		return false, err
	}

	normalized := strings.ToLower(strings.TrimSpace(response))

	return slices.Contains([]string{"y", "yes"}, normalized), nil
}

// NewDefaultDriftCommand creates the `drift` command with its sub-commands.
func NewDefaultDriftCommand(iostreams *genericclioptions.IOStreams, args []string) *cobra.Command {
	o := NewDefaultDriftOptions(iostreams)

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Manage and reconcile database schema migrations",
		Long: `drift manages a chain of SQL migration definitions and keeps the revision
recorded in the target database consistent with them.

Environment Variables:
    DRIFT_CONFIG_PATH: overrides the default config path: "~/.drift.toml".
    DATABASE_URL: overrides the configured database DSN.
    POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_HOST, POSTGRES_PORT,
    POSTGRES_DB: assemble a PostgreSQL DSN when DATABASE_URL is unset.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if skipDatabaseSetup(cmd) {
				return
			}

			if slices.Contains([]string{"create", "create-empty"}, cmd.Name()) {
				WithConnect(false)(o.databaseOptions)
			}

			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if err := o.databaseOptions.Close(); err != nil {
				o.Warnf("close database: %v\n", err)
			}
		},
	}

	cmd.SetArgs(args)

	cmd.PersistentFlags().BoolVarP(&o.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().StringVarP(&o.databaseOptions.DSN, "dsn", "", "", "database DSN (a postgres:// URL or an sqlite file path)")
	cmd.PersistentFlags().StringVarP(&o.databaseOptions.Driver, "driver", "", "", "database driver: sqlite or postgres (default: inferred from the DSN)")
	cmd.PersistentFlags().StringVarP(&o.databaseOptions.Dir, "dir", "d", "",
		fmt.Sprintf("migration definitions directory (default: %q)", defaultMigrationsDir))
	cmd.PersistentFlags().BoolVarP(&o.databaseOptions.PromptPassword, "password", "W", false, "prompt for a database password when the DSN omits one")
	cmd.PersistentFlags().StringVarP(
		&o.configOptions.userPath,
		"config",
		"",
		"",
		fmt.Sprintf("configuration file path (default: ~/%s)", defaultConfigName),
	)

	cmd.AddCommand(NewCmdConfig(o))
	cmd.AddCommand(newVersionCommand(o))

	cmd.AddCommand(NewCmdStatus(o))
	cmd.AddCommand(NewCmdCreate(o))
	cmd.AddCommand(NewCmdCreateEmpty(o))
	cmd.AddCommand(NewCmdApply(o))
	cmd.AddCommand(NewCmdRollback(o))
	cmd.AddCommand(NewCmdRebuild(o))
	cmd.AddCommand(NewCmdCleanup(o))
	cmd.AddCommand(NewCmdRepair(o))
	cmd.AddCommand(NewCmdValidate(o))

	return cmd
}

// skipDatabaseSetup reports whether cmd resolves neither the definition
// chain nor a database connection.
func skipDatabaseSetup(cmd *cobra.Command) bool {
	if slices.Contains([]string{"config", "version", "help", "completion"}, cmd.Name()) {
		return true
	}

	// config subcommands (generate, validate)
	return cmd.Parent() != nil && cmd.Parent().Name() == "config"
}
