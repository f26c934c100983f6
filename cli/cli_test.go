package cli_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftsql/drift/cli"
	"github.com/driftsql/drift/clierror"
	"github.com/driftsql/drift/genericclioptions"
	"github.com/driftsql/drift/revision"
)

type driftEnv struct {
	tempDir       string
	configPath    string
	migrationsDir string
	dbPath        string
}

const (
	baseID   = "a1b2c3d4e5f6"
	secondID = "0f9e8d7c6b5a"
)

var testDefinitions = map[string]string{
	baseID + "_create_users.sql": `-- message: create users table
-- down: base

-- +up
CREATE TABLE users (id INTEGER PRIMARY KEY);

-- +down
DROP TABLE users;
`,
	secondID + "_create_posts.sql": `-- message: create posts table
-- down: ` + baseID + `

-- +up
CREATE TABLE posts (id INTEGER PRIMARY KEY);

-- +down
DROP TABLE posts;
`,
}

func setupDriftEnv(t *testing.T) driftEnv {
	t.Helper()
	tempDir := t.TempDir()

	var (
		configPath    = filepath.Join(tempDir, ".drift.toml")
		migrationsDir = filepath.Join(tempDir, "migrations")
		dbPath        = filepath.Join(tempDir, "drift.db")
	)

	content := fmt.Sprintf(`
		[database]
		connect_retries = 1
		connect_interval = '1ms'
		[migrations]
		dir = '%s'
	`, migrationsDir)

	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config content: %v", err)
	}

	if err := os.Mkdir(migrationsDir, 0o755); err != nil {
		t.Fatalf("failed to create migrations dir: %v", err)
	}

	t.Setenv("DRIFT_CONFIG_PATH", configPath)

	return driftEnv{
		tempDir:       tempDir,
		configPath:    configPath,
		migrationsDir: migrationsDir,
		dbPath:        dbPath,
	}
}

func (e driftEnv) seedDefinitions(t *testing.T) {
	t.Helper()

	for name, content := range testDefinitions {
		if err := os.WriteFile(filepath.Join(e.migrationsDir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write definition file: %v", err)
		}
	}
}

// setupIOStreams creates IOStreams with a mocked stdin.
func setupIOStreams(t *testing.T, in []byte, stdinInfoFn func(string, int) os.FileInfo) (ioStreams *genericclioptions.IOStreams, out *bytes.Buffer, errOut *bytes.Buffer) {
	t.Helper()

	var (
		buf       = bytes.NewBuffer(in)
		stdinInfo = stdinInfoFn("stdin", len(in))
	)

	stdinReader := genericclioptions.NewTestFdReader(buf, 0, stdinInfo)

	ioStreams, _, out, errOut = genericclioptions.NewTestIOStreams(stdinReader)

	clierror.SetErrorHandler(clierror.PrintErrHandler)
	clierror.SetErrWriter(ioStreams.ErrOut)

	t.Cleanup(func() {
		clierror.ResetErrorHandler()
		clierror.ResetErrWriter()
	})

	return
}

func newTTYFileInfo(name string, size int) os.FileInfo {
	return genericclioptions.NewMockFileInfo(name, int64(size), os.ModeCharDevice, false, time.Now())
}

func newNonTTYFileInfo(name string, size int) os.FileInfo {
	return genericclioptions.NewMockFileInfo(name, int64(size), 0, false, time.Now())
}

// runDrift executes a drift command against the given environment with a
// mocked interactive stdin.
func runDrift(t *testing.T, env driftEnv, stdin []byte, stdinInfoFn func(string, int) os.FileInfo, args ...string) (out, errOut *bytes.Buffer) {
	t.Helper()

	ioStreams, out, errOut := setupIOStreams(t, stdin, stdinInfoFn)

	args = append([]string{"--dsn", env.dbPath, "--driver", "sqlite"}, args...)

	cmd := cli.NewDefaultDriftCommand(ioStreams, args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("command execution failed: %v\nstderr: %q", err, errOut.String())
	}

	return out, errOut
}

func mustApply(t *testing.T, env driftEnv) {
	t.Helper()

	_, errOut := runDrift(t, env, nil, newTTYFileInfo, "apply")

	if gotStderr := errOut.String(); gotStderr != "" {
		t.Fatalf("apply failed: %q", gotStderr)
	}
}

func TestVersionCommand(t *testing.T) {
	ioStreams, out, _ := setupIOStreams(t, nil, newTTYFileInfo)

	cmd := cli.NewDefaultDriftCommand(ioStreams, []string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	if got, want := out.String(), cli.Version+"\n"; got != want {
		t.Errorf("want output %q, got %q", want, got)
	}
}

func TestConfigGenerateCommand(t *testing.T) {
	ioStreams, out, errOut := setupIOStreams(t, nil, newTTYFileInfo)

	cmd := cli.NewDefaultDriftCommand(ioStreams, []string{"config", "generate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config generate failed: %v\nstderr: %q", err, errOut.String())
	}

	for _, section := range []string{"[database]", "[migrations]", "[hooks]"} {
		if !strings.Contains(out.String(), section) {
			t.Errorf("generated config missing section %q:\n%s", section, out.String())
		}
	}
}

func TestConfigValidateCommand(t *testing.T) {
	env := setupDriftEnv(t)

	ioStreams, out, errOut := setupIOStreams(t, nil, newTTYFileInfo)

	cmd := cli.NewDefaultDriftCommand(ioStreams, []string{"config", "validate", "--file", env.configPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config validate failed: %v\nstderr: %q", err, errOut.String())
	}

	if !strings.Contains(out.String(), "OK") {
		t.Errorf("want OK in output, got %q", out.String())
	}
}

func TestCreateEmptyCommand(t *testing.T) {
	env := setupDriftEnv(t)

	_, errOut := runDrift(t, env, nil, newTTYFileInfo, "create-empty", "-m", "initial schema")

	if gotStderr := errOut.String(); gotStderr != "" {
		t.Fatalf("unexpected stderr output: %q", gotStderr)
	}

	chain, err := revision.Load(env.migrationsDir)
	if err != nil {
		t.Fatalf("failed to load created chain: %v", err)
	}

	if got, want := chain.Len(), 1; got != want {
		t.Fatalf("chain length: want %d, got %d", want, got)
	}

	d := chain.Ordered()[0]

	if d.Down != revision.DownBase {
		t.Errorf("first definition predecessor: want %q, got %q", revision.DownBase, d.Down)
	}

	if d.Message != "initial schema" {
		t.Errorf("message: want %q, got %q", "initial schema", d.Message)
	}
}

func TestCreateCommand_FromStdin(t *testing.T) {
	env := setupDriftEnv(t)
	env.seedDefinitions(t)

	upSQL := []byte("CREATE TABLE comments (id INTEGER PRIMARY KEY);\n")

	_, errOut := runDrift(t, env, upSQL, newNonTTYFileInfo, "create", "-m", "create comments table")

	if gotStderr := errOut.String(); gotStderr != "" {
		t.Fatalf("unexpected stderr output: %q", gotStderr)
	}

	chain, err := revision.Load(env.migrationsDir)
	if err != nil {
		t.Fatalf("failed to load chain: %v", err)
	}

	if got, want := chain.Len(), 3; got != want {
		t.Fatalf("chain length: want %d, got %d", want, got)
	}

	head, _ := chain.Head()

	d, _ := chain.Get(head)
	if d.Down != secondID {
		t.Errorf("new definition predecessor: want %q, got %q", secondID, d.Down)
	}

	if want := "CREATE TABLE comments (id INTEGER PRIMARY KEY);"; d.UpSQL != want {
		t.Errorf("up sql: want %q, got %q", want, d.UpSQL)
	}
}

func TestCreateCommand_RequiresMessage(t *testing.T) {
	env := setupDriftEnv(t)

	_, errOut := runDrift(t, env, nil, newTTYFileInfo, "create-empty")

	if want := "message is required"; !strings.Contains(errOut.String(), want) {
		t.Errorf("want stderr containing %q, got %q", want, errOut.String())
	}
}

func TestApplyCommand(t *testing.T) {
	env := setupDriftEnv(t)
	env.seedDefinitions(t)

	out, errOut := runDrift(t, env, nil, newTTYFileInfo, "apply")

	if gotStderr := errOut.String(); gotStderr != "" {
		t.Fatalf("unexpected stderr output: %q", gotStderr)
	}

	for _, id := range []string{baseID, secondID} {
		if !strings.Contains(out.String(), id) {
			t.Errorf("apply output missing revision %q:\n%s", id, out.String())
		}
	}

	t.Run("reapply is a no-op", func(t *testing.T) {
		out, _ := runDrift(t, env, nil, newTTYFileInfo, "apply")

		if want := "Already up to date."; !strings.Contains(out.String(), want) {
			t.Errorf("want output containing %q, got %q", want, out.String())
		}
	})

	t.Run("status reports up to date", func(t *testing.T) {
		out, _ := runDrift(t, env, nil, newTTYFileInfo, "status")

		if want := "Database is up to date."; !strings.Contains(out.String(), want) {
			t.Errorf("want output containing %q, got %q", want, out.String())
		}

		if want := "Recorded revision: " + secondID; !strings.Contains(out.String(), want) {
			t.Errorf("want output containing %q, got %q", want, out.String())
		}
	})
}

func TestStatusCommand_FreshDatabase(t *testing.T) {
	env := setupDriftEnv(t)
	env.seedDefinitions(t)

	out, _ := runDrift(t, env, nil, newTTYFileInfo, "status")

	if want := "Recorded revision: none"; !strings.Contains(out.String(), want) {
		t.Errorf("want output containing %q, got %q", want, out.String())
	}

	if want := "Pending revisions (2):"; !strings.Contains(out.String(), want) {
		t.Errorf("want output containing %q, got %q", want, out.String())
	}
}

// breakChain removes the head definition file after applying, leaving the
// recorded revision pointing at a definition that no longer exists.
func breakChain(t *testing.T, env driftEnv) {
	t.Helper()

	mustApply(t, env)

	if err := os.Remove(filepath.Join(env.migrationsDir, secondID+"_create_posts.sql")); err != nil {
		t.Fatalf("failed to remove definition file: %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	env := setupDriftEnv(t)
	env.seedDefinitions(t)

	t.Run("consistent", func(t *testing.T) {
		out, errOut := runDrift(t, env, nil, newTTYFileInfo, "validate")

		if gotStderr := errOut.String(); gotStderr != "" {
			t.Fatalf("unexpected stderr output: %q", gotStderr)
		}

		if !strings.Contains(out.String(), "OK") {
			t.Errorf("want OK in output, got %q", out.String())
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		breakChain(t, env)

		_, errOut := runDrift(t, env, nil, newTTYFileInfo, "validate")

		if want := "drift: recorded revision has no matching definition"; !strings.Contains(errOut.String(), want) {
			t.Errorf("want stderr containing %q, got %q", want, errOut.String())
		}
	})
}

func TestRepairCommand(t *testing.T) {
	env := setupDriftEnv(t)
	env.seedDefinitions(t)
	breakChain(t, env)

	t.Run("declined prompt leaves the record untouched", func(t *testing.T) {
		_, errOut := runDrift(t, env, []byte("n\n"), newTTYFileInfo, "repair")

		if want := "drift: repair declined"; !strings.Contains(errOut.String(), want) {
			t.Errorf("want stderr containing %q, got %q", want, errOut.String())
		}
	})

	t.Run("confirmed prompt realigns to head", func(t *testing.T) {
		_, errOut := runDrift(t, env, []byte("y\n"), newTTYFileInfo, "repair")

		if gotStderr := errOut.String(); gotStderr != "" {
			t.Fatalf("unexpected stderr output: %q", gotStderr)
		}

		out, _ := runDrift(t, env, nil, newTTYFileInfo, "status")

		if want := "Recorded revision: " + baseID; !strings.Contains(out.String(), want) {
			t.Errorf("want output containing %q, got %q", want, out.String())
		}
	})

	t.Run("consistent record needs no repair", func(t *testing.T) {
		out, _ := runDrift(t, env, nil, newTTYFileInfo, "repair", "--yes")

		if want := "nothing to repair"; !strings.Contains(out.String(), want) {
			t.Errorf("want output containing %q, got %q", want, out.String())
		}
	})
}

func TestApplyCommand_RepairsMismatch(t *testing.T) {
	env := setupDriftEnv(t)
	env.seedDefinitions(t)
	breakChain(t, env)

	t.Run("non-interactive run halts and points at repair", func(t *testing.T) {
		_, errOut := runDrift(t, env, nil, newNonTTYFileInfo, "apply")

		if want := "Run 'drift repair'"; !strings.Contains(errOut.String(), want) {
			t.Errorf("want stderr containing %q, got %q", want, errOut.String())
		}
	})

	t.Run("confirmed repair then upgrade", func(t *testing.T) {
		_, errOut := runDrift(t, env, []byte("y\n"), newTTYFileInfo, "apply")

		if gotStderr := errOut.String(); gotStderr != "" {
			t.Fatalf("unexpected stderr output: %q", gotStderr)
		}

		out, _ := runDrift(t, env, nil, newTTYFileInfo, "status")

		if want := "Database is up to date."; !strings.Contains(out.String(), want) {
			t.Errorf("want output containing %q, got %q", want, out.String())
		}
	})
}

func TestRollbackCommand(t *testing.T) {
	env := setupDriftEnv(t)
	env.seedDefinitions(t)
	mustApply(t, env)

	_, errOut := runDrift(t, env, nil, newTTYFileInfo, "rollback", "--yes")

	if gotStderr := errOut.String(); gotStderr != "" {
		t.Fatalf("unexpected stderr output: %q", gotStderr)
	}

	out, _ := runDrift(t, env, nil, newTTYFileInfo, "status")

	if want := "Recorded revision: " + baseID; !strings.Contains(out.String(), want) {
		t.Errorf("want output containing %q, got %q", want, out.String())
	}

	if want := "Pending revisions (1):"; !strings.Contains(out.String(), want) {
		t.Errorf("want output containing %q, got %q", want, out.String())
	}

	t.Run("declined prompt aborts", func(t *testing.T) {
		out, _ := runDrift(t, env, []byte("n\n"), newTTYFileInfo, "rollback")

		if want := "Rollback aborted."; !strings.Contains(out.String(), want) {
			t.Errorf("want output containing %q, got %q", want, out.String())
		}
	})

	t.Run("fresh database has nothing to roll back", func(t *testing.T) {
		_, errOut := runDrift(t, env, nil, newTTYFileInfo, "rollback", "--yes")

		if gotStderr := errOut.String(); gotStderr != "" {
			t.Fatalf("unexpected stderr output: %q", gotStderr)
		}

		_, errOut = runDrift(t, env, nil, newTTYFileInfo, "rollback", "--yes")

		if want := "nothing to roll back"; !strings.Contains(errOut.String(), want) {
			t.Errorf("want stderr containing %q, got %q", want, errOut.String())
		}
	})
}

func TestRebuildCommand(t *testing.T) {
	env := setupDriftEnv(t)
	env.seedDefinitions(t)
	mustApply(t, env)

	_, errOut := runDrift(t, env, nil, newTTYFileInfo, "rebuild", "--yes")

	if gotStderr := errOut.String(); gotStderr != "" {
		t.Fatalf("unexpected stderr output: %q", gotStderr)
	}

	out, _ := runDrift(t, env, nil, newTTYFileInfo, "status")

	if want := "Database is up to date."; !strings.Contains(out.String(), want) {
		t.Errorf("want output containing %q, got %q", want, out.String())
	}
}

func TestCleanupCommand(t *testing.T) {
	env := setupDriftEnv(t)
	env.seedDefinitions(t)
	mustApply(t, env)

	_, errOut := runDrift(t, env, nil, newTTYFileInfo, "cleanup", "--yes")

	if gotStderr := errOut.String(); gotStderr != "" {
		t.Fatalf("unexpected stderr output: %q", gotStderr)
	}

	// with the bookkeeping gone the database reads as fresh
	out, _ := runDrift(t, env, nil, newTTYFileInfo, "status")

	if want := "Recorded revision: none"; !strings.Contains(out.String(), want) {
		t.Errorf("want output containing %q, got %q", want, out.String())
	}

	if want := "Pending revisions (2):"; !strings.Contains(out.String(), want) {
		t.Errorf("want output containing %q, got %q", want, out.String())
	}
}
