package revision_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/driftsql/drift/drifterrors"
	"github.com/driftsql/drift/revision"

	gocmp "github.com/google/go-cmp/cmp"
)

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write definition file: %v", err)
	}
}

const baseDefinition = `-- message: create users table
-- down: base

-- +up
CREATE TABLE users (id INTEGER PRIMARY KEY);

-- +down
DROP TABLE users;
`

const secondDefinition = `-- message: add email column
-- down: a1b2c3d4e5f6

-- +up
ALTER TABLE users ADD COLUMN email TEXT;

-- +down
ALTER TABLE users DROP COLUMN email;
`

func TestLoad_ValidChain(t *testing.T) {
	dir := t.TempDir()

	writeDefinition(t, dir, "a1b2c3d4e5f6_create_users_table.sql", baseDefinition)
	writeDefinition(t, dir, "0f9e8d7c6b5a_add_email_column.sql", secondDefinition)

	chain, err := revision.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := chain.Len(), 2; got != want {
		t.Fatalf("chain length: want %d, got %d", want, got)
	}

	head, ok := chain.Head()
	if !ok {
		t.Fatal("want head, got empty chain")
	}

	if want := "0f9e8d7c6b5a"; head != want {
		t.Errorf("head: want %q, got %q", want, head)
	}

	base := chain.Ordered()[0]

	want := &revision.Definition{
		ID:      "a1b2c3d4e5f6",
		Down:    revision.DownBase,
		Message: "create users table",
		UpSQL:   "CREATE TABLE users (id INTEGER PRIMARY KEY);",
		DownSQL: "DROP TABLE users;",
		Path:    filepath.Join(dir, "a1b2c3d4e5f6_create_users_table.sql"),
	}
	if diff := gocmp.Diff(want, base); diff != "" {
		t.Errorf("base definition mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EmptyDirIsValid(t *testing.T) {
	chain, err := revision.Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chain.Len() != 0 {
		t.Errorf("want empty chain, got %d definitions", chain.Len())
	}

	if _, ok := chain.Head(); ok {
		t.Error("want no head for an empty chain")
	}
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := revision.Load(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, drifterrors.ErrMigrationsDirNotFound) {
		t.Errorf("want ErrMigrationsDirNotFound, got %v", err)
	}
}

func TestLoad_IgnoresNonSQLFiles(t *testing.T) {
	dir := t.TempDir()

	writeDefinition(t, dir, "a1b2c3d4e5f6_create_users_table.sql", baseDefinition)
	writeDefinition(t, dir, "README.md", "not a migration")

	chain, err := revision.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := chain.Len(), 1; got != want {
		t.Errorf("chain length: want %d, got %d", want, got)
	}
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "missing down header",
			file: "a1b2c3d4e5f6_x.sql",
			content: `-- message: no predecessor

-- +up
SELECT 1;
`,
		},
		{
			name: "missing up marker",
			file: "a1b2c3d4e5f6_x.sql",
			content: `-- down: base
`,
		},
		{
			name: "statement before first marker",
			file: "a1b2c3d4e5f6_x.sql",
			content: `-- down: base
SELECT 1;

-- +up
`,
		},
		{
			name: "invalid predecessor reference",
			file: "a1b2c3d4e5f6_x.sql",
			content: `-- down: NOT-AN-ID

-- +up
`,
		},
		{
			name:    "underivable id",
			file:    "_no_id.sql",
			content: baseDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeDefinition(t, dir, tt.file, tt.content)

			_, err := revision.Load(dir)

			var parseErr *revision.ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("want *revision.ParseError, got %v", err)
			}
		})
	}
}

func TestLoad_ChainErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name: "no base revision",
			files: map[string]string{
				"0f9e8d7c6b5a_x.sql": secondDefinition,
			},
		},
		{
			name: "multiple base revisions",
			files: map[string]string{
				"a1b2c3d4e5f6_x.sql": baseDefinition,
				"0f9e8d7c6b5a_y.sql": "-- down: base\n\n-- +up\n",
			},
		},
		{
			name: "unknown predecessor",
			files: map[string]string{
				"a1b2c3d4e5f6_x.sql": baseDefinition,
				"0f9e8d7c6b5a_y.sql": "-- down: ffffffffffff\n\n-- +up\n",
			},
		},
		{
			name: "shared predecessor",
			files: map[string]string{
				"a1b2c3d4e5f6_x.sql": baseDefinition,
				"0f9e8d7c6b5a_y.sql": "-- down: a1b2c3d4e5f6\n\n-- +up\n",
				"123456abcdef_z.sql": "-- down: a1b2c3d4e5f6\n\n-- +up\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeDefinition(t, dir, name, content)
			}

			_, err := revision.Load(dir)

			var chainErr *revision.ChainError
			if !errors.As(err, &chainErr) {
				t.Errorf("want *revision.ChainError, got %v", err)
			}
		})
	}
}

func TestChain_After(t *testing.T) {
	dir := t.TempDir()

	writeDefinition(t, dir, "a1b2c3d4e5f6_x.sql", baseDefinition)
	writeDefinition(t, dir, "0f9e8d7c6b5a_y.sql", secondDefinition)

	chain, err := revision.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("fresh database has the whole chain pending", func(t *testing.T) {
		pending, err := chain.After("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got, want := len(pending), 2; got != want {
			t.Errorf("pending: want %d, got %d", want, got)
		}
	})

	t.Run("at head nothing is pending", func(t *testing.T) {
		pending, err := chain.After("0f9e8d7c6b5a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(pending) != 0 {
			t.Errorf("want no pending revisions, got %d", len(pending))
		}
	})

	t.Run("unknown revision", func(t *testing.T) {
		if _, err := chain.After("ffffffffffff"); !errors.Is(err, drifterrors.ErrUnknownRevision) {
			t.Errorf("want ErrUnknownRevision, got %v", err)
		}
	})
}

func TestChain_Until(t *testing.T) {
	dir := t.TempDir()

	writeDefinition(t, dir, "a1b2c3d4e5f6_x.sql", baseDefinition)
	writeDefinition(t, dir, "0f9e8d7c6b5a_y.sql", secondDefinition)

	chain, err := revision.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := chain.Until("", "a1b2c3d4e5f6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := len(pending), 1; got != want {
		t.Fatalf("pending: want %d, got %d", want, got)
	}

	if got, want := pending[0].ID, "a1b2c3d4e5f6"; got != want {
		t.Errorf("pending id: want %q, got %q", want, got)
	}

	t.Run("target behind recorded", func(t *testing.T) {
		if _, err := chain.Until("0f9e8d7c6b5a", "a1b2c3d4e5f6"); err == nil {
			t.Error("want error for a target behind the recorded revision")
		}
	})
}

func TestFilename(t *testing.T) {
	tests := []struct {
		id      string
		message string
		want    string
	}{
		{"a1b2c3d4e5f6", "create users table", "a1b2c3d4e5f6_create_users_table.sql"},
		{"a1b2c3d4e5f6", "", "a1b2c3d4e5f6.sql"},
		{"a1b2c3d4e5f6", "Drop  old --- index!", "a1b2c3d4e5f6_drop_old_index.sql"},
	}

	for _, tt := range tests {
		if got := revision.Filename(tt.id, tt.message); got != tt.want {
			t.Errorf("Filename(%q, %q): want %q, got %q", tt.id, tt.message, tt.want, got)
		}
	}
}

func TestWrite_Roundtrip(t *testing.T) {
	dir := t.TempDir()

	d := &revision.Definition{
		ID:      "a1b2c3d4e5f6",
		Down:    revision.DownBase,
		Message: "create users table",
		UpSQL:   "CREATE TABLE users (id INTEGER PRIMARY KEY);",
	}

	path, err := revision.Write(dir, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chain, err := revision.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := chain.Get("a1b2c3d4e5f6")
	if !ok {
		t.Fatal("written definition not found in reloaded chain")
	}

	want := &revision.Definition{
		ID:      d.ID,
		Down:    d.Down,
		Message: d.Message,
		UpSQL:   d.UpSQL,
		Path:    path,
	}
	if diff := gocmp.Diff(want, got); diff != "" {
		t.Errorf("definition mismatch (-want +got):\n%s", diff)
	}

	t.Run("existing file is not overwritten", func(t *testing.T) {
		if _, err := revision.Write(dir, d); err == nil {
			t.Error("want error when the target file already exists")
		}
	})
}
