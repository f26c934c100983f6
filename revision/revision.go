// Package revision manages the on-disk set of migration definitions.
//
// A definition is a single SQL file named "<id>_<slug>.sql". The revision id
// is derived from the file name. The file header declares the predecessor
// revision and an optional message, followed by the up and down sections:
//
//	-- message: create users table
//	-- down: base
//
//	-- +up
//	CREATE TABLE users (id INTEGER PRIMARY KEY);
//
//	-- +down
//	DROP TABLE users;
//
// Definitions form a linear dependency chain from a single base revision
// (down = "base") to a single head (the revision no other definition refers
// to as its predecessor).
package revision

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/driftsql/drift/drifterrors"
	"github.com/driftsql/drift/revid"
)

const (
	// DownBase is the predecessor reference used by the first revision
	// in the chain.
	DownBase = "base"

	markerUp   = "-- +up"
	markerDown = "-- +down"

	headerDown    = "-- down:"
	headerMessage = "-- message:"
)

// Definition is one parsed migration definition file.
type Definition struct {
	ID      string // revision id, derived from the file name
	Down    string // predecessor revision id, or [DownBase]
	Message string

	UpSQL   string
	DownSQL string

	Path string // absolute or caller-relative path of the source file
}

// ParseError describes a malformed definition file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return "revision: " + e.Path + ": " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// ChainError describes a structurally broken definition chain.
type ChainError struct {
	Err error
}

func (e *ChainError) Error() string { return "revision chain: " + e.Err.Error() }

func (e *ChainError) Unwrap() error { return e.Err }

// Chain is the validated, ordered migration definition chain.
type Chain struct {
	ordered []*Definition // base first, head last
	byID    map[string]*Definition
}

// Load scans dir for "*.sql" definition files and builds the chain.
//
// An empty or definition-free directory yields an empty chain, which is
// valid. A missing directory is an error.
func Load(dir string) (*Chain, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", drifterrors.ErrMigrationsDirNotFound, dir)
		}

		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	defs := make([]*Definition, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		p := filepath.Join(dir, entry.Name())

		d, err := parseFile(p)
		if err != nil {
			return nil, err
		}

		defs = append(defs, d)
	}

	return newChain(defs)
}

// parseFile parses a single definition file at path.
func parseFile(path string) (*Definition, error) {
	id, err := idFromFilename(filepath.Base(path))
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open definition file: %w", err)
	}
	defer func() { //nolint:wsl
		_ = f.Close()
	}()

	d, err := parse(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	d.ID = id
	d.Path = path

	return d, nil
}

// idFromFilename derives the revision id from a definition file name.
// The id is everything before the first underscore; "<id>.sql" is also
// accepted for files without a slug.
func idFromFilename(name string) (string, error) {
	base := strings.TrimSuffix(name, ".sql")

	id, _, _ := strings.Cut(base, "_")
	if !revid.Valid(id) {
		return "", fmt.Errorf("cannot derive a revision id from filename %q", name)
	}

	return id, nil
}

func parse(r io.Reader) (*Definition, error) {
	var (
		d       = &Definition{}
		up      strings.Builder
		down    strings.Builder
		section *strings.Builder
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		switch trimmed := strings.TrimSpace(line); {
		case strings.EqualFold(trimmed, markerUp):
			section = &up
			continue
		case strings.EqualFold(trimmed, markerDown):
			section = &down
			continue
		}

		if section != nil {
			section.WriteString(line)
			section.WriteString("\n")

			continue
		}

		// header region: only comment lines and blanks are allowed
		// before the first section marker.
		switch trimmed := strings.TrimSpace(line); {
		case len(trimmed) == 0:
		case strings.HasPrefix(trimmed, headerDown):
			d.Down = strings.TrimSpace(strings.TrimPrefix(trimmed, headerDown))
		case strings.HasPrefix(trimmed, headerMessage):
			d.Message = strings.TrimSpace(strings.TrimPrefix(trimmed, headerMessage))
		case strings.HasPrefix(trimmed, "--"):
		default:
			return nil, fmt.Errorf("statement before %q marker: %q", markerUp, trimmed)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan definition file: %w", err)
	}

	if section == nil {
		return nil, fmt.Errorf("missing %q marker", markerUp)
	}

	if len(d.Down) == 0 {
		return nil, fmt.Errorf("missing %q header", headerDown)
	}

	if d.Down != DownBase && !revid.Valid(d.Down) {
		return nil, fmt.Errorf("invalid predecessor reference %q", d.Down)
	}

	d.UpSQL = strings.TrimSpace(up.String())
	d.DownSQL = strings.TrimSpace(down.String())

	return d, nil
}

// newChain links and validates the given definitions.
//
// The chain must be linear: exactly one base, exactly one head, every
// predecessor reference resolvable, no duplicate ids, no cycles.
func newChain(defs []*Definition) (*Chain, error) {
	c := &Chain{
		ordered: make([]*Definition, 0, len(defs)),
		byID:    make(map[string]*Definition, len(defs)),
	}

	if len(defs) == 0 {
		return c, nil
	}

	for _, d := range defs {
		if dup, ok := c.byID[d.ID]; ok {
			return nil, &ChainError{fmt.Errorf("duplicate revision id %q (%q, %q)", d.ID, dup.Path, d.Path)}
		}

		c.byID[d.ID] = d
	}

	successorOf := make(map[string]*Definition, len(defs))

	var base *Definition

	for _, d := range defs {
		if d.Down == DownBase {
			if base != nil {
				return nil, &ChainError{fmt.Errorf("multiple base revisions: %q and %q", base.ID, d.ID)}
			}

			base = d

			continue
		}

		if _, ok := c.byID[d.Down]; !ok {
			return nil, &ChainError{fmt.Errorf("revision %q references unknown predecessor %q", d.ID, d.Down)}
		}

		if prev, ok := successorOf[d.Down]; ok {
			return nil, &ChainError{fmt.Errorf("revisions %q and %q share predecessor %q", prev.ID, d.ID, d.Down)}
		}

		successorOf[d.Down] = d
	}

	if base == nil {
		return nil, &ChainError{errors.New("no base revision found")}
	}

	for d := base; d != nil; d = successorOf[d.ID] {
		c.ordered = append(c.ordered, d)
	}

	// a walk shorter than the set means disconnected revisions or a cycle
	if len(c.ordered) != len(defs) {
		unreached := make([]string, 0, len(defs)-len(c.ordered))

		for _, d := range defs {
			if _, ok := c.indexOf(d.ID); !ok {
				unreached = append(unreached, d.ID)
			}
		}

		sort.Strings(unreached)

		return nil, &ChainError{fmt.Errorf("revisions not reachable from base: %s", strings.Join(unreached, ", "))}
	}

	return c, nil
}

// Len returns the number of definitions in the chain.
func (c *Chain) Len() int { return len(c.ordered) }

// Ordered returns the definitions in application order, base first.
func (c *Chain) Ordered() []*Definition { return c.ordered }

// Head returns the id of the newest definition, the one with no successor.
// It reports false when the chain is empty.
func (c *Chain) Head() (string, bool) {
	if len(c.ordered) == 0 {
		return "", false
	}

	return c.ordered[len(c.ordered)-1].ID, true
}

// Contains reports whether id matches a known definition.
func (c *Chain) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Get returns the definition with the given id.
func (c *Chain) Get(id string) (*Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

func (c *Chain) indexOf(id string) (int, bool) {
	for i, d := range c.ordered {
		if d.ID == id {
			return i, true
		}
	}

	return 0, false
}

// After returns the definitions pending after the given recorded revision,
// in application order. An empty id means a fresh database, so the whole
// chain is pending.
func (c *Chain) After(id string) ([]*Definition, error) {
	if len(id) == 0 {
		return c.ordered, nil
	}

	i, ok := c.indexOf(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", drifterrors.ErrUnknownRevision, id)
	}

	return c.ordered[i+1:], nil
}

// Until returns the definitions pending after recorded up to and including
// target, in application order.
func (c *Chain) Until(recorded, target string) ([]*Definition, error) {
	pending, err := c.After(recorded)
	if err != nil {
		return nil, err
	}

	j, ok := c.indexOf(target)
	if !ok {
		return nil, fmt.Errorf("%w: %q", drifterrors.ErrUnknownRevision, target)
	}

	n := 0
	for i, d := range pending {
		if d.ID == c.ordered[j].ID {
			n = i + 1
			break
		}
	}

	if n == 0 {
		return nil, fmt.Errorf("target revision %q is not ahead of %q", target, recorded)
	}

	return pending[:n], nil
}
