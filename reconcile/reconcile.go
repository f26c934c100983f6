// Package reconcile detects and resolves mismatches between the revision
// recorded in a database and the set of migration definitions on disk.
//
// The single fault it handles: the recorded revision references a definition
// that no longer exists, typically because the file was deleted or renamed.
// Repair realigns the record to the newest known definition. The rewrite is
// destructive and can silently skip migrations when the intended target was
// earlier in the chain, so it only proceeds once the configured confirmation
// hook approves it.
package reconcile

import (
	"context"
	"fmt"

	"github.com/driftsql/drift/drifterrors"
)

// Result is the outcome of one reconciliation pass.
type Result int

const (
	// ResultConsistent means the recorded revision matched a known
	// definition (or the "none" sentinel); nothing was changed.
	ResultConsistent Result = iota

	// ResultRepaired means the recorded revision was overwritten with the
	// head of the definition chain.
	ResultRepaired

	// ResultRepairFailed means a mismatch was detected but could not be
	// resolved; the caller must halt instead of applying migrations.
	ResultRepairFailed
)

func (r Result) String() string {
	switch r {
	case ResultConsistent:
		return "consistent"
	case ResultRepaired:
		return "repaired"
	case ResultRepairFailed:
		return "repair failed"
	default:
		return fmt.Sprintf("unknown result (%d)", int(r))
	}
}

// Engine is the subset of migration engine behavior the reconciler drives.
type Engine interface {
	// Current returns the recorded revision id, "" for a fresh database.
	Current(ctx context.Context) (string, error)

	// Check reports whether the recorded revision is consistent with the
	// known definition set.
	Check(ctx context.Context) (bool, error)

	// Upgrade applies pending definitions up to the given target.
	Upgrade(ctx context.Context, target string) error

	// SetRevision unconditionally overwrites the recorded revision.
	SetRevision(ctx context.Context, rev string) error
}

// Definitions exposes the known migration definition set.
type Definitions interface {
	// Head returns the id of the newest definition, false when empty.
	Head() (string, bool)

	// Contains reports whether id matches a known definition.
	Contains(id string) bool
}

// ConfirmFunc decides whether a detected mismatch may be repaired by
// overwriting the recorded revision with head.
type ConfirmFunc func(recorded, head string) (bool, error)

// Reconciler coordinates validity checking, repair, and upgrade against an
// injected engine and definition set. It performs no locking; the caller is
// responsible for ensuring a single concurrent invocation per database.
type Reconciler struct {
	engine  Engine
	defs    Definitions
	confirm ConfirmFunc
	logf    func(format string, args ...any)
}

type Opt func(*Reconciler)

// WithConfirm installs the repair confirmation hook. Without one, any
// detected mismatch fails reconciliation instead of being repaired.
func WithConfirm(f ConfirmFunc) Opt {
	return func(r *Reconciler) {
		r.confirm = f
	}
}

// WithLogf sets the function used for per-step status lines.
func WithLogf(f func(format string, args ...any)) Opt {
	return func(r *Reconciler) {
		if f != nil {
			r.logf = f
		}
	}
}

// New creates a reconciler over the given engine and definition set.
func New(engine Engine, defs Definitions, opts ...Opt) *Reconciler {
	r := &Reconciler{
		engine: engine,
		defs:   defs,
		logf:   func(string, ...any) {},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// CheckChainValidity delegates to the engine's consistency check.
// It is read-only.
func (r *Reconciler) CheckChainValidity(ctx context.Context) (bool, error) {
	valid, err := r.engine.Check(ctx)
	if err != nil {
		return false, fmt.Errorf("chain validity check: %w", err)
	}

	return valid, nil
}

// RecordedRevision returns the revision recorded in the database,
// "" for a fresh database.
func (r *Reconciler) RecordedRevision(ctx context.Context) (string, error) {
	rev, err := r.engine.Current(ctx)
	if err != nil {
		return "", fmt.Errorf("recorded revision: %w", err)
	}

	return rev, nil
}

// LatestDefinition returns the head of the definition chain,
// false when no definitions exist.
func (r *Reconciler) LatestDefinition() (string, bool) {
	return r.defs.Head()
}

// Repair resolves a recorded revision that matches no known definition by
// overwriting it with the head of the chain.
//
// A consistent record is left untouched. When no definitions exist, repair
// is impossible and the caller must halt rather than apply migrations
// against an indeterminate history. A failed record write is fatal; there
// is no retry.
func (r *Reconciler) Repair(ctx context.Context) (Result, error) {
	recorded, err := r.RecordedRevision(ctx)
	if err != nil {
		return ResultRepairFailed, err
	}

	if len(recorded) == 0 || r.defs.Contains(recorded) {
		return ResultConsistent, nil
	}

	head, ok := r.defs.Head()
	if !ok {
		return ResultRepairFailed, fmt.Errorf("%w: cannot repair recorded revision %q", drifterrors.ErrNoDefinitions, recorded)
	}

	r.logf("Recorded revision %q has no matching definition; repair would overwrite it with head %q.\n", recorded, head)

	if r.confirm == nil {
		return ResultRepairFailed, fmt.Errorf("%w: recorded revision %q requires manual repair", drifterrors.ErrUnknownRevision, recorded)
	}

	confirmed, err := r.confirm(recorded, head)
	if err != nil {
		return ResultRepairFailed, fmt.Errorf("repair confirmation: %w", err)
	}

	if !confirmed {
		return ResultRepairFailed, drifterrors.ErrRepairDeclined
	}

	if err := r.engine.SetRevision(ctx, head); err != nil {
		return ResultRepairFailed, fmt.Errorf("overwrite recorded revision: %w", err)
	}

	r.logf("Recorded revision realigned to %q.\n", head)

	return ResultRepaired, nil
}

// reconciliation states, one pass per Apply invocation.
type state int

const (
	stateValidating state = iota
	stateRepairing
	stateUpgrading
)

// Apply runs one reconciliation pass and upgrades the database to head.
//
// The pass validates the chain, repairs it at most once on mismatch, then
// re-validates before upgrading. A chain that is still invalid after the
// single repair attempt fails the pass; no upgrade is attempted against a
// chain known to be broken. Invoking Apply when already at head is a no-op
// reporting success.
func (r *Reconciler) Apply(ctx context.Context) error {
	repaired := false

	for st := stateValidating; ; {
		switch st {
		case stateValidating:
			valid, err := r.CheckChainValidity(ctx)
			if err != nil {
				return err
			}

			if valid {
				st = stateUpgrading
				continue
			}

			if repaired {
				return fmt.Errorf("%w: chain still invalid after repair", drifterrors.ErrChainInvalid)
			}

			r.logf("Migration chain is invalid; attempting repair.\n")

			st = stateRepairing

		case stateRepairing:
			res, err := r.Repair(ctx)
			if err != nil {
				return err
			}

			if res != ResultRepaired {
				return fmt.Errorf("%w: reconciliation result: %s", drifterrors.ErrChainInvalid, res)
			}

			repaired = true
			st = stateValidating

		case stateUpgrading:
			if err := r.engine.Upgrade(ctx, "head"); err != nil {
				return fmt.Errorf("upgrade to head: %w", err)
			}

			return nil
		}
	}
}
