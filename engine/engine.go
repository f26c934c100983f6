// Package engine executes migration definitions against a relational
// database and maintains the recorded revision in a single-row table.
//
// The engine holds no state of its own beyond the injected database handle
// and definition chain; it assumes the caller has exclusive migration
// authority over the target database for the duration of each call.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/driftsql/drift/drifterrors"
	"github.com/driftsql/drift/revision"
)

// TargetHead upgrades to the newest known definition.
const TargetHead = "head"

// Engine applies and rolls back migration definitions.
type Engine struct {
	db      *sql.DB
	dialect Dialect
	chain   *revision.Chain
	logf    func(format string, args ...any)
}

type Opt func(*Engine)

// WithLogf sets the function used for per-step status lines.
func WithLogf(f func(format string, args ...any)) Opt {
	return func(e *Engine) {
		if f != nil {
			e.logf = f
		}
	}
}

// New creates an engine over the given database handle, dialect, and
// definition chain.
func New(db *sql.DB, dialect Dialect, chain *revision.Chain, opts ...Opt) *Engine {
	e := &Engine{
		db:      db,
		dialect: dialect,
		chain:   chain,
		logf:    func(string, ...any) {},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func errf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Current returns the recorded revision id, or "" for a fresh database
// (no bookkeeping table or no row).
func (e *Engine) Current(ctx context.Context) (string, error) {
	if err := e.ensureRevisionTable(ctx); err != nil {
		return "", err
	}

	var rev string

	err := e.db.QueryRowContext(ctx, e.dialect.CurrentRevisionQuery()).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", errf("scan recorded revision: %w", err)
	}

	return rev, nil
}

// History returns the ids of all known definitions in application order.
func (e *Engine) History() []string {
	ordered := e.chain.Ordered()

	ids := make([]string, len(ordered))
	for i, d := range ordered {
		ids[i] = d.ID
	}

	return ids
}

// Check reports whether the recorded revision is consistent with the known
// definition set: it must match exactly one definition, or be the "none"
// sentinel of a fresh database.
func (e *Engine) Check(ctx context.Context) (bool, error) {
	rev, err := e.Current(ctx)
	if err != nil {
		return false, err
	}

	return len(rev) == 0 || e.chain.Contains(rev), nil
}

// Pending returns the ids of the definitions not yet applied.
func (e *Engine) Pending(ctx context.Context) ([]string, error) {
	rev, err := e.Current(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := e.chain.After(rev)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(pending))
	for i, d := range pending {
		ids[i] = d.ID
	}

	return ids, nil
}

// Upgrade applies all pending definitions up to target, which is either a
// revision id or [TargetHead]. Invoking it when already at the target is a
// no-op.
//
// Each definition runs inside its own transaction together with the
// revision-row update, so a failure leaves the database at the last
// successfully applied revision.
func (e *Engine) Upgrade(ctx context.Context, target string) error {
	rev, err := e.Current(ctx)
	if err != nil {
		return err
	}

	var pending []*revision.Definition

	if target == TargetHead {
		pending, err = e.chain.After(rev)
	} else {
		pending, err = e.chain.Until(rev, target)
	}

	if err != nil {
		return err
	}

	if len(pending) == 0 {
		e.logf("Already up to date.\n")
		return nil
	}

	for _, d := range pending {
		e.logf("Applying %s", describe(d))

		if err := e.applyOne(ctx, d); err != nil {
			return errf("apply revision %q: %w", d.ID, err)
		}
	}

	return nil
}

// Downgrade rolls back up to steps revisions, stopping at the base.
// Each rolled-back revision must carry a non-empty down section.
func (e *Engine) Downgrade(ctx context.Context, steps int) error {
	if steps <= 0 {
		return errf("downgrade steps must be positive, got %d", steps)
	}

	rev, err := e.Current(ctx)
	if err != nil {
		return err
	}

	if len(rev) == 0 {
		return drifterrors.ErrNothingToRollback
	}

	applied, err := e.chain.After("")
	if err != nil {
		return err
	}

	i := -1

	for j, d := range applied {
		if d.ID == rev {
			i = j
			break
		}
	}

	if i < 0 {
		return fmt.Errorf("%w: %q", drifterrors.ErrUnknownRevision, rev)
	}

	for ; steps > 0 && i >= 0; steps, i = steps-1, i-1 {
		d := applied[i]

		if len(d.DownSQL) == 0 {
			return fmt.Errorf("%w: %q", drifterrors.ErrEmptyDownSection, d.ID)
		}

		e.logf("Rolling back %s", describe(d))

		if err := e.revertOne(ctx, d); err != nil {
			return errf("roll back revision %q: %w", d.ID, err)
		}
	}

	return nil
}

// SetRevision unconditionally overwrites the recorded revision.
// It is the write half of the reconciliation repair step.
func (e *Engine) SetRevision(ctx context.Context, rev string) error {
	if err := e.ensureRevisionTable(ctx); err != nil {
		return err
	}

	if _, err := e.db.ExecContext(ctx, e.dialect.SaveRevisionQuery(), rev); err != nil {
		return errf("save recorded revision: %w", err)
	}

	return nil
}

// DropRevisionTable removes the bookkeeping table entirely.
func (e *Engine) DropRevisionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, e.dialect.DropRevisionTableQuery()); err != nil {
		return errf("drop revision table: %w", err)
	}

	return nil
}

func (e *Engine) ensureRevisionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, e.dialect.CreateRevisionTableQuery()); err != nil {
		return errf("create revision table: %w", err)
	}

	return nil
}

func (e *Engine) applyOne(ctx context.Context, d *revision.Definition) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if len(d.UpSQL) > 0 {
			if _, err := tx.ExecContext(ctx, d.UpSQL); err != nil {
				return errf("exec up section: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, e.dialect.SaveRevisionQuery(), d.ID); err != nil {
			return errf("save recorded revision: %w", err)
		}

		return nil
	})
}

func (e *Engine) revertOne(ctx context.Context, d *revision.Definition) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, d.DownSQL); err != nil {
			return errf("exec down section: %w", err)
		}

		if d.Down == revision.DownBase {
			if _, err := tx.ExecContext(ctx, e.dialect.DeleteRevisionQuery()); err != nil {
				return errf("delete recorded revision: %w", err)
			}

			return nil
		}

		if _, err := tx.ExecContext(ctx, e.dialect.SaveRevisionQuery(), d.Down); err != nil {
			return errf("save recorded revision: %w", err)
		}

		return nil
	})
}

func (e *Engine) inTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errf("start transaction: %w", err)
	}

	if err := f(tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			return errf("rollback: %w", errors.Join(err2, err))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return errf("transaction commit: %w", err)
	}

	return nil
}

func describe(d *revision.Definition) string {
	if len(d.Message) > 0 {
		return fmt.Sprintf("%s (%s)\n", d.ID, d.Message)
	}

	return d.ID + "\n"
}
