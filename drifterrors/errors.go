// Package drifterrors defines shared error values used across drift packages.
package drifterrors

import "errors"

var (
	// ErrChainInvalid indicates the recorded revision and the known
	// definitions disagree.
	ErrChainInvalid = errors.New("migration chain is invalid")

	// ErrNoDefinitions indicates no migration definitions were found,
	// making repair impossible.
	ErrNoDefinitions = errors.New("no migration definitions found")

	// ErrRepairDeclined indicates the user refused the repair confirmation.
	ErrRepairDeclined = errors.New("repair declined")

	// ErrUnknownRevision indicates the recorded revision does not match any
	// known definition.
	ErrUnknownRevision = errors.New("recorded revision has no matching definition")

	// ErrEmptyDownSection indicates a revision cannot be rolled back because
	// its down section is empty.
	ErrEmptyDownSection = errors.New("revision has no down section")

	// ErrNothingToRollback indicates a rollback was requested against a
	// database with no applied revisions.
	ErrNothingToRollback = errors.New("no applied revisions to roll back")

	// ErrConnectionNotReady indicates the datastore did not become reachable
	// within the configured retry budget.
	ErrConnectionNotReady = errors.New("database connection not ready")

	// ErrMigrationsDirNotFound indicates the configured migrations directory
	// does not exist.
	ErrMigrationsDirNotFound = errors.New("migrations directory does not exist")
)
