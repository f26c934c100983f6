package clierror

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/driftsql/drift/drifterrors"
)

const (
	DefaultErrorExitCode = 1
)

var (
	// errHandler is the function used to handle cli errors.
	errHandler = FatalErrHandler

	// errWriter is used to output cli error messages.
	errWriter io.Writer = os.Stderr

	// fprintf is the function used to format and print errors.
	fprintf = fmt.Fprintf

	// debugMode enables always printing raw error values.
	debugMode bool
)

// SetErrorHandler overrides the default [FatalErrHandler] error handler.
func SetErrorHandler(f func(string, int)) {
	errHandler = f
}

// ResetErrorHandler restores the default error handler.
func ResetErrorHandler() {
	errHandler = FatalErrHandler
}

// SetErrWriter overrides the default error output writer [os.Stderr].
func SetErrWriter(w io.Writer) {
	errWriter = w
}

// ResetErrWriter restores the default error output writer to [os.Stderr].
func ResetErrWriter() {
	errWriter = os.Stderr
}

// DebugMode sets whether debug logging is enabled.
//
// When enabled, raw error values are printed to stderr.
func DebugMode(enabled bool) {
	debugMode = enabled
}

// FatalErrHandler prints the message provided and then exits with the given code.
func FatalErrHandler(msg string, code int) {
	printError(msg)

	//nolint:revive // Intentional exit after fatal error.
	os.Exit(code)
}

// PrintErrHandler prints the message without exiting. Used in tests.
func PrintErrHandler(msg string, _ int) {
	printError(msg)
}

func printError(msg string) {
	if len(msg) == 0 {
		return
	}

	// add newline if needed
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	_, _ = fprintf(errWriter, msg)
}

func debugPrint(err error) {
	if !debugMode {
		return
	}

	_, _ = fprintf(errWriter, "DEBUG %+v\n", err)
}

// ErrExit may be passed to Check to instruct it to output nothing but exit
// with status code 1.
var ErrExit = errors.New("exit")

// Check prints a user-friendly error message and invokes the configured error handler.
//
// When the [FatalErrHandler] is used, the program will exit before this function returns.
func Check(err error) error {
	check(err, errHandler)
	return err
}

//nolint:revive
func check(err error, handleErr func(string, int)) {
	if err == nil {
		return
	}

	debugPrint(err)

	switch {
	case errors.Is(err, ErrExit):
		handleErr("", DefaultErrorExitCode)
	case errors.Is(err, drifterrors.ErrNoDefinitions):
		handleErr("drift: no migration definitions found\nThe recorded revision cannot be reconciled against an empty definition set; halting.", DefaultErrorExitCode)
	case errors.Is(err, drifterrors.ErrRepairDeclined):
		handleErr("drift: repair declined\nNo changes were made to the recorded revision.", DefaultErrorExitCode)
	case errors.Is(err, drifterrors.ErrUnknownRevision):
		handleErr("drift: "+err.Error()+"\nRun 'drift repair' to realign the recorded revision with the newest definition.", DefaultErrorExitCode)
	case errors.Is(err, drifterrors.ErrMigrationsDirNotFound):
		handleErr("drift: "+err.Error()+"\nCreate the directory or point --dir at your migration definitions.", DefaultErrorExitCode)
	case errors.Is(err, drifterrors.ErrConnectionNotReady):
		handleErr("drift: "+err.Error()+"\nCheck the database DSN and that the server is accepting connections.", DefaultErrorExitCode)
	case errors.Is(err, drifterrors.ErrNothingToRollback):
		handleErr("drift: nothing to roll back; the database has no applied revisions.", DefaultErrorExitCode)
	default:
		msg := err.Error()
		if !strings.HasPrefix(msg, "drift: ") {
			msg = "drift: " + msg
		}

		handleErr(msg, DefaultErrorExitCode)
	}
}
