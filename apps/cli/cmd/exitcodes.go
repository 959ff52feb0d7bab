package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

// Exit codes for restpipe CLI
const (
	// ExitSuccess indicates the call succeeded
	ExitSuccess = 0

	// ExitFailure indicates a server error response, a failed schema check
	// or a failed load threshold
	ExitFailure = 1

	// ExitConfigError indicates a configuration or request setup error
	ExitConfigError = 3

	// ExitNetworkError indicates no response was received
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries an exit code through cobra's error return.
type exitError struct {
	code     int
	err      error
	reported bool // already printed by a formatter
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func usageError(err error) error {
	return withExitCode(ExitUsageError, err)
}

func configError(err error) error {
	return withExitCode(ExitConfigError, err)
}

// reportedError marks err as already shown to the user.
func reportedError(err error) error {
	return &exitError{code: exitCodeFor(err), err: err, reported: true}
}

// exitCodeFor maps an error onto the process exit code. Pipeline errors
// map by kind.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	switch http.KindOf(err) {
	case http.KindServer:
		return ExitFailure
	case http.KindNoResponse:
		return ExitNetworkError
	case http.KindRequestSetup:
		return ExitConfigError
	}
	return ExitFailure
}

func isReported(err error) bool {
	var exitErr *exitError
	return errors.As(err, &exitErr) && exitErr.reported
}
