package commands

import "errors"

// Exit code conventions: 0 success, 1 declined or runtime failure, 2 usage
// or validation errors. Engine subprocess exit codes propagate unchanged.
const (
	exitDeclined = 1
	exitUsage    = 2
)

// ExitError carries an explicit process exit code up to main.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit"
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func usageError(err error) error {
	return &ExitError{Code: exitUsage, Err: err}
}
