package cmdutils

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/pkg/errors"
)

// ExecError is returned when an external tool exits unsuccessfully.
// It keeps the command line and whatever the tool wrote to stderr, so
// that the diagnostic output reaches the user.
type ExecError struct {
	err    error
	Args   []string
	Stderr string
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("command failed: %s: %s", shellescape.QuoteCommand(e.Args), e.err.Error())
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += "\n" + stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error {
	return e.err
}

// ExitCode returns the exit code of the failed command or -1 if the
// command could not be started.
func (e *ExecError) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// WrapExecError wraps an error returned by running cmd. If cmd.Stderr
// was a *bytes.Buffer, its content is attached to the error.
func WrapExecError(err error, cmd *exec.Cmd) error {
	if err == nil {
		return nil
	}
	execErr := &ExecError{err: err, Args: cmd.Args}
	if buf, ok := cmd.Stderr.(*bytes.Buffer); ok {
		execErr.Stderr = buf.String()
	}
	var exitErr *exec.ExitError
	if execErr.Stderr == "" && errors.As(err, &exitErr) {
		execErr.Stderr = string(exitErr.Stderr)
	}
	return execErr
}

// WrapExecErrorWithStderr is WrapExecError for commands whose stderr
// was not written to a *bytes.Buffer directly, e.g. because it was also
// streamed to the terminal.
func WrapExecErrorWithStderr(err error, cmd *exec.Cmd, stderr string) error {
	if err == nil {
		return nil
	}
	return &ExecError{err: err, Args: cmd.Args, Stderr: stderr}
}

// IncorrectUsageError indicates that the command was invoked with
// invalid flags or configuration values.
type IncorrectUsageError struct {
	err error
}

func (e *IncorrectUsageError) Error() string {
	return e.err.Error()
}

func (e *IncorrectUsageError) Unwrap() error {
	return e.err
}

func WrapIncorrectUsageError(err error) error {
	return &IncorrectUsageError{err: err}
}
