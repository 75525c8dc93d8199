//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oshokin/bauset/internal/domain/build"
	"github.com/oshokin/bauset/internal/logger"
)

// CommandError reports an external command that exited with a non-zero status.
type CommandError struct {
	// Command is the shell script that was run.
	Command string
	// ExitCode is the process exit status, -1 when killed by a signal.
	ExitCode int
	// Err is the underlying *exec.ExitError.
	Err error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

// Unwrap exposes ErrSubprocess and the underlying exit error.
func (e *CommandError) Unwrap() []error {
	return []error{build.ErrSubprocess, e.Err}
}

// Shell runs scripts through a POSIX shell with an explicit working directory.
type Shell struct {
	// Path is the shell binary, invoked with "-c".
	Path string
	// Sink receives the captured stdout and stderr of every command.
	Sink logger.Sink
}

// Run executes script in dir and waits for it to exit.
// Args are passed as positional parameters, so scripts reference them as "$@"
// instead of splicing paths into the command string.
// Output is forwarded to the sink whether or not the command succeeds.
func (s *Shell) Run(ctx context.Context, dir, script string, args ...string) error {
	argv := append([]string{"-c", script, filepath.Base(s.Path)}, args...)

	cmd := exec.CommandContext(ctx, s.Path, argv...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	sink := logger.OrNop(s.Sink)
	forward(ctx, sink, script, "stdout", stdout.String())
	forward(ctx, sink, script, "stderr", stderr.String())

	if runErr == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %q interrupted: %w", build.ErrSubprocess, script, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return &CommandError{
			Command:  script,
			ExitCode: exitErr.ExitCode(),
			Err:      exitErr,
		}
	}

	return fmt.Errorf("%w: start %q: %w", build.ErrSubprocess, script, runErr)
}

// forward reports non-empty command output through the sink.
func forward(ctx context.Context, sink logger.Sink, script, stream, output string) {
	output = strings.TrimRight(output, "\r\n")
	if output == "" {
		return
	}

	sink.Log(ctx, "Command output", "command", script, "stream", stream, "output", output)
}
