// Package system wraps the external commands provisioning depends on:
// the package manager, account tools, ssh-keygen and the platform's own scripts.
package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Command is one external invocation
type Command struct {
	Name string
	Args []string
	Env  []string // Appended to the inherited environment
}

// String renders the command line for logs and dry runs
func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	if len(c.Env) > 0 {
		parts = append(append([]string{}, c.Env...), parts...)
	}
	return strings.Join(parts, " ")
}

// Runner executes external commands. Success and failure are observed via exit status only.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExitError reports a command that ran and exited non-zero
type ExitError struct {
	Command  Command
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command.Name, e.ExitCode)
	if tail := outputTail(e.Output, 3); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// ExitCode extracts the exit status from err, or -1 when err is not an ExitError
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return -1
}

// ExecRunner runs commands with os/exec and logs their combined output
type ExecRunner struct {
	log logrus.FieldLogger
}

// NewExecRunner creates a Runner backed by os/exec
func NewExecRunner(log logrus.FieldLogger) *ExecRunner {
	return &ExecRunner{log: log}
}

// Run executes cmd, blocking until it exits
func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Env = append(os.Environ(), cmd.Env...)

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	r.log.WithField("command", cmd.String()).Debug("running command")
	err := c.Run()
	output := out.Bytes()

	if len(output) > 0 {
		r.log.WithField("command", cmd.Name).Debug(strings.TrimSpace(string(output)))
	}

	if err == nil {
		return output, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, &ExitError{Command: cmd, ExitCode: exitErr.ExitCode(), Output: string(output)}
	}
	return output, fmt.Errorf("failed to run %s: %w", cmd.Name, err)
}

// outputTail returns the last n non-empty lines of output joined with " | "
func outputTail(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			kept = append([]string{l}, kept...)
		}
	}
	return strings.Join(kept, " | ")
}
