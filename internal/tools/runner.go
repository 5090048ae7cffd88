package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExitNotFound is reported when the binary could not be started at all.
const ExitNotFound int32 = 127

// CommandRunner abstracts command execution for the ctl frontends.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int32, error)
}

// ExecError describes a command that ran and failed.
type ExecError struct {
	Argv     []string
	ExitCode int32
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("exec %q exit=%d: %s", strings.Join(e.Argv, " "), e.ExitCode, msg)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ExecRunner executes commands on the local host, optionally behind a root
// helper such as sudo.
type ExecRunner struct {
	RootHelper []string
}

// tools command-runner implementation backed by os/exec.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int32, error) {
	argv := r.argv(name, args)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), int32(exitErr.ExitCode()), err
	}

	exitCode := int32(1)
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = ExitNotFound
	}
	return stdout.Bytes(), stderr.Bytes(), exitCode, err
}

func (r ExecRunner) argv(name string, args []string) []string {
	out := make([]string, 0, len(r.RootHelper)+1+len(args))
	for _, part := range r.RootHelper {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	out = append(out, name)
	return append(out, args...)
}

// Execute runs a command and folds a failure into *ExecError.
func Execute(ctx context.Context, runner CommandRunner, name string, args ...string) (string, error) {
	stdout, stderr, code, err := runner.Run(ctx, name, args...)
	if err != nil || code != 0 {
		argv := append([]string{name}, args...)
		return string(stdout), &ExecError{Argv: argv, ExitCode: code, Stderr: string(stderr), Err: err}
	}
	return string(stdout), nil
}
