// Package process runs external tools with an argument vector, an explicit
// environment overlay and caller supplied output sinks.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Command describes a single external process invocation.
type Command struct {
	Name string
	Args []string
	// Env is overlaid on top of the launcher's base environment.
	Env map[string]string
	Dir string

	Stdout io.Writer
	Stderr io.Writer
}

// Argv returns the full argument vector including the program name.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command for log output.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// EnvList returns Env as sorted KEY=value pairs.
func (c Command) EnvList() []string {
	keys := make([]string, 0, len(c.Env))
	for key := range c.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+c.Env[key])
	}
	return out
}

// Launcher starts external processes and waits for them to exit.
//
// A non-nil error means the process could not be run at all (binary missing,
// context cancelled before start). A process that ran and failed is reported
// through its exit status with a nil error.
type Launcher interface {
	// Run streams the process output to the command's writers.
	Run(ctx context.Context, cmd Command) (int, error)
	// Output captures standard output instead of streaming it.
	Output(ctx context.Context, cmd Command) (int, []byte, error)
}

// Ensure ExecLauncher satisfies the Launcher interface.
var _ Launcher = (*ExecLauncher)(nil)

// ExecLauncher runs commands on the local host via os/exec.
type ExecLauncher struct {
	Logger *slog.Logger
	// BaseEnv replaces os.Environ() as the base environment when non-nil.
	BaseEnv []string
}

func (l *ExecLauncher) logger() *slog.Logger {
	if l != nil && l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Run executes cmd, streaming its output.
func (l *ExecLauncher) Run(ctx context.Context, cmd Command) (int, error) {
	execCmd := l.prepare(ctx, cmd)

	execCmd.Stdout = cmd.Stdout
	if execCmd.Stdout == nil {
		execCmd.Stdout = os.Stdout
	}
	execCmd.Stderr = cmd.Stderr
	if execCmd.Stderr == nil {
		execCmd.Stderr = execCmd.Stdout
	}

	l.logger().Debug("running command", "command", cmd.String(), "dir", cmd.Dir, "env", cmd.EnvList())
	return exitStatus(cmd, execCmd.Run())
}

// Output executes cmd and returns everything it wrote to standard output.
func (l *ExecLauncher) Output(ctx context.Context, cmd Command) (int, []byte, error) {
	execCmd := l.prepare(ctx, cmd)

	var stdout bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = cmd.Stderr

	l.logger().Debug("capturing command output", "command", cmd.String(), "dir", cmd.Dir)
	status, err := exitStatus(cmd, execCmd.Run())
	if err != nil {
		return status, nil, err
	}
	return status, stdout.Bytes(), nil
}

func (l *ExecLauncher) prepare(ctx context.Context, cmd Command) *exec.Cmd {
	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir

	base := os.Environ()
	if l != nil && l.BaseEnv != nil {
		base = append([]string(nil), l.BaseEnv...)
	}
	execCmd.Env = append(base, cmd.EnvList()...)
	return execCmd
}

func exitStatus(cmd Command, err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		// killed by a signal
		return -1, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return -1, fmt.Errorf("start %s: %w", cmd.Name, err)
}
