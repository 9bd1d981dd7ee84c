package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits on output pipes held open by
// grandchildren after the shell is killed.
const waitDelay = 2 * time.Second

// LocalRunner runs commands through a shell on this host.
type LocalRunner struct {
	// Shell defaults to /bin/sh.
	Shell string
}

// NewLocalRunner creates a LocalRunner using /bin/sh.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{Shell: "/bin/sh"}
}

// Run executes cmd.Line() with "sh -c", feeding cmd.Stdin when set.
func (r *LocalRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	c := exec.CommandContext(ctx, shell, "-c", cmd.Line())
	c.WaitDelay = waitDelay
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}

	return Output{}, fmt.Errorf("running %s: %w", cmd.Path, err)
}

// Router sends commands with a host to Remote and everything else to Local.
type Router struct {
	Local  CommandRunner
	Remote CommandRunner
}

func (r *Router) Run(ctx context.Context, cmd Command) (Output, error) {
	if cmd.Host == "" {
		return r.Local.Run(ctx, cmd)
	}
	if r.Remote == nil {
		return Output{}, fmt.Errorf("no remote runner configured for host %s", cmd.Host)
	}
	return r.Remote.Run(ctx, cmd)
}
