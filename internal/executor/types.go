// Package executor runs matched hooks with bounded concurrency and hands
// every result to a reporter.
package executor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/watzon/hookd/internal/events"
	"github.com/watzon/hookd/internal/hooks"
)

var (
	// ErrEngineStopped is returned by Submit after Shutdown.
	ErrEngineStopped = errors.New("execution engine stopped")
	// ErrNoRemoteHost marks remote hooks with no host to run on.
	ErrNoRemoteHost = errors.New("remote hook has no host")
)

// WorkItem is one matched event waiting to run.
type WorkItem struct {
	Hook  *hooks.Hook
	Event *events.Event
}

// Command is a resolved hook invocation.
type Command struct {
	Path  string
	Args  string
	Stdin string
	// Host is empty for local execution.
	Host string
}

// Line returns the command line handed to the shell.
func (c Command) Line() string {
	return strings.TrimSpace(c.Path + " " + c.Args)
}

// Output is what a CommandRunner observed.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner executes a command locally or on Command.Host. A non-zero
// exit status is reported through Output, not as an error; errors mean the
// command could not be run at all.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// Result is the outcome of one hook execution.
type Result struct {
	ExecutionID string
	HookID      int
	HookName    string
	Command     string
	Arguments   string
	RemoteHost  string
	ExitCode    int
	Stdout      string
	Stderr      string
	Duration    time.Duration
}

// Reporter delivers results to the authority.
type Reporter interface {
	Report(ctx context.Context, res *Result) error
}

// Stats is a point-in-time view of engine load.
type Stats struct {
	Busy   int
	Queued int
}
