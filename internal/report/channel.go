// Package report sends execution results to the orchestration daemon over a
// request-reply socket.
package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog/log"

	"github.com/watzon/hookd/internal/executor"
	"github.com/watzon/hookd/internal/metrics"
	"github.com/watzon/hookd/internal/wire"
)

// Ack is the only reply accepted from the daemon.
const Ack = "ACK"

var (
	// ErrBadAck is returned when the daemon replies with anything but Ack.
	ErrBadAck = errors.New("unexpected report acknowledgment")
	// ErrReportTimeout is returned when an exchange exceeds the timeout.
	// The socket is left mid-exchange and must not be reused.
	ErrReportTimeout = errors.New("report exchange timed out")
)

// Requester performs one request-reply exchange.
type Requester interface {
	Request(ctx context.Context, data []byte) ([]byte, error)
}

// Channel serializes reports over a single Requester.
type Channel struct {
	mu      sync.Mutex
	req     Requester
	timeout time.Duration
	onFatal func(error)
	broken  error
}

// Option configures a Channel.
type Option func(*Channel)

// WithTimeout bounds each exchange. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) { c.timeout = d }
}

// WithFatalHandler registers fn to be called once when the channel becomes
// unusable.
func WithFatalHandler(fn func(error)) Option {
	return func(c *Channel) { c.onFatal = fn }
}

// NewChannel creates a Channel writing to req.
func NewChannel(req Requester, opts ...Option) *Channel {
	c := &Channel{req: req}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report sends res and waits for the acknowledgment. Only one exchange is in
// flight at a time.
func (c *Channel) Report(ctx context.Context, res *executor.Result) error {
	line := Line(res)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		metrics.RecordReport("error")
		return c.broken
	}

	exCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		exCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.req.Request(exCtx, []byte(line))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s (hook %d)", ErrReportTimeout, c.timeout, res.HookID)
		} else {
			err = fmt.Errorf("sending report for hook %d: %w", res.HookID, err)
		}
		c.fail(err)
		metrics.RecordReport("error")
		return err
	}

	// The caller logs the returned error.
	if string(reply) != Ack {
		metrics.RecordReport("nack")
		return fmt.Errorf("%w for hook %d: %q", ErrBadAck, res.HookID, reply)
	}

	log.Debug().
		Int("hook_id", res.HookID).
		Str("execution_id", res.ExecutionID).
		Int("exit_code", res.ExitCode).
		Msg("Hook result acknowledged")
	metrics.RecordReport("ack")

	return nil
}

// fail marks the channel unusable. Callers hold c.mu.
func (c *Channel) fail(err error) {
	if c.broken != nil {
		return
	}
	c.broken = err
	if c.onFatal != nil {
		go c.onFatal(err)
	}
}

// Line formats res as "<exit code> <hook id> <encoded body>".
func Line(res *executor.Result) string {
	return strconv.Itoa(res.ExitCode) + " " + strconv.Itoa(res.HookID) + " " + wire.EncodeString(Body(res))
}

// Body renders the XML fragment carried by a report.
func Body(res *executor.Result) string {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalEndTags = true

	doc.CreateElement("ARGUMENTS").SetText(res.Arguments)

	exec := doc.CreateElement("EXECUTION_RESULT")
	exec.CreateElement("COMMAND").SetText(res.Command)
	exec.CreateElement("STDOUT").SetText(wire.EncodeString(res.Stdout))
	exec.CreateElement("STDERR").SetText(wire.EncodeString(res.Stderr))
	exec.CreateElement("CODE").SetText(strconv.Itoa(res.ExitCode))

	if res.RemoteHost != "" {
		doc.CreateElement("REMOTE_HOST").SetText(res.RemoteHost)
	}

	out, err := doc.WriteToString()
	if err != nil {
		// Writing to a strings.Builder does not fail.
		return ""
	}
	return out
}
