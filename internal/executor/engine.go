package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/watzon/hookd/internal/hooks"
	"github.com/watzon/hookd/internal/metrics"
)

// Config holds engine settings.
type Config struct {
	// Concurrency is the number of workers.
	Concurrency int
	// QueueSize is the number of items buffered while every worker is busy.
	// Submit blocks once the buffer is full.
	QueueSize int
	// BasePath resolves relative hook commands.
	BasePath string
}

// Engine is a fixed pool of workers fed from a bounded queue.
type Engine struct {
	cfg      Config
	runner   CommandRunner
	reporter Reporter

	queue chan WorkItem
	done  chan struct{}
	group errgroup.Group

	mu       sync.RWMutex
	started  bool
	stopped  bool
	stopOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	busy atomic.Int64
}

// New creates an engine. Call Start before submitting work.
func New(cfg Config, runner CommandRunner, reporter Reporter) *Engine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:      cfg,
		runner:   runner,
		reporter: reporter,
		queue:    make(chan WorkItem, cfg.QueueSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started || e.stopped {
		return
	}
	e.started = true

	for range e.cfg.Concurrency {
		e.group.Go(func() error {
			e.worker()
			return nil
		})
	}

	log.Info().
		Int("concurrency", e.cfg.Concurrency).
		Int("queue_size", e.cfg.QueueSize).
		Msg("Execution engine started")
}

// Submit queues item. It returns as soon as the item is buffered, blocks
// while the queue is full, and fails if ctx ends or the engine stops first.
func (e *Engine) Submit(ctx context.Context, item WorkItem) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped {
		return ErrEngineStopped
	}

	select {
	case e.queue <- item:
		e.updateStats()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
}

// Shutdown stops accepting work and waits for queued and running items to
// finish. If ctx ends first, running commands are cancelled and ctx's error
// is returned.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() {
		close(e.done)

		e.mu.Lock()
		e.stopped = true
		close(e.queue)
		e.mu.Unlock()
	})

	waited := make(chan struct{})
	go func() {
		_ = e.group.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		e.cancel()
		log.Info().Msg("Execution engine stopped")
		return nil
	case <-ctx.Done():
		e.cancel()
		log.Warn().
			Int("busy", int(e.busy.Load())).
			Int("queued", len(e.queue)).
			Msg("Execution engine shutdown timed out, cancelling running hooks")
		return ctx.Err()
	}
}

// Stats reports current load.
func (e *Engine) Stats() Stats {
	return Stats{
		Busy:   int(e.busy.Load()),
		Queued: len(e.queue),
	}
}

func (e *Engine) updateStats() {
	s := e.Stats()
	metrics.UpdateEngineStats(s.Busy, s.Queued)
}

func (e *Engine) worker() {
	for item := range e.queue {
		e.busy.Add(1)
		e.updateStats()

		e.execute(e.ctx, item)

		e.busy.Add(-1)
		e.updateStats()
	}
}

// execute runs one item to completion: arguments, command, report.
func (e *Engine) execute(ctx context.Context, item WorkItem) {
	hook := item.Hook
	res := &Result{
		ExecutionID: uuid.New().String(),
		HookID:      hook.ID,
		HookName:    hook.Name,
	}

	fragment := ""
	if item.Event != nil {
		fragment = item.Event.Arguments.Encoded
	}
	res.Arguments = hook.BuildArguments(fragment)

	cmd := Command{Path: hook.CommandPath(e.cfg.BasePath)}
	if hook.ArgumentsStdin {
		cmd.Stdin = res.Arguments
	} else {
		cmd.Args = res.Arguments
	}
	res.Command = cmd.Line()

	logger := log.With().
		Str("execution_id", res.ExecutionID).
		Int("hook_id", hook.ID).
		Str("hook", hook.Name).
		Str("key", hook.Key).
		Logger()

	start := time.Now()
	out, err := e.run(ctx, hook, item, &cmd)
	res.Duration = time.Since(start)
	res.RemoteHost = cmd.Host

	if err != nil {
		out = Output{ExitCode: -1, Stderr: err.Error()}
	}
	res.ExitCode = out.ExitCode
	res.Stdout = out.Stdout
	res.Stderr = out.Stderr

	metrics.RecordExecution(string(hook.Type), res.ExitCode, res.Duration)

	if res.ExitCode == 0 {
		logger.Info().
			Str("command", res.Command).
			Str("host", res.RemoteHost).
			Dur("duration", res.Duration).
			Msg("Hook executed successfully")
	} else {
		logger.Error().
			Err(err).
			Str("command", res.Command).
			Str("host", res.RemoteHost).
			Int("exit_code", res.ExitCode).
			Str("stderr", res.Stderr).
			Dur("duration", res.Duration).
			Msg("Hook execution failed")
	}

	if err := e.reporter.Report(ctx, res); err != nil {
		logger.Error().Err(err).Msg("Failed to report hook result")
	}
}

func (e *Engine) run(ctx context.Context, hook *hooks.Hook, item WorkItem, cmd *Command) (Output, error) {
	if hook.Remote {
		cmd.Host = hook.RemoteHost
		if cmd.Host == "" && item.Event != nil {
			cmd.Host = item.Event.Arguments.Host
		}
		if cmd.Host == "" {
			return Output{}, ErrNoRemoteHost
		}
	}

	return e.runner.Run(ctx, *cmd)
}
