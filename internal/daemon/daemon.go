// Package daemon wires the registry, bus, execution engine and report
// channel together and runs the receive loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/hookd/internal/config"
	"github.com/watzon/hookd/internal/events"
	"github.com/watzon/hookd/internal/executor"
	"github.com/watzon/hookd/internal/hooks"
	"github.com/watzon/hookd/internal/metrics"
	"github.com/watzon/hookd/internal/report"
	"github.com/watzon/hookd/internal/subscriptions"
)

// Bus is the event subscription socket.
type Bus interface {
	Subscribe(filter string) error
	Unsubscribe(filter string) error
	Recv() (events.Message, error)
	Close() error
}

// Watcher is implemented by hook sources that can signal changes.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Deps are the daemon's external collaborators.
type Deps struct {
	Bus       Bus
	Source    hooks.Source
	Runner    executor.CommandRunner
	Requester report.Requester
}

// Daemon is a running hook executor.
type Daemon struct {
	cfg *config.Config

	bus      Bus
	source   hooks.Source
	registry *hooks.Registry
	matcher  *events.Matcher
	subs     *subscriptions.Manager
	engine   *executor.Engine
	reporter *report.Channel

	reloads chan struct{}
	fatal   chan error
}

// New builds a daemon from cfg and deps.
func New(cfg *config.Config, deps Deps) *Daemon {
	d := &Daemon{
		cfg:     cfg,
		bus:     deps.Bus,
		source:  deps.Source,
		reloads: make(chan struct{}, 1),
		fatal:   make(chan error, 1),
	}

	d.registry = hooks.NewRegistry(deps.Source)
	d.matcher = events.NewMatcher(d.registry)
	d.subs = subscriptions.NewManager(deps.Bus, d.registry)
	d.reporter = report.NewChannel(deps.Requester,
		report.WithTimeout(cfg.ReportTimeout),
		report.WithFatalHandler(d.Fatal),
	)
	d.engine = executor.New(executor.Config{
		Concurrency: cfg.Concurrency,
		QueueSize:   cfg.QueueSize,
		BasePath:    cfg.HookBasePath,
	}, deps.Runner, d.reporter)

	return d
}

// Registry returns the daemon's hook registry.
func (d *Daemon) Registry() *hooks.Registry {
	return d.registry
}

// Engine returns the daemon's execution engine.
func (d *Daemon) Engine() *executor.Engine {
	return d.engine
}

// RequestReload asks the control loop to reload hooks. Requests made while
// one is pending are merged.
func (d *Daemon) RequestReload() {
	select {
	case d.reloads <- struct{}{}:
	default:
	}
}

// Fatal stops Run with err. Only the first call has an effect.
func (d *Daemon) Fatal(err error) {
	select {
	case d.fatal <- err:
	default:
	}
}

// Run loads hooks, subscribes and processes events until ctx is done or a
// fatal error occurs. It closes the bus and drains the engine before
// returning.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.subs.InitialLoad(ctx); err != nil {
		_ = d.bus.Close()
		return fmt.Errorf("subscribing to bus: %w", err)
	}

	d.engine.Start()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w, ok := d.source.(Watcher); ok && d.cfg.HookSource.Watch {
		go func() {
			if err := w.Watch(runCtx, d.RequestReload); err != nil {
				log.Warn().Err(err).Msg("Hook file watcher stopped, continuing without reloads on change")
			}
		}()
	}

	var metricsServer *metrics.Server
	if d.cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(d.cfg.Metrics.Listen)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Metrics server error")
			}
		}()
	}

	msgs := make(chan events.Message)
	recvErr := make(chan error, 1)
	done := make(chan struct{})
	go d.pump(msgs, recvErr, done)

	log.Info().
		Str("subscriber", d.cfg.SubscriberEndpoint).
		Str("replier", d.cfg.ReplierEndpoint).
		Int("hooks", d.registry.Len()).
		Msg("Hook executor running")

	runErr := d.loop(runCtx, msgs, recvErr)
	close(done)
	cancel()
	_ = d.bus.Close()

	shutdownCtx, stop := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer stop()

	if err := d.engine.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("draining hooks: %w", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Error stopping metrics server")
		}
	}

	return runErr
}

func (d *Daemon) loop(ctx context.Context, msgs <-chan events.Message, recvErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutdown requested")
			return nil

		case err := <-d.fatal:
			return err

		case err := <-recvErr:
			if ctx.Err() != nil {
				return nil
			}
			return err

		case <-d.reloads:
			d.reload(ctx)

		case msg := <-msgs:
			if err := d.handle(ctx, msg); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

// pump feeds bus messages to the control loop one at a time.
func (d *Daemon) pump(out chan<- events.Message, errc chan<- error, done <-chan struct{}) {
	for {
		msg, err := d.bus.Recv()
		if err != nil {
			select {
			case <-done:
			default:
				errc <- err
			}
			return
		}

		select {
		case out <- msg:
		case <-done:
			return
		}
	}
}

// handle matches and submits one message. Registry-mutating calls reload
// hooks after the submit.
func (d *Daemon) handle(ctx context.Context, msg events.Message) error {
	ev, hook, err := d.matcher.Match(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic).Msg("Dropping malformed event")
		return nil
	}

	metrics.RecordEvent(ev.Type)

	if hook == nil {
		metrics.RecordUnmatched()
	} else {
		log.Debug().
			Int("hook_id", hook.ID).
			Str("topic", ev.Topic).
			Msg("Event matched hook")

		if err := d.engine.Submit(ctx, executor.WorkItem{Hook: hook, Event: ev}); err != nil {
			return fmt.Errorf("submitting hook %d: %w", hook.ID, err)
		}
	}

	if ev.Type == string(hooks.HookTypeAPI) && subscriptions.IsRegistryMutating(ev.Key) {
		d.reload(ctx)
	}

	return nil
}

func (d *Daemon) reload(ctx context.Context) {
	start := time.Now()
	if err := d.subs.Reload(ctx); err != nil {
		if errors.Is(err, subscriptions.ErrIncompleteSubscriptions) {
			log.Error().Err(err).Msg("Hook reload failed, bus subscriptions may be incomplete")
		} else {
			log.Error().Err(err).Msg("Hook reload failed, keeping previous hooks")
		}
		return
	}
	log.Info().
		Int("hooks", d.registry.Len()).
		Dur("duration", time.Since(start)).
		Msg("Hooks reloaded")
}
