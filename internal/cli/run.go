package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/hookd/internal/bus"
	"github.com/watzon/hookd/internal/daemon"
	"github.com/watzon/hookd/internal/executor"
	"github.com/watzon/hookd/internal/hooks"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the hook executor",
	Long: `Run the hook executor in the foreground.

The executor connects to the event bus and the report endpoint, loads the
hooks from the configured source and runs until interrupted. On SIGINT or
SIGTERM it stops receiving events and waits up to shutdown_timeout for
running hooks to finish.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	source, err := hooks.NewSource(&cfg.HookSource)
	if err != nil {
		return fmt.Errorf("creating hook source: %w", err)
	}

	runner, err := newRunner()
	if err != nil {
		return err
	}

	sub, err := bus.DialSubscriber(ctx, cfg.SubscriberEndpoint)
	if err != nil {
		return fmt.Errorf("connecting to event bus: %w", err)
	}

	req, err := bus.DialRequester(ctx, cfg.ReplierEndpoint)
	if err != nil {
		_ = sub.Close()
		return fmt.Errorf("connecting to report endpoint: %w", err)
	}
	defer func() { _ = req.Close() }()

	log.Info().
		Str("version", version).
		Str("source", cfg.HookSource.Kind).
		Str("hook_base_path", cfg.HookBasePath).
		Int("concurrency", cfg.Concurrency).
		Msg("Starting hookd")

	d := daemon.New(cfg, daemon.Deps{
		Bus:       sub,
		Source:    source,
		Runner:    runner,
		Requester: req,
	})

	if err := d.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Hook executor stopped with error")
		return err
	}

	log.Info().Msg("Hook executor stopped")
	return nil
}

// newRunner routes remote hooks over SSH. An SSH setup failure leaves remote
// hooks failing at run time rather than preventing startup.
func newRunner() (executor.CommandRunner, error) {
	router := &executor.Router{Local: executor.NewLocalRunner()}

	sshRunner, err := executor.NewSSHRunner(&cfg.SSH)
	if err != nil {
		log.Warn().Err(err).Msg("SSH runner unavailable, remote hooks will fail")
		return router, nil
	}
	router.Remote = sshRunner

	return router, nil
}
