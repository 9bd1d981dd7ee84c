package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/hookd/internal/config"
)

// version is set at build time with -ldflags.
var version = "0.1.0-dev"

var (
	cfgFile string
	verbose bool

	// cfg is loaded once before any subcommand runs.
	cfg *config.Config

	logFile *os.File
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hookd",
	Short: "Event-driven hook executor for the orchestration daemon",
	Long: `hookd listens on the orchestration daemon's event bus for API calls and
state transitions, runs the hooks registered for them and reports every
result back to the daemon.

Start the executor:
  hookd run

Show the hooks the executor would load:
  hookd hooks list`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		return setupLogging(cfg)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./hookd.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig reads the file given with --config, or searches the default
// locations. An explicit file that does not exist is an error.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		loaded, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return loaded, nil
	}

	loaded, err := config.LoadWithDefaults()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded, nil
}

// setupLogging configures the global zerolog logger from c.
func setupLogging(c *config.Config) error {
	var out io.Writer = os.Stderr
	if c.Logging.Output != "" {
		f, err := os.OpenFile(c.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		out = f
	}

	if c.Logging.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: logFile != nil}
	}

	level := c.LogLevel()
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// Version returns the version string.
func Version() string {
	return fmt.Sprintf("hookd version %s", version)
}
