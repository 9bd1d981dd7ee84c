// Package config provides configuration management for hookd.
package config

import (
	"time"

	"github.com/rs/zerolog"
)

// Config is the root configuration structure for hookd.
type Config struct {
	// Directory that relative hook commands are resolved against
	HookBasePath string `mapstructure:"hook_base_path"`

	// Publish-subscribe endpoint the daemon subscribes to
	SubscriberEndpoint string `mapstructure:"subscriber_endpoint"`

	// Request-reply endpoint execution results are reported to
	ReplierEndpoint string `mapstructure:"replier_endpoint"`

	// Log verbosity: 0 error, 1 warn, 2 info, 3 debug
	DebugLevel int `mapstructure:"debug_level"`

	// Maximum number of hooks executing at once
	Concurrency int `mapstructure:"concurrency"`

	// Work items buffered before the receive loop blocks
	QueueSize int `mapstructure:"queue_size"`

	// Upper bound on a single report exchange
	ReportTimeout time.Duration `mapstructure:"report_timeout"`

	// Upper bound on draining in-flight hooks at shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	HookSource HookSourceConfig `mapstructure:"hook_source"`
	SSH        SSHConfig        `mapstructure:"ssh"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// HookSourceConfig selects where hook definitions are loaded from.
type HookSourceConfig struct {
	// Source kind (xmlrpc or file)
	Kind string `mapstructure:"kind"`

	// XML-RPC endpoint of the management API
	Endpoint string `mapstructure:"endpoint"`

	// Session string ("user:password"); takes precedence over AuthFile
	Auth string `mapstructure:"auth"`

	// File holding the session string
	AuthFile string `mapstructure:"auth_file"`

	// Request timeout for the management API
	Timeout time.Duration `mapstructure:"timeout"`

	// YAML hook definitions, used when Kind is file
	File string `mapstructure:"file"`

	// Reload hooks when File changes
	Watch bool `mapstructure:"watch"`
}

// SSHConfig holds settings for remote hook execution.
type SSHConfig struct {
	User           string        `mapstructure:"user"`
	Port           int           `mapstructure:"port"`
	KeyFile        string        `mapstructure:"key_file"`
	KnownHosts     string        `mapstructure:"known_hosts"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log format (json, console)
	Format string `mapstructure:"format"`

	// Output file (empty for stderr)
	Output string `mapstructure:"output"`
}

// MetricsConfig holds Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LogLevel maps DebugLevel onto a zerolog level. Out of range values clamp to
// the nearest bound.
func (c *Config) LogLevel() zerolog.Level {
	switch {
	case c.DebugLevel <= 0:
		return zerolog.ErrorLevel
	case c.DebugLevel == 1:
		return zerolog.WarnLevel
	case c.DebugLevel == 2:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
