package config

import "time"

// Default configuration values.
const (
	DefaultHookBasePath       = "/var/lib/one/remotes/hooks"
	DefaultSubscriberEndpoint = "tcp://localhost:2101"
	DefaultReplierEndpoint    = "tcp://localhost:2102"
	DefaultDebugLevel         = 2
	DefaultConcurrency        = 10
	DefaultQueueSize          = 100
	DefaultReportTimeout      = 30 * time.Second
	DefaultShutdownTimeout    = 30 * time.Second

	// Hook source defaults.
	DefaultSourceKind     = SourceKindXMLRPC
	DefaultSourceEndpoint = "http://localhost:2633/RPC2"
	DefaultSourceTimeout  = 30 * time.Second
	DefaultAuthFile       = "$HOME/.one/one_auth"

	// SSH defaults.
	DefaultSSHUser           = "oneadmin"
	DefaultSSHPort           = 22
	DefaultSSHConnectTimeout = 10 * time.Second

	// Logging defaults.
	DefaultLogFormat = "console"

	// Metrics defaults.
	DefaultMetricsListen = ":9464"
)

// Hook source kinds.
const (
	SourceKindXMLRPC = "xmlrpc"
	SourceKindFile   = "file"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		HookBasePath:       DefaultHookBasePath,
		SubscriberEndpoint: DefaultSubscriberEndpoint,
		ReplierEndpoint:    DefaultReplierEndpoint,
		DebugLevel:         DefaultDebugLevel,
		Concurrency:        DefaultConcurrency,
		QueueSize:          DefaultQueueSize,
		ReportTimeout:      DefaultReportTimeout,
		ShutdownTimeout:    DefaultShutdownTimeout,
		HookSource: HookSourceConfig{
			Kind:     DefaultSourceKind,
			Endpoint: DefaultSourceEndpoint,
			AuthFile: DefaultAuthFile,
			Timeout:  DefaultSourceTimeout,
			Watch:    true,
		},
		SSH: SSHConfig{
			User:           DefaultSSHUser,
			Port:           DefaultSSHPort,
			ConnectTimeout: DefaultSSHConnectTimeout,
		},
		Logging: LoggingConfig{
			Format: DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  DefaultMetricsListen,
		},
	}
}
