package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateCore(cfg)...)
	errs = append(errs, validateHookSource(&cfg.HookSource)...)
	errs = append(errs, validateSSH(&cfg.SSH)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateCore(cfg *Config) ValidationErrors {
	var errs ValidationErrors

	if cfg.HookBasePath == "" {
		errs = append(errs, ValidationError{
			Field:   "hook_base_path",
			Message: "is required",
		})
	}

	if !hasTransportPrefix(cfg.SubscriberEndpoint) {
		errs = append(errs, ValidationError{
			Field:   "subscriber_endpoint",
			Message: "must be a transport address such as tcp://host:port",
		})
	}

	if !hasTransportPrefix(cfg.ReplierEndpoint) {
		errs = append(errs, ValidationError{
			Field:   "replier_endpoint",
			Message: "must be a transport address such as tcp://host:port",
		})
	}

	if cfg.DebugLevel < 0 || cfg.DebugLevel > 3 {
		errs = append(errs, ValidationError{
			Field:   "debug_level",
			Message: "must be between 0 and 3",
		})
	}

	if cfg.Concurrency < 1 {
		errs = append(errs, ValidationError{
			Field:   "concurrency",
			Message: "must be at least 1",
		})
	}

	if cfg.QueueSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "queue_size",
			Message: "must be non-negative",
		})
	}

	if cfg.ReportTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "report_timeout",
			Message: "must be positive",
		})
	}

	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "shutdown_timeout",
			Message: "must be non-negative",
		})
	}

	return errs
}

func hasTransportPrefix(endpoint string) bool {
	for _, prefix := range []string{"tcp://", "ipc://", "inproc://"} {
		if strings.HasPrefix(endpoint, prefix) && len(endpoint) > len(prefix) {
			return true
		}
	}
	return false
}

func validateHookSource(cfg *HookSourceConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Kind {
	case SourceKindXMLRPC:
		if cfg.Endpoint == "" {
			errs = append(errs, ValidationError{
				Field:   "hook_source.endpoint",
				Message: "required for xmlrpc hook source",
			})
		}
		if cfg.Auth == "" && cfg.AuthFile == "" {
			errs = append(errs, ValidationError{
				Field:   "hook_source.auth",
				Message: "auth or auth_file required for xmlrpc hook source",
			})
		}
	case SourceKindFile:
		if cfg.File == "" {
			errs = append(errs, ValidationError{
				Field:   "hook_source.file",
				Message: "required for file hook source",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "hook_source.kind",
			Message: fmt.Sprintf("must be %s or %s", SourceKindXMLRPC, SourceKindFile),
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "hook_source.timeout",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateSSH(cfg *SSHConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "ssh.port",
			Message: "must be between 1 and 65535",
		})
	}

	if cfg.User == "" {
		errs = append(errs, ValidationError{
			Field:   "ssh.user",
			Message: "is required",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Format {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be json or console",
		})
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Enabled && cfg.Listen == "" {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen",
			Message: "required when metrics are enabled",
		})
	}

	return errs
}
