package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config
}

func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "HOOKD"
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("hookd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hookd")
		v.AddConfigPath("/etc/hookd")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	expandEnvInConfig(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	expandPaths(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	return Load(LoadOptions{ConfigFile: path})
}

func LoadWithDefaults() (*Config, error) {
	return Load(LoadOptions{})
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("hook_base_path", cfg.HookBasePath)
	v.SetDefault("subscriber_endpoint", cfg.SubscriberEndpoint)
	v.SetDefault("replier_endpoint", cfg.ReplierEndpoint)
	v.SetDefault("debug_level", cfg.DebugLevel)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("queue_size", cfg.QueueSize)
	v.SetDefault("report_timeout", cfg.ReportTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)

	v.SetDefault("hook_source.kind", cfg.HookSource.Kind)
	v.SetDefault("hook_source.endpoint", cfg.HookSource.Endpoint)
	v.SetDefault("hook_source.auth", cfg.HookSource.Auth)
	v.SetDefault("hook_source.auth_file", cfg.HookSource.AuthFile)
	v.SetDefault("hook_source.timeout", cfg.HookSource.Timeout)
	v.SetDefault("hook_source.file", cfg.HookSource.File)
	v.SetDefault("hook_source.watch", cfg.HookSource.Watch)

	v.SetDefault("ssh.user", cfg.SSH.User)
	v.SetDefault("ssh.port", cfg.SSH.Port)
	v.SetDefault("ssh.key_file", cfg.SSH.KeyFile)
	v.SetDefault("ssh.known_hosts", cfg.SSH.KnownHosts)
	v.SetDefault("ssh.connect_timeout", cfg.SSH.ConnectTimeout)

	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
}

func expandEnvInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envVar := val[2 : len(val)-1]
			if envVal := os.Getenv(envVar); envVal != "" {
				v.Set(key, envVal)
			}
		}
	}
}

// expandPaths resolves $VAR references and a leading ~ in filesystem settings.
func expandPaths(cfg *Config) {
	for _, p := range []*string{
		&cfg.HookBasePath,
		&cfg.HookSource.AuthFile,
		&cfg.HookSource.File,
		&cfg.SSH.KeyFile,
		&cfg.SSH.KnownHosts,
		&cfg.Logging.Output,
	} {
		*p = expandPath(*p)
	}
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return os.ExpandEnv(p)
}

func ConfigFilePath(customPath string) (string, error) {
	if customPath != "" {
		absPath, err := filepath.Abs(customPath)
		if err != nil {
			return "", fmt.Errorf("resolving config path: %w", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, absPath)
		}
		return absPath, nil
	}

	searchPaths := []string{
		"hookd.yaml",
		"hookd.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "hookd", "hookd.yaml"),
		"/etc/hookd/hookd.yaml",
	}

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", ErrConfigNotFound
}
