package hooks

import (
	"fmt"
	"os"
	"strings"

	"github.com/watzon/hookd/internal/config"
)

// NewSource builds the hook source selected by cfg.
func NewSource(cfg *config.HookSourceConfig) (Source, error) {
	switch cfg.Kind {
	case config.SourceKindXMLRPC:
		session, err := resolveSession(cfg)
		if err != nil {
			return nil, err
		}
		return NewXMLRPCSource(cfg.Endpoint, session, cfg.Timeout), nil
	case config.SourceKindFile:
		return NewFileSource(cfg.File), nil
	default:
		return nil, fmt.Errorf("unsupported hook source: %s", cfg.Kind)
	}
}

func resolveSession(cfg *config.HookSourceConfig) (string, error) {
	if cfg.Auth != "" {
		return cfg.Auth, nil
	}

	data, err := os.ReadFile(cfg.AuthFile)
	if err != nil {
		return "", fmt.Errorf("reading auth file: %w", err)
	}

	session := strings.TrimSpace(string(data))
	if session == "" {
		return "", fmt.Errorf("auth file %s is empty", cfg.AuthFile)
	}
	return session, nil
}
