package hooks

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownHookType = errors.New("unknown hook type")
	ErrEmptyKey        = errors.New("hook key cannot be derived")
	ErrEmptyCommand    = errors.New("hook command cannot be empty")
)

// NewHook validates a raw record and derives its lookup key.
func NewHook(rec Record) (*Hook, error) {
	hookType, err := ParseHookType(rec.Type)
	if err != nil {
		return nil, err
	}

	tmpl := rec.Template
	hook := &Hook{
		ID:             rec.ID,
		Name:           rec.Name,
		Type:           hookType,
		Command:        strings.TrimSpace(tmpl["COMMAND"]),
		Arguments:      tmpl["ARGUMENTS"],
		ArgumentsStdin: parseBool(tmpl["ARGUMENTS_STDIN"]),
		Remote:         parseBool(tmpl["REMOTE"]),
		RemoteHost:     strings.TrimSpace(tmpl["REMOTE_HOST"]),
	}

	if hook.Command == "" {
		return nil, ErrEmptyCommand
	}

	switch hookType {
	case HookTypeAPI:
		hook.Key = strings.TrimSpace(tmpl["CALL"])
		if hook.Key == "" {
			return nil, fmt.Errorf("%w: API hook requires CALL", ErrEmptyKey)
		}
	case HookTypeState:
		hook.Resource = strings.ToUpper(strings.TrimSpace(tmpl["RESOURCE"]))
		hook.State = strings.ToUpper(strings.TrimSpace(tmpl["STATE"]))
		hook.LCMState = strings.ToUpper(strings.TrimSpace(tmpl["LCM_STATE"]))
		if hook.Resource == "" || hook.State == "" {
			return nil, fmt.Errorf("%w: STATE hook requires RESOURCE and STATE", ErrEmptyKey)
		}
		hook.Key = stateKey(hook.Resource, hook.State, hook.LCMState)
	}

	return hook, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on":
		return true
	default:
		return false
	}
}
