package hooks

import (
	"fmt"
	"strings"
)

type HookType string

const (
	HookTypeAPI   HookType = "API"
	HookTypeState HookType = "STATE"
)

// ParseHookType normalizes s and rejects anything outside the closed set of
// hook types.
func ParseHookType(s string) (HookType, error) {
	switch t := HookType(strings.ToUpper(strings.TrimSpace(s))); t {
	case HookTypeAPI, HookTypeState:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHookType, s)
	}
}

// Hook is a loaded hook definition. Hooks are never modified after the
// registry publishes them; a reload replaces them wholesale.
type Hook struct {
	ID             int
	Name           string
	Type           HookType
	Key            string
	Command        string
	Arguments      string
	ArgumentsStdin bool
	Remote         bool
	RemoteHost     string

	// Only set for STATE hooks.
	Resource string
	State    string
	LCMState string
}

// Record is a raw hook definition as returned by a Source. Template keys are
// upper case (COMMAND, ARGUMENTS, CALL, RESOURCE, ...).
type Record struct {
	ID       int
	Name     string
	Type     string
	Template map[string]string
}
