package hooks

import (
	"path/filepath"
	"strings"
)

// Placeholders substituted in a hook's argument template.
const (
	PlaceholderAPI      = "$API"
	PlaceholderTemplate = "$TEMPLATE"
)

// Filter returns the bus filter that selects events for this hook.
func (h *Hook) Filter() string {
	switch h.Type {
	case HookTypeAPI:
		return "API " + h.Key + " 1"
	case HookTypeState:
		return "STATE " + h.Key
	default:
		return ""
	}
}

// BuildArguments substitutes fragment for every placeholder token in the
// argument template. Each emitted token is followed by a single space.
func (h *Hook) BuildArguments(fragment string) string {
	var sb strings.Builder
	for _, tok := range strings.Fields(h.Arguments) {
		switch tok {
		case PlaceholderAPI, PlaceholderTemplate:
			sb.WriteString(fragment)
		default:
			sb.WriteString(tok)
		}
		sb.WriteByte(' ')
	}
	return sb.String()
}

// CommandPath resolves the hook command against base unless it is absolute.
func (h *Hook) CommandPath(base string) string {
	if filepath.IsAbs(h.Command) {
		return h.Command
	}
	return filepath.Join(base, h.Command)
}

func stateKey(resource, state, lcmState string) string {
	return resource + "/" + state + "/" + lcmState
}
