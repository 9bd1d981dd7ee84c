package events

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/watzon/hookd/internal/hooks"
	"github.com/watzon/hookd/internal/wire"
)

// Lookup resolves a (type, key) pair to a hook.
type Lookup interface {
	Get(hookType, key string) (*hooks.Hook, bool)
}

// Matcher turns bus messages into events and resolves them to hooks.
type Matcher struct {
	lookup Lookup
}

// NewMatcher creates a matcher resolving hooks through lookup.
func NewMatcher(lookup Lookup) *Matcher {
	return &Matcher{lookup: lookup}
}

// ParseTopic splits a topic into its type and key tokens. Trailing tokens,
// such as the success flag of API topics, are ignored.
func ParseTopic(topic string) (string, string, error) {
	fields := strings.Fields(topic)
	if len(fields) < 2 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	return strings.ToUpper(fields[0]), fields[1], nil
}

// Match parses msg and resolves the hook registered for it. The returned
// hook is nil, with a nil error, when no hook is registered for the event.
// Only a malformed topic is an error.
func (m *Matcher) Match(msg Message) (*Event, *hooks.Hook, error) {
	typ, key, err := ParseTopic(msg.Topic)
	if err != nil {
		return nil, nil, err
	}

	ev := &Event{
		Type:  typ,
		Key:   key,
		Topic: msg.Topic,
	}

	hook, ok := m.lookup.Get(typ, key)
	if !ok {
		log.Debug().Str("type", typ).Str("key", key).Msg("No hook registered for event")
		return ev, nil, nil
	}

	body, err := wire.Decode(msg.Payload)
	if err != nil {
		ev.Arguments = degraded(err)
	} else {
		ev.Body = body
		ev.Arguments = ExtractArguments(body)
	}

	if ev.Arguments.Degraded {
		log.Warn().
			Err(ev.Arguments.Reason).
			Int("hook_id", hook.ID).
			Str("key", key).
			Msg("Event body unusable, running hook without arguments")
	}

	return ev, hook, nil
}
