package events

import "errors"

var (
	// ErrMalformedTopic is returned for topics without a type and key token.
	ErrMalformedTopic = errors.New("malformed event topic")
	// ErrEmptyBody marks events whose payload carried no body.
	ErrEmptyBody = errors.New("empty event body")
	// ErrNoFragment marks bodies that lack the element hooks receive.
	ErrNoFragment = errors.New("hook fragment not found in event body")
)

// Message is a raw two-part bus message.
type Message struct {
	Topic   string
	Payload string
}

// Event is a parsed bus message.
type Event struct {
	Type      string // upper-cased type token (API, STATE)
	Key       string // API call name or resource/state/lcm_state
	Topic     string
	Body      []byte
	Arguments Arguments
}

// Arguments is the hook input captured from an event body. A degraded value
// carries an empty fragment; hooks still run with it.
type Arguments struct {
	// Encoded is the wire-encoded fragment substituted for $API/$TEMPLATE.
	Encoded string
	// Host is the host name carried by HOST state events.
	Host string
	// Degraded is set when the body could not be parsed.
	Degraded bool
	// Reason explains a degraded result.
	Reason error
}

func degraded(reason error) Arguments {
	return Arguments{Degraded: true, Reason: reason}
}
