package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watzon/hookd/internal/hooks"
	"github.com/watzon/hookd/internal/wire"
)

type mapLookup map[string]*hooks.Hook

func (m mapLookup) Get(hookType, key string) (*hooks.Hook, bool) {
	h, ok := m[hookType+" "+key]
	return h, ok
}

func TestParseTopic(t *testing.T) {
	tests := []struct {
		topic   string
		typ     string
		key     string
		wantErr bool
	}{
		{"API one.vm.allocate 1", "API", "one.vm.allocate", false},
		{"STATE VM/ACTIVE/RUNNING", "STATE", "VM/ACTIVE/RUNNING", false},
		{"state HOST/ERROR/", "STATE", "HOST/ERROR/", false},
		{"  API   one.hook.update   1 ", "API", "one.hook.update", false},
		{"API", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			typ, key, err := ParseTopic(tt.topic)
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrMalformedTopic))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.typ, typ)
			require.Equal(t, tt.key, key)
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	apiHook := &hooks.Hook{ID: 1, Type: hooks.HookTypeAPI, Key: "one.vm.allocate", Command: "/notify.sh", Arguments: "$API"}
	stateHook := &hooks.Hook{ID: 2, Type: hooks.HookTypeState, Key: "VM/ACTIVE/RUNNING", Command: "vm.sh", Arguments: "$TEMPLATE"}
	matcher := NewMatcher(mapLookup{
		"API one.vm.allocate":     apiHook,
		"STATE VM/ACTIVE/RUNNING": stateHook,
	})

	ev, hook, err := matcher.Match(Message{Topic: "API one.vm.allocate 1", Payload: wire.EncodeString(apiBody)})
	require.NoError(t, err)
	require.Same(t, apiHook, hook)
	require.Equal(t, "one.vm.allocate", ev.Key)
	require.Equal(t, []byte(apiBody), ev.Body)
	require.Equal(t, wire.EncodeString(apiParameters), ev.Arguments.Encoded)

	ev, hook, err = matcher.Match(Message{Topic: "STATE VM/ACTIVE/RUNNING", Payload: wire.EncodeString(vmBody)})
	require.NoError(t, err)
	require.Same(t, stateHook, hook)
	require.Equal(t, "STATE", ev.Type)
	require.Equal(t, wire.EncodeString(vmTemplate), ev.Arguments.Encoded)
}

func TestMatcher_Unmatched(t *testing.T) {
	matcher := NewMatcher(mapLookup{})

	ev, hook, err := matcher.Match(Message{Topic: "API one.image.delete 1", Payload: "garbage!!"})
	require.NoError(t, err)
	require.Nil(t, hook)
	require.NotNil(t, ev)
	require.Equal(t, "one.image.delete", ev.Key)
}

func TestMatcher_BadPayloadIsDegraded(t *testing.T) {
	apiHook := &hooks.Hook{ID: 1, Type: hooks.HookTypeAPI, Key: "one.vm.allocate", Command: "/notify.sh", Arguments: "$API"}
	matcher := NewMatcher(mapLookup{"API one.vm.allocate": apiHook})

	ev, hook, err := matcher.Match(Message{Topic: "API one.vm.allocate 1", Payload: "%%%not-base64%%%"})
	require.NoError(t, err)
	require.Same(t, apiHook, hook)
	require.True(t, ev.Arguments.Degraded)
	require.Empty(t, ev.Arguments.Encoded)

	ev, _, err = matcher.Match(Message{Topic: "API one.vm.allocate 1", Payload: wire.EncodeString("<broken")})
	require.NoError(t, err)
	require.True(t, ev.Arguments.Degraded)
}

func TestMatcher_MalformedTopic(t *testing.T) {
	matcher := NewMatcher(mapLookup{})

	_, _, err := matcher.Match(Message{Topic: "API"})
	require.ErrorIs(t, err, ErrMalformedTopic)
}
