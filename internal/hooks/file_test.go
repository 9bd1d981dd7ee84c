package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/watzon/hookd/internal/config"
)

const sampleHookFile = `hooks:
  - id: 1
    name: notify
    type: api
    template:
      command: /notify.sh
      arguments: $API
      call: one.vm.allocate
  - id: 2
    name: host-error
    type: state
    template:
      command: ft/host_error.rb
      arguments: $TEMPLATE -m
      resource: HOST
      state: ERROR
      remote: "yes"
`

func writeHookFile(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "hooks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSource_Fetch(t *testing.T) {
	path := writeHookFile(t, t.TempDir(), sampleHookFile)

	records, err := NewFileSource(path).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "one.vm.allocate", records[0].Template["CALL"])
	require.Equal(t, "HOST", records[1].Template["RESOURCE"])
	require.Equal(t, "yes", records[1].Template["REMOTE"])

	registry := NewRegistry(NewFileSource(path))
	require.NoError(t, registry.Load(context.Background()))

	hook, ok := registry.Get("STATE", "HOST/ERROR/")
	require.True(t, ok)
	require.True(t, hook.Remote)
}

func TestFileSource_FetchErrors(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml")).Fetch(context.Background())
	require.Error(t, err)

	path := writeHookFile(t, t.TempDir(), "hooks: [unterminated")
	_, err = NewFileSource(path).Fetch(context.Background())
	require.Error(t, err)
}

func TestFileSource_Watch(t *testing.T) {
	dir := t.TempDir()
	path := writeHookFile(t, dir, sampleHookFile)

	source := NewFileSource(path)
	source.debounce = 10 * time.Millisecond

	changed := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- source.Watch(ctx, func() { changed <- struct{}{} })
	}()

	// Unrelated files in the same directory are ignored.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644)
		_ = os.WriteFile(path, []byte(sampleHookFile+"\n"), 0o644)
		select {
		case <-changed:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestNewSource(t *testing.T) {
	dir := t.TempDir()

	source, err := NewSource(&config.HookSourceConfig{Kind: config.SourceKindFile, File: "hooks.yaml"})
	require.NoError(t, err)
	require.IsType(t, &FileSource{}, source)

	source, err = NewSource(&config.HookSourceConfig{Kind: config.SourceKindXMLRPC, Endpoint: "http://localhost:2633/RPC2", Auth: "a:b"})
	require.NoError(t, err)
	require.IsType(t, &XMLRPCSource{}, source)

	authFile := filepath.Join(dir, "one_auth")
	require.NoError(t, os.WriteFile(authFile, []byte("oneadmin:pw\n"), 0o600))
	source, err = NewSource(&config.HookSourceConfig{Kind: config.SourceKindXMLRPC, AuthFile: authFile})
	require.NoError(t, err)
	require.Equal(t, "oneadmin:pw", source.(*XMLRPCSource).session)

	_, err = NewSource(&config.HookSourceConfig{Kind: config.SourceKindXMLRPC, AuthFile: filepath.Join(dir, "missing")})
	require.Error(t, err)

	_, err = NewSource(&config.HookSourceConfig{Kind: "ldap"})
	require.Error(t, err)
}
