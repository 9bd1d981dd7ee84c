package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/watzon/hookd/internal/config"
)

const testHooks = `hooks:
  - id: 1
    name: notify
    type: api
    template:
      command: /notify.sh
      arguments: $API
      call: one.vm.allocate
  - id: 2
    name: vm-running
    type: state
    template:
      command: vm/running.sh
      resource: VM
      state: ACTIVE
      lcm_state: RUNNING
      remote: "yes"
      remote_host: node01
`

func writeTestConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	hooksPath := filepath.Join(dir, "hooks.yaml")
	require.NoError(t, os.WriteFile(hooksPath, []byte(testHooks), 0o644))

	cfgPath := filepath.Join(dir, "hookd.yaml")
	content := "hook_base_path: /srv/hooks\n" +
		"logging:\n  format: json\n  output: " + filepath.Join(dir, "hookd.log") + "\n" +
		"hook_source:\n  kind: file\n  file: " + hooksPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile = ""
		verbose = false
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestHooksList(t *testing.T) {
	out, err := execute(t, "--config", writeTestConfig(t), "hooks", "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[2], "API one.vm.allocate 1")
	require.Contains(t, lines[2], "/notify.sh")
	require.Contains(t, lines[3], "STATE VM/ACTIVE/RUNNING")
	require.Contains(t, lines[3], "node01:/srv/hooks/vm/running.sh")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "hooks", "list")
	require.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Equal(t, Version()+"\n", out)
}

func TestSetupLogging(t *testing.T) {
	c := config.Default()
	c.DebugLevel = 1
	c.Logging.Output = filepath.Join(t.TempDir(), "out.log")
	c.Logging.Format = "json"

	require.NoError(t, setupLogging(c))
	t.Cleanup(func() {
		_ = logFile.Close()
		logFile = nil
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	_, err := os.Stat(c.Logging.Output)
	require.NoError(t, err)
}
