// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/config"
)

// writeTestConfig returns a config file that needs no network and no API key.
func writeTestConfig(t *testing.T, dataDir string) string {
	t.Helper()

	content := `
data_dir: "` + dataDir + `"
embedding:
  provider: disabled
index:
  backend: chromem
`
	path := filepath.Join(t.TempDir(), "mnemo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mnemo dev")
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"serve", "index", "search", "add", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestAddIndexSearch_DisabledProvider(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeTestConfig(t, dataDir)

	out, err := execute(t, "add", "--config", cfgPath, "--user", "alice", "buy", "milk")
	require.NoError(t, err)
	assert.Contains(t, out, "added chunk")

	// With the provider disabled, indexing skips and reports zero.
	out, err = execute(t, "index", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 0 chunks")

	out, err = execute(t, "search", "--config", cfgPath, "--user", "alice", "milk")
	require.NoError(t, err)
	assert.Contains(t, out, "no memories found")
}

func TestAddCommand_RequiresUser(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())

	_, err := execute(t, "add", "--config", cfgPath, "buy milk")
	require.Error(t, err)
}

func TestSearchCommand_RequiresQuery(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())

	_, err := execute(t, "search", "--config", cfgPath, "--user", "alice")
	require.Error(t, err)
}

func TestWireApp_DisabledProvider(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeTestConfig(t, dataDir)

	// Wiring with a disabled provider still yields a usable app.
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	app, err := WireApp(cfg)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	assert.False(t, app.Embedder.Enabled())
	assert.Equal(t, "chromem", app.Backend.Name())

	// The data dir was created as part of wiring.
	_, err = os.Stat(dataDir)
	require.NoError(t, err)
}
