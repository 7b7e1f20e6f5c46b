package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes a fresh root command with the given args and
// returns the combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// writeDocs creates a docs directory with the given files and returns its path.
func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()

	// Then: every subcommand is registered
	for _, name := range []string{"index", "search", "status", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.NotEqual(t, cmd, sub, "subcommand %s should exist", name)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	assert.NotNil(t, cmd.PersistentFlags().Lookup("docs"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))
}

func TestRootCmd_UnknownSubcommandFails(t *testing.T) {
	_, err := runCommand(t, "obefintlig")
	require.Error(t, err)
}

func TestRootCmd_InvalidConfigRejected(t *testing.T) {
	// Given: a docs directory with a config that fails validation
	dir := writeDocs(t, map[string]string{
		"ramsok.yaml": "chunking:\n  chunk_size: 0\n",
	})

	// When: running any indexing command
	_, err := runCommand(t, "index", "-d", dir)

	// Then: the config is rejected before any work happens
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(dir, ".ramsok"))
}
