package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramsok/ramsok/internal/index"
)

func TestStatusCmd_ReportsIndexedDocuments(t *testing.T) {
	// Given: an indexed docs directory
	dir := writeDocs(t, map[string]string{
		"ramavtal.txt": "Avtalet omfattar konsulttjänster inom systemutveckling.",
	})
	_, err := runCommand(t, "index", "-d", dir)
	require.NoError(t, err)

	// When: asking for status
	out, err := runCommand(t, "status", "-d", dir)

	// Then: the document and its chunk count are listed
	require.NoError(t, err)
	assert.Contains(t, out, "ramavtal.txt")
	assert.Contains(t, out, "up to date")
}

func TestStatusCmd_ReportsPendingChanges(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"ramavtal.txt": "Avtalet omfattar konsulttjänster.",
	})
	_, err := runCommand(t, "index", "-d", dir)
	require.NoError(t, err)

	// When: a new document arrives after indexing
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "bilaga.txt"), []byte("Ny bilaga."), 0o644))
	out, err := runCommand(t, "status", "-d", dir)

	// Then: the pending change is surfaced
	require.NoError(t, err)
	assert.Contains(t, out, "Pending")
	assert.Contains(t, out, "bilaga.txt")
}

func TestStatusCmd_JSONFormat(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"ramavtal.txt": "Avtalet omfattar konsulttjänster.",
	})
	_, err := runCommand(t, "index", "-d", dir)
	require.NoError(t, err)

	out, err := runCommand(t, "status", "-d", dir, "--format", "json")
	require.NoError(t, err)

	var status index.Status
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.Len(t, status.Documents, 1)
	assert.Equal(t, "ramavtal.txt", status.Documents[0].DocumentID)
	assert.Positive(t, status.ChunkCount)
}
