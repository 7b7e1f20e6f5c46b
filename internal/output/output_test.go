package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_BufferGetsNoColorCodes(t *testing.T) {
	// Given: a writer over a plain buffer (not a terminal)
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: rendering styled output
	w.Header("Resultat")
	w.Successf("Indexed %d documents", 3)
	w.Warnf("unreadable: %s", "avtal.pdf")

	// Then: the text comes through without ANSI escapes
	output := buf.String()
	assert.Contains(t, output, "Resultat")
	assert.Contains(t, output, "Indexed 3 documents")
	assert.Contains(t, output, "unreadable: avtal.pdf")
	assert.NotContains(t, output, "\x1b[")
}

func TestWriter_PrintfAndPrintln(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Printf("chunks: %d\n", 42)
	w.Println("klart")

	assert.Equal(t, "chunks: 42\nklart\n", buf.String())
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: encoding a value with characters HTML escaping would mangle
	require.NoError(t, w.JSON(map[string]string{"query": "pris < 1200"}))

	// Then: output is indented and unescaped
	output := buf.String()
	assert.Contains(t, output, "pris < 1200")
	assert.Contains(t, output, "  \"query\"")
}

func TestWriter_Rule(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Rule()

	assert.Equal(t, strings.Repeat("─", 60)+"\n", buf.String())
}
