package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	assert.Contains(t, buf.String(), "DBG")
	assert.Contains(t, buf.String(), "test message arg")
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Info("info message")
	Warn("warn message")
	Section("section")

	assert.Empty(t, buf.String())
}

func TestInfoWarnSection_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetVerbose(true)
	SetOutput(&buf)

	Info("imported %d records", 3)
	Warn("skipped %s", "iblock.iblock:news")
	Section("Import")

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "imported 3 records")
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "skipped iblock.iblock:news")
	assert.Contains(t, out, "=== Import ===")
}

func TestRecord_WritesFields(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Record("iblock.iblock", "news", "create", "applied")

	out := buf.String()
	assert.Contains(t, out, "kind=iblock.iblock")
	assert.Contains(t, out, "xml_id=news")
	assert.Contains(t, out, "action=create")
	assert.Contains(t, out, "status=applied")
}
