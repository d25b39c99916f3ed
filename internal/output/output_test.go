package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Counting eligible projects...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Counting eligible projects...\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_BufferIsPlain(t *testing.T) {
	// Given: a non-terminal writer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing styled messages
	w.Success("Indexed 25 projects")
	w.Warning("Adapter disabled")
	w.Errorf("failed: %s", "boom")
	w.Header("Results")

	// Then: no ANSI escapes are emitted
	out := buf.String()
	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "✅ Indexed 25 projects")
	assert.Contains(t, out, "⚠️")
	assert.Contains(t, out, "❌ failed: boom")
	assert.Contains(t, out, "Results\n")
}

func TestWriter_KeyValue(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).KeyValue("eligible", 25)

	assert.Contains(t, buf.String(), "eligible:")
	assert.Contains(t, buf.String(), "25")
}

func TestWriter_Progress_NonInteractivePrintsCompletionOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(10, 25, "indexing")
	assert.Empty(t, buf.String())

	w.Progress(25, 25, "indexing")
	assert.Contains(t, buf.String(), "100% indexing")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	buf.Reset()
	w.Progress(0, 0, "nothing")
	assert.Empty(t, buf.String())
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name           string
		current, total int
		want           string
	}{
		{"empty", 0, 10, strings.Repeat("░", 10)},
		{"half", 5, 10, strings.Repeat("█", 5) + strings.Repeat("░", 5)},
		{"full", 10, 10, strings.Repeat("█", 10)},
		{"overflow", 20, 10, strings.Repeat("█", 10)},
		{"no total", 3, 0, strings.Repeat("░", 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderProgressBar(tt.current, tt.total, 10))
		})
	}
}

func TestIsTTY_NonFile(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}
