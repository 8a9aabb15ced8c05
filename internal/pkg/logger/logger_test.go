package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	SetRedactPII(true)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
		SetRedactPII(true)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  Level
		known bool
	}{
		{"debug", DEBUG, true},
		{"INFO", INFO, true},
		{"", INFO, true},
		{"warning", WARN, true},
		{"Warn", WARN, true},
		{"error", ERROR, true},
		{"verbose", INFO, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, ok)
		})
	}
}

func TestLogWritesJSONWithFields(t *testing.T) {
	buf := captureOutput(t)

	Info("chunk sent", "count", 500, "status", "202 Accepted")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "chunk sent", entry["msg"])
	assert.Equal(t, "500", entry["count"])
	assert.Equal(t, "202 Accepted", entry["status"])
}

func TestLogRespectsLevel(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(WARN)

	Info("hidden")
	Debug("hidden")
	Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestLogRedactsEmails(t *testing.T) {
	buf := captureOutput(t)

	Info("bounce", "email", "john.doe@example.com", "error", "rejected jane@example.org and bob@example.net")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "jo***@example.com", entry["email"])
	assert.Equal(t, "rejected ja***@example.org and bo***@example.net", entry["error"])
}

func TestLogWithoutRedaction(t *testing.T) {
	buf := captureOutput(t)
	SetRedactPII(false)

	Info("bounce", "email", "john.doe@example.com")

	assert.Contains(t, buf.String(), "john.doe@example.com")
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactText(t *testing.T) {
	assert.Equal(t, "John <jo***@x.com>", RedactText("John <john@x.com>"))
}
