package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/gradesum/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("something else"))
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(New(config.LoggingConfig{Level: "info", Format: "json"}, &buf), "session")

	logger.Debug("hidden")
	logger.Info("visible", slog.Int("files", 2))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "session", record["component"])
	assert.EqualValues(t, 2, record["files"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(config.LoggingConfig{Level: "debug", Format: "text"}, &buf).Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
