package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, TRACE, ParseLevel("trace"))
	assert.Equal(t, DEBUG, ParseLevel(" Debug "))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("loud"))
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestWriterLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("relay", &buf, WARN)

	l.Debug("скрыто")
	l.Info("тоже скрыто")
	l.Warn("переход %d отброшен", 7)
	l.Error("сбой")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[WARN][relay] переход 7 отброшен", lines[0])
	assert.Equal(t, "[ERROR][relay] сбой", lines[1])

	buf.Reset()
	l.SetLevels(TRACE, TRACE)
	l.Trace("всё видно")
	assert.Contains(t, buf.String(), "[TRACE][relay] всё видно")
}

func TestNewLogger_WritesFile(t *testing.T) {
	prev := LogDir
	LogDir = t.TempDir()
	t.Cleanup(func() { LogDir = prev })

	l, err := NewLogger("storage")
	require.NoError(t, err)
	l.SetLevels(ERROR, DEBUG)
	l.Debug("💾 сохранено %d строк", 3)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(LogDir, "storage_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG][storage] 💾 сохранено 3 строк")
}

func TestLoggerManager_ReusesAndAdjusts(t *testing.T) {
	lm := newLoggerManager()

	a, err := lm.GetLogger(ComponentRelay)
	require.NoError(t, err)
	b := lm.MustGetLogger(ComponentRelay)
	assert.Same(t, a, b)
	lm.MustGetLogger(ComponentField)
	assert.Equal(t, []string{ComponentField, ComponentRelay}, lm.ListComponents())

	lm.SetLevelAll(DEBUG, TRACE)
	assert.Equal(t, DEBUG, a.minConsoleLevel)
	created := lm.MustGetLogger(ComponentStorage)
	assert.Equal(t, DEBUG, created.minConsoleLevel)

	require.NoError(t, lm.SetLogLevel(ComponentRelay, ERROR, ERROR))
	assert.Equal(t, ERROR, a.minConsoleLevel)
	assert.Error(t, lm.SetLogLevel("missing", ERROR, ERROR))
	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}
