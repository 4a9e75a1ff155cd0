package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		"":        INFO,
		" info ":  INFO,
		"warning": WARN,
		"Error":   ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestWriterLogger_Threshold(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("search", &buf, WARN)

	logger.Info("не должно попасть")
	logger.Warn("сид %d не найден", 42)
	logger.Error("ошибка")

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[WARN] [search] сид 42 не найден")
	assert.Contains(t, out, "[ERROR] [search] ошибка")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestNewLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	defer SetLogDir("")

	logger, err := NewLogger("storage")
	require.NoError(t, err)
	logger.SetLevels(ERROR, DEBUG)

	logger.Debug("отладка в файл")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "storage_"))

	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [storage] отладка в файл")

	// Повторное закрытие безопасно
	assert.NoError(t, logger.Close())
}

func TestLoggerManager(t *testing.T) {
	lm := &LoggerManager{loggers: make(map[string]*Logger)}

	a, err := lm.GetLogger("api")
	require.NoError(t, err)
	b := lm.MustGetLogger("api")
	assert.Same(t, a, b, "логгер компонента переиспользуется")

	lm.MustGetLogger("search")
	assert.Len(t, lm.loggers, 2)

	assert.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.loggers)

	// после CloseAll компонент получает новый логгер
	c, err := lm.GetLogger("api")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.NoError(t, lm.CloseAll())
}
