package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "vprice.log")

	log, err := New(&Config{
		LogFile:     logFile,
		MaxSize:     1,
		Development: true,
		Console:     &console,
	})
	require.NoError(t, err)

	log.WithPool("jito", "Jito4APyf642JPZPx3hGc6WWJ8zPKtRbRs4P815Awbb").Info("price updated")
	end := log.TrackPerformance("refresh")
	end()
	require.NoError(t, log.Sync())

	assert.Contains(t, console.String(), "price updated")
	assert.Contains(t, console.String(), "Operation completed")

	raw, err := os.ReadFile(logFile)
	require.NoError(t, err)
	first := strings.SplitN(strings.TrimSpace(string(raw)), "\n", 2)[0]

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(first), &entry))
	assert.Equal(t, "price updated", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "jito", entry["pool"])
	assert.Contains(t, entry, "timestamp")
}

func TestLoggerFileKeysIgnoreDevelopment(t *testing.T) {
	for _, dev := range []bool{false, true} {
		logFile := filepath.Join(t.TempDir(), "vprice.log")
		log, err := New(&Config{LogFile: logFile, MaxSize: 1, NoConsole: true, Development: dev})
		require.NoError(t, err)

		log.Info("refresh done")
		require.NoError(t, log.Sync())

		raw, err := os.ReadFile(logFile)
		require.NoError(t, err)
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
		assert.Equal(t, "refresh done", entry["msg"], "development=%v", dev)
		assert.Equal(t, "INFO", entry["level"], "development=%v", dev)
		assert.NotContains(t, entry, "M")
	}
}

func TestLoggerLevels(t *testing.T) {
	var console bytes.Buffer
	log, err := New(&Config{Console: &console})
	require.NoError(t, err)

	log.WithComponent("monitor").Debug("hidden")
	log.WithComponent("monitor").Info("shown")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
	assert.Contains(t, console.String(), "monitor")
}

func TestLoggerNoSinks(t *testing.T) {
	log, err := New(&Config{NoConsole: true})
	require.NoError(t, err)
	log.Info("dropped")
	assert.NoError(t, log.Sync())
}
