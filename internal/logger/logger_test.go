package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogConfig struct {
	level, output, file string
}

func (c testLogConfig) GetLevel() string  { return c.level }
func (c testLogConfig) GetOutput() string { return c.output }
func (c testLogConfig) GetFile() string   { return c.file }

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLogLevel("warning"))
	assert.Equal(t, ERROR, ParseLogLevel("error"))
	assert.Equal(t, INFO, ParseLogLevel("whatever"))
}

func TestInit_FileOutput(t *testing.T) {
	prev := defaultLogger
	defer func() { defaultLogger = prev }()

	file := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, Init(testLogConfig{level: "info", output: "file", file: file}))

	Info("payout %d settled", 42)
	Debug("not written")
	Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "payout 42 settled")
	assert.NotContains(t, string(data), "not written")
}

func TestInit_Stderr(t *testing.T) {
	prev := defaultLogger
	defer func() { defaultLogger = prev }()

	require.NoError(t, Init(testLogConfig{level: "debug", output: "stderr"}))
	Debug("hello %s", "stderr")
}
