package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	buf.Reset()
	return m
}

func TestLogger_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, zerolog.InfoLevel)

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Info("merged",
		String("inst_id", "BTC-USDT"),
		Int64("ts", 1715716800000),
		Int("fields", 42),
		Float64("pct", 1.25),
		Bool("persisted", true),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("x")))
	m := decodeLine(t, &buf)
	assert.Equal(t, "merged", m["message"])
	assert.Equal(t, "BTC-USDT", m["inst_id"])
	assert.Equal(t, 1715716800000.0, m["ts"])
	assert.Equal(t, 42.0, m["fields"])
	assert.Equal(t, 1.25, m["pct"])
	assert.Equal(t, true, m["persisted"])
	assert.Equal(t, 1500.0, m["took_ms"])
	assert.Equal(t, "x", m["error"])
	assert.Contains(t, m["caller"], "logger_test.go")
}

func TestLogger_WithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, zerolog.DebugLevel).With(String("env", "test"), Error(nil))

	l.Warn("skip")
	m := decodeLine(t, &buf)
	assert.Equal(t, "test", m["env"])
	assert.Equal(t, "warn", m["level"])
	assert.NotContains(t, m, "error")
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "verbose"})
	assert.Error(t, err)
}
