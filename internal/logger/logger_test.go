package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestInfoWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "")

	log.Info("assessment completed", map[string]interface{}{"risk_level": "high", "risk_score": 65})

	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "assessment completed", entry["message"])
	assert.Equal(t, "high", entry["risk_level"])
	assert.Equal(t, float64(65), entry["risk_score"])
	assert.Contains(t, entry, "time")
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "")

	log.Error("solver failed", errors.New("timeout"), nil)

	entry := decode(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "timeout", entry["error"])
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "production", "").Debug("hidden", nil)
	assert.Empty(t, buf.String(), "production defaults to info")

	NewWithWriter(&buf, "development", "").Debug("shown", nil)
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	NewWithWriter(&buf, "development", "warn").Info("hidden", nil)
	assert.Empty(t, buf.String())

	buf.Reset()
	NewWithWriter(&buf, "production", "not-a-level").Info("shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "").WithRequestID("req-1").With(map[string]interface{}{"job": "a1"})

	log.Warn("slow", nil)

	entry := decode(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "a1", entry["job"])
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("nothing", map[string]interface{}{"a": 1})
	require.NotNil(t, log.Zerolog())
}
