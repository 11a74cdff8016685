package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapAdapter(zap.New(core)), logs
}

func TestFieldsAreAttached(t *testing.T) {
	log, logs := observed()

	log.WithFields(map[string]interface{}{"category": "공사"}).
		WithError(errors.New("boom")).
		Warn("pair abandoned", map[string]interface{}{"range": "20250101-20250107"})

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "공사", ctx["category"])
	assert.Equal(t, "20250101-20250107", ctx["range"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestSecretFieldsAreMasked(t *testing.T) {
	log, logs := observed()

	log.Info("client ready", map[string]interface{}{
		"serviceKey":       "abcdefghijkl1234",
		"minio.secret_key": "short",
		"endpoint":         "https://apis.data.go.kr",
	})

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "****1234", ctx["serviceKey"])
	assert.Equal(t, "****", ctx["minio.secret_key"])
	assert.Equal(t, "https://apis.data.go.kr", ctx["endpoint"])
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, "****", Redact("12345678"))
	assert.Equal(t, "****6789", Redact("123456789"))
}

func TestNew_LevelParsing(t *testing.T) {
	assert.True(t, New("debug", "json").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn", "console").Core().Enabled(zapcore.InfoLevel))
	assert.True(t, New("bogus", "json").Core().Enabled(zapcore.InfoLevel))
}
