package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerFrom(zap.New(core)).With("module", "grpc_server")

	log.Info(context.Background(), "write accepted", "record", "r1", "version", 2)
	log.Error(context.Background(), "write failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "write accepted", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "grpc_server", ctx["module"])
	assert.Equal(t, "r1", ctx["record"])
	assert.EqualValues(t, 2, ctx["version"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestNewZapLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := NewZapLogger("chatty")
	require.NoError(t, err)
	require.NotNil(t, l)
}
