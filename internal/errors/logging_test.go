package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogError_UsesSeverityLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	LogError(logger, DataLossRisk(2, 40, "Remote has far fewer items").WithOperation("sync_pull").Build(), "Sync refused")
	LogError(logger, Validation(CodeInvalidArguments, "title is required").Build(), "Bad call")
	LogError(logger, errors.New("boom"), "Plain failure", zap.String("command", "create_note"))

	require.Equal(t, 3, logs.Len())
	entries := logs.All()

	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "DATA_LOSS_RISK", fields["error_type"])
	assert.Equal(t, "sync_pull", fields["failed_operation"])
	assert.Contains(t, fields, "error_metadata")

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
	assert.Equal(t, "create_note", entries[2].ContextMap()["command"])
}

func TestLogFields_NilError(t *testing.T) {
	assert.Nil(t, LogFields(nil))
	LogError(nil, errors.New("ignored"), "no logger")
}
