package errors

import (
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFields returns the structured fields describing err. A UnifiedError
// contributes its classification and context; any other error is a plain
// zap.Error field.
func LogFields(err error) []zap.Field {
	if err == nil {
		return nil
	}

	var unifiedErr *UnifiedError
	if !errors.As(err, &unifiedErr) {
		return []zap.Field{zap.Error(err)}
	}

	fields := []zap.Field{
		zap.String("error_type", string(unifiedErr.Type)),
		zap.String("error_code", unifiedErr.Code),
		zap.String("error_message", unifiedErr.Message),
		zap.String("error_severity", string(unifiedErr.Severity)),
		zap.Bool("retryable", unifiedErr.Retryable),
	}
	if unifiedErr.Operation != "" {
		fields = append(fields, zap.String("failed_operation", unifiedErr.Operation))
	}
	if unifiedErr.Resource != "" {
		fields = append(fields, zap.String("resource", unifiedErr.Resource))
	}
	if len(unifiedErr.Metadata) > 0 {
		fields = append(fields, zap.Any("error_metadata", unifiedErr.Metadata))
	}
	if unifiedErr.Cause != nil {
		fields = append(fields, zap.Error(unifiedErr.Cause))
	}
	return fields
}

// LogError logs err at the level matching its severity.
func LogError(logger *zap.Logger, err error, message string, fields ...zap.Field) {
	if logger == nil || err == nil {
		return
	}
	level := zapcore.ErrorLevel
	if unifiedErr, ok := As(err); ok {
		level = LevelFor(unifiedErr.Severity)
	}
	logger.Log(level, message, append(fields, LogFields(err)...)...)
}

// LevelFor maps an error severity to a log level.
func LevelFor(severity ErrorSeverity) zapcore.Level {
	switch severity {
	case SeverityLow:
		return zapcore.DebugLevel
	case SeverityMedium:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
