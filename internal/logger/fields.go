package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldRound    = "round"
	FieldRoundID  = "round_id"
	FieldChannel  = "channel"
)

// stringFields turns key/value pairs into zap fields. Blank keys or values are skipped.
func stringFields(pairs ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, value := strings.TrimSpace(pairs[i]), strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

func with(log *zap.Logger, fields []zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// WithCommonFields tags log with the model backend and model name.
func WithCommonFields(log *zap.Logger, provider, model string) *zap.Logger {
	return with(log, stringFields(FieldProvider, provider, FieldModel, model))
}

// WithRound tags log with the round number and id.
func WithRound(log *zap.Logger, round int, id string) *zap.Logger {
	fields := append([]zap.Field{zap.Int(FieldRound, round)}, stringFields(FieldRoundID, id)...)
	return with(log, fields)
}
