package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfig(t *testing.T) {
	cfg := config(true, true)
	if cfg.Encoding != "json" {
		t.Fatalf("expected json encoding, got %s", cfg.Encoding)
	}
	if cfg.Level.Level() != zapcore.DebugLevel {
		t.Fatalf("expected debug level, got %s", cfg.Level.Level())
	}

	cfg = config(false, false)
	if cfg.Encoding != "console" || cfg.Level.Level() != zapcore.InfoLevel {
		t.Fatalf("unexpected default config: %s %s", cfg.Encoding, cfg.Level.Level())
	}
}

func TestStringFields(t *testing.T) {
	fields := stringFields("  provider  ", "  ollama  ", "ignored", "   ", "   ", "empty key", "dangling")

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Key != "provider" || fields[0].String != "ollama" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}
}

func TestWithCommonFieldsNilLogger(t *testing.T) {
	log := WithCommonFields(nil, "ollama", "")
	if log == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}
	log.Info("does not panic")
}

func TestWithCommonFieldsAndRound(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	log := WithRound(WithCommonFields(zap.New(core), "openai", " "), 2, "4f9c")

	log.Info("round started")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldProvider] != "openai" {
		t.Fatalf("unexpected provider fields: %v", ctx)
	}
	if _, ok := ctx[FieldModel]; ok {
		t.Fatalf("blank model should be omitted: %v", ctx)
	}
	if ctx[FieldRound] != int64(2) || ctx[FieldRoundID] != "4f9c" {
		t.Fatalf("unexpected round fields: %v", ctx)
	}
}

func TestAccessFailures(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	AccessFailures(zap.New(core).Named("fetch")).Info("https://www.linkedin.com/in/jane | jane | de")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "fetch."+AccessFailuresChannel {
		t.Fatalf("unexpected logger name: %s", entries[0].LoggerName)
	}
	if entries[0].ContextMap()[FieldChannel] != AccessFailuresChannel {
		t.Fatalf("missing channel field: %v", entries[0].ContextMap())
	}

	AccessFailures(nil).Info("does not panic")
}
