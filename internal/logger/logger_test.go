package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for s, want := range cases {
		got, ok := ParseLogLevel(s)
		if !ok {
			t.Errorf("ParseLogLevel(%q) not ok", s)
		}
		if got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", s, got, want)
		}
	}

	if _, ok := ParseLogLevel("verbose"); ok {
		t.Error("ParseLogLevel(verbose) should not be ok")
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(zap.NewAtomicLevelAt(zapcore.DebugLevel), &buf)

	ctx := ToContext(context.Background(), l)
	ctx = WithName(ctx, "installer")
	ctx = WithKV(ctx, "package", "unseal")

	InfoKV(ctx, "fetched artifact", "bytes", 42)

	out := buf.String()
	for _, want := range []string{"installer", "fetched artifact", "package", "unseal", "bytes", "42"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	if FromContext(context.Background()) != Logger() {
		t.Error("expected global logger for bare context")
	}
}

func TestWithLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(zap.NewAtomicLevelAt(zapcore.DebugLevel), &buf, WithLevel(zapcore.ErrorLevel))

	l.Info("hidden")
	l.Error("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info entry should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("error entry missing: %q", out)
	}
}

func TestKVHelpersRespectLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(zap.NewAtomicLevelAt(zapcore.InfoLevel), &buf)
	ctx := ToContext(context.Background(), l)

	DebugKV(ctx, "stale cache entry", "path", "/tmp/x")
	InfoKV(ctx, "placed binary", "replaced", true)
	WarnKV(ctx, "post-install check failed", "exit", 1)

	out := buf.String()
	if strings.Contains(out, "stale cache entry") {
		t.Errorf("debug entry should be filtered: %q", out)
	}
	for _, want := range []string{"placed binary", "replaced", "post-install check failed", "WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
