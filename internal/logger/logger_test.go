package logger

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"unknown": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	if Ctx(context.Background()) == nil {
		t.Fatal("expected global logger")
	}

	l := New(Config{Level: "debug"})
	ctx := WithLogger(context.Background(), l)
	if Ctx(ctx).GetLevel() != zerolog.DebugLevel {
		t.Fatal("expected logger from context")
	}
}
