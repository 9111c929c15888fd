package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKeyValueFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With("component", "test")

	log.Info("check-in created", "checkInId", "c1", "assigned", 3, "dangling")
	log.Error("store failure", "error", errors.New("boom"))

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["component"] != "test" {
		t.Fatalf("component field = %v", fields["component"])
	}
	if fields["checkInId"] != "c1" {
		t.Fatalf("checkInId field = %v", fields["checkInId"])
	}
	if fields["assigned"] != int64(3) {
		t.Fatalf("assigned field = %v (%T)", fields["assigned"], fields["assigned"])
	}
	if _, ok := fields["dangling"]; ok {
		t.Fatalf("dangling key should be dropped")
	}

	if got := entries[1].ContextMap()["error"]; got != "boom" {
		t.Fatalf("error field = %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"unknown": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopDoesNotPanic(t *testing.T) {
	log := NewNop()
	log.Debug("x", "k", "v")
	log.With("a", 1).Warn("y")
}
