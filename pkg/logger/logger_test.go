package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if err := InitWith(&bytes.Buffer{}, "yaml"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestLoggerFieldsAndSource(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, "json"); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	Named("balancer").With(String("group", "g1")).Info(context.Background(), "teams generated",
		Int("swaps", 2), Error(errors.New("none")))

	out := buf.String()
	for _, want := range []string{`"msg":"teams generated"`, `"logger":"balancer"`, `"group":"g1"`, `"swaps":2`, `"source":"logger_test.go`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, "text"); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	Get().Warn(context.Background(), "shown")
	if bytes.Contains(buf.Bytes(), []byte("hidden")) || !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Errorf("unexpected output: %q", buf.String())
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}
	SetLevel(slog.LevelInfo)
}

func TestNop(t *testing.T) {
	l := Nop().Named("x")
	l.Error(context.Background(), "dropped")
}
