package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestGetLogger_FallsBackToGlobal(t *testing.T) {
	entry := GetLogger(context.Background())
	if entry == nil {
		t.Fatal("expected a logger entry")
	}
	if entry.Logger != L.Logger {
		t.Error("expected fallback to the global logger")
	}
}

func TestWithFields_CarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.InfoLevel)

	ctx := WithLogger(context.Background(), logrus.NewEntry(l))
	ctx = WithFields(ctx, logrus.Fields{"agent": "cursor"})
	G(ctx).Info("projected")

	if !strings.Contains(buf.String(), "agent=cursor") {
		t.Errorf("log output missing field: %q", buf.String())
	}
}

func TestSetLogLevel(t *testing.T) {
	orig := L.Logger.GetLevel()
	defer L.Logger.SetLevel(orig)

	if err := SetLogLevel("debug"); err != nil {
		t.Fatalf("SetLogLevel(debug) error: %v", err)
	}
	if L.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", L.Logger.GetLevel())
	}
	if err := SetLogLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
