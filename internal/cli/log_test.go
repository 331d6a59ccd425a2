package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("fetched") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("fetched") }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("fetched") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.DebugLevel))
	time.Sleep(10 * time.Millisecond)
	prog.done("profile olirice")

	if !strings.Contains(buf.String(), "profile olirice (") {
		t.Errorf("progress.done() output = %q, want message with duration", buf.String())
	}
}

func TestProgressQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	newProgress(newLogger(&buf, log.InfoLevel)).done("profile olirice")
	if buf.Len() != 0 {
		t.Errorf("progress.done() at info level wrote %q", buf.String())
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("loggerFromContext() without a logger should return log.Default()")
	}

	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel)
	got := loggerFromContext(withLogger(context.Background(), custom))
	if got != custom {
		t.Fatal("loggerFromContext() should return the attached logger")
	}
	got.Info("signed in")
	if !strings.Contains(buf.String(), "signed in") {
		t.Errorf("custom logger output = %q", buf.String())
	}
}
