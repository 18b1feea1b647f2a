package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWarnFieldsWritesFields(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { log = zerolog.Nop() })

	WarnFields(map[string]string{"event": "data"}, "unexpected %s", "notification")

	out := buf.String()
	if !strings.Contains(out, "unexpected notification") {
		t.Fatalf("message missing from %q", out)
	}
	if !strings.Contains(out, "event=") || !strings.Contains(out, "data") {
		t.Fatalf("field missing from %q", out)
	}
}

func TestInitFileOnlyCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	path, err := InitFileOnly(dir)
	if err != nil {
		t.Fatalf("InitFileOnly: %v", err)
	}
	t.Cleanup(func() {
		Close()
		log = zerolog.Nop()
	})

	if !strings.HasPrefix(path, dir) || !strings.HasSuffix(path, ".log") {
		t.Fatalf("unexpected log path %q", path)
	}
}
