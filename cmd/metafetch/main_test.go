package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelsos/metafetch/internal/async"
	"github.com/kelsos/metafetch/internal/metadata"
	"github.com/kelsos/metafetch/internal/models"
)

func TestWriteResults(t *testing.T) {
	title := "Example Domain"
	results := []async.Result{
		{URL: "https://example.com", Metadata: models.NewMetadata(&title)},
		{URL: "https://example.com/empty", Metadata: models.NewMetadata(nil)},
		{URL: "ftp://example.com", Err: metadata.InvalidRequest(nil, errors.New("unsupported URL scheme"))},
	}

	var buf bytes.Buffer
	failed := writeResults(&buf, results)
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if lines[0] != "https://example.com\tMetadata(title: Example Domain)" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "https://example.com/empty\tMetadata(title: nil)" {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "ftp://example.com\terror: The request for the website could not be completed.") {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func newTestCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 30*time.Second, "")
	cmd.Flags().StringVarP(&opts.userAgent, "user-agent", "u", "", "")
	cmd.Flags().Int64Var(&opts.maxBody, "max-body", 1<<20, "")
	return cmd
}

func TestLoadConfigLayering(t *testing.T) {
	t.Setenv("METAFETCH_USER_AGENT", "from-env")
	t.Setenv("METAFETCH_MAX_BODY", "2048")

	path := filepath.Join(t.TempDir(), "metafetch.toml")
	if err := os.WriteFile(path, []byte("timeout = \"5s\"\nmax_body_bytes = 4096\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := &options{}
	cmd := newTestCommand(opts)
	if err := cmd.Flags().Parse([]string{"--config", path, "--timeout", "2s"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want flag value", cfg.Timeout)
	}
	if cfg.MaxBodyBytes != 4096 {
		t.Errorf("MaxBodyBytes = %d, want file value", cfg.MaxBodyBytes)
	}
	if cfg.UserAgent != "from-env" {
		t.Errorf("UserAgent = %q, want env value", cfg.UserAgent)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	opts := &options{}
	cmd := newTestCommand(opts)
	if err := cmd.Flags().Parse([]string{"--max-body", "0"}); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(cmd, opts); err == nil {
		t.Fatal("expected validation error")
	}
}
