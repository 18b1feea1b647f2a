package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvironmentFromWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("METAFETCH_ENV_TEST=from-file\nMETAFETCH_ENV_KEEP=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("METAFETCH_ENV_KEEP", "from-env")
	t.Setenv("METAFETCH_ENV_TEST", "")
	os.Unsetenv("METAFETCH_ENV_TEST")

	loaded := LoadEnvironment()
	if len(loaded) == 0 {
		t.Fatal("expected the .env file to be loaded")
	}
	if got := os.Getenv("METAFETCH_ENV_TEST"); got != "from-file" {
		t.Fatalf("METAFETCH_ENV_TEST = %q", got)
	}
	if got := os.Getenv("METAFETCH_ENV_KEEP"); got != "from-env" {
		t.Fatalf("existing variable overridden: %q", got)
	}
}
