package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseEnvFile(t *testing.T) {
	content := "\ufeffFLASHSALE_TEST_PORT=9090\n# comment\nexport FLASHSALE_TEST_QUOTED=\"hello\"\n"
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("FLASHSALE_TEST_PORT")
		os.Unsetenv("FLASHSALE_TEST_QUOTED")
	})

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open env file: %v", err)
	}
	defer file.Close()

	if err := parseEnvFile(zerolog.Nop(), file); err != nil {
		t.Fatalf("parse env file: %v", err)
	}

	// The leading byte-order mark must not hide the first assignment.
	if got := os.Getenv("FLASHSALE_TEST_PORT"); got != "9090" {
		t.Fatalf("expected FLASHSALE_TEST_PORT=9090, got %q", got)
	}
	if got := os.Getenv("FLASHSALE_TEST_QUOTED"); got != "hello" {
		t.Fatalf("expected quotes trimmed, got %q", got)
	}
}
