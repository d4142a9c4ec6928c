package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunFromStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-pause", "0s"}, strings.NewReader("പറയു \"ഹലോ\"\nചായകട"), &stdout, &stderr)

	if code != 0 {
		t.Fatalf("exit code %d, stderr %q", code, stderr.String())
	}
	want := "ഹലോ\n☕ ചായ കുടിക്കുന്നു... (5s break)\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRunFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.mlm")
	src := "വരിക്കു 2\nപറയു \"ചായ\"\nഅവസാനം\n"
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{path}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d, stderr %q", code, stderr.String())
	}
	if stdout.String() != "ചായ\nചായ\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunEmptyProgramPrintsNothing(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-"}, strings.NewReader("\n\n"), &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no output, got %q", stdout.String())
	}
}

func TestRunFailures(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{filepath.Join(t.TempDir(), "missing.mlm")}, nil, &stdout, &stderr); code != 1 {
		t.Errorf("missing file: exit code %d, want 1", code)
	}
	if code := run([]string{"a", "b"}, nil, &stdout, &stderr); code != 2 {
		t.Errorf("two files: exit code %d, want 2", code)
	}
	if code := run([]string{"-bogus"}, nil, &stdout, &stderr); code != 2 {
		t.Errorf("unknown flag: exit code %d, want 2", code)
	}
}
