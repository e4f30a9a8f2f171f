package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.lumen")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString(src); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return f.Name()
}

func TestRunFilePrintsToStdout(t *testing.T) {
	path := writeScript(t, `print 1 + 2 * 3;`)
	var stdout, stderr bytes.Buffer

	code := run([]string{path}, false, nil, &stdout, &stderr)

	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}
	if stdout.String() != "7\n" {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunFileCompileErrorReportsAndExits(t *testing.T) {
	path := writeScript(t, `let = ;`)
	var stdout, stderr bytes.Buffer

	code := run([]string{path}, false, nil, &stdout, &stderr)

	if code != exitCompileErr {
		t.Fatalf("exit code = %d, want %d", code, exitCompileErr)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected a compile diagnostic on stderr")
	}
}

func TestRunFileRuntimeErrorReportsAndExits(t *testing.T) {
	path := writeScript(t, `nope();`)
	var stdout, stderr bytes.Buffer

	code := run([]string{path}, false, nil, &stdout, &stderr)

	if code != exitRuntimeErr {
		t.Fatalf("exit code = %d, want %d", code, exitRuntimeErr)
	}
	if !strings.Contains(stderr.String(), "Undefined variable 'nope'.") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunFileMissingFileReportsIOError(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"/no/such/file.lumen"}, false, nil, &stdout, &stderr)

	if code != exitIOErr {
		t.Fatalf("exit code = %d, want %d", code, exitIOErr)
	}
}

func TestRunTooManyArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"a.lumen", "b.lumen"}, false, nil, &stdout, &stderr)

	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestREPLEvaluatesEachLineAndKeepsGlobalsLive(t *testing.T) {
	stdin := strings.NewReader("let x = 1;\nprint x + 1;\n")
	var stdout, stderr bytes.Buffer

	code := run(nil, false, stdin, &stdout, &stderr)

	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "2\n") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestREPLRejectsReassigningConstAcrossLines(t *testing.T) {
	stdin := strings.NewReader("const x = 1;\nx = 2;\n")
	var stdout, stderr bytes.Buffer

	code := run(nil, false, stdin, &stdout, &stderr)

	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "const") {
		t.Fatalf("expected a const-reassignment diagnostic, stderr = %q", stderr.String())
	}
}

func TestREPLRejectsReassigningNativeGlobal(t *testing.T) {
	stdin := strings.NewReader("clock = 5;\n")
	var stdout, stderr bytes.Buffer

	code := run(nil, false, stdin, &stdout, &stderr)

	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "const") {
		t.Fatalf("expected a const-reassignment diagnostic for 'clock', stderr = %q", stderr.String())
	}
}
