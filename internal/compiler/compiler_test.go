package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kristofer/lumen/internal/chunk"
	"github.com/kristofer/lumen/internal/gc"
)

func compile(t *testing.T, src string) (ok bool, disasm string, reporter *CollectingReporter) {
	t.Helper()
	heap := gc.NewHeap()
	reporter = &CollectingReporter{}
	c := New(heap, reporter)
	fn, compiled := c.Compile(src)
	var buf bytes.Buffer
	chunk.Disassemble(&buf, fn.Chunk, "test")
	return compiled, buf.String(), reporter
}

func TestCompilesArithmeticExpression(t *testing.T) {
	ok, out, rep := compile(t, "print 1 + 2 * 3;")
	if !ok {
		t.Fatalf("expected compile success, errors: %v", rep.Messages)
	}
	for _, want := range []string{"CONSTANT", "MULTIPLY", "ADD", "PRINT", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected disassembly to contain %s, got:\n%s", want, out)
		}
	}
}

func TestConstReassignmentIsCompileError(t *testing.T) {
	ok, _, rep := compile(t, "const x = 1; x = 2;")
	if ok {
		t.Fatal("expected compile failure reassigning a const global")
	}
	found := false
	for _, m := range rep.Messages {
		if strings.Contains(m, "Cannot assign to const variable 'x'") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a const-reassignment diagnostic, got: %v", rep.Messages)
	}
}

func TestConstRequiresInitializer(t *testing.T) {
	ok, _, rep := compile(t, "const x;")
	if ok {
		t.Fatal("expected compile failure for const without initializer")
	}
	if len(rep.Messages) == 0 || !strings.Contains(rep.Messages[0], "requires an initializer") {
		t.Errorf("expected initializer-required diagnostic, got: %v", rep.Messages)
	}
}

func TestLocalConstReassignmentIsCompileError(t *testing.T) {
	ok, _, rep := compile(t, "{ const x = 1; x = 2; }")
	if ok {
		t.Fatal("expected compile failure reassigning a local const")
	}
	if len(rep.Messages) == 0 {
		t.Fatal("expected at least one diagnostic")
	}
}

func TestUndefinedThisOutsideClassIsError(t *testing.T) {
	ok, _, rep := compile(t, "print this;")
	if ok {
		t.Fatal("expected compile failure for this outside a class")
	}
	if len(rep.Messages) == 0 || !strings.Contains(rep.Messages[0], "'this' outside of a class") {
		t.Errorf("got: %v", rep.Messages)
	}
}

func TestClassWithMethodCompiles(t *testing.T) {
	src := `
class Greeter {
  greet(name) {
    print name;
  }
}
`
	ok, out, rep := compile(t, src)
	if !ok {
		t.Fatalf("expected compile success, errors: %v", rep.Messages)
	}
	for _, want := range []string{"CLASS", "METHOD"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected disassembly to contain %s, got:\n%s", want, out)
		}
	}
}

func TestSubclassEmitsInherit(t *testing.T) {
	src := `
class A { greet() { print "a"; } }
class B < A {}
`
	ok, out, rep := compile(t, src)
	if !ok {
		t.Fatalf("expected compile success, errors: %v", rep.Messages)
	}
	if !strings.Contains(out, "INHERIT") {
		t.Errorf("expected disassembly to contain INHERIT, got:\n%s", out)
	}
}

func TestClosureCapturesUpvalue(t *testing.T) {
	src := `
fun makeCounter() {
  let count = 0;
  fun increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
`
	ok, out, rep := compile(t, src)
	if !ok {
		t.Fatalf("expected compile success, errors: %v", rep.Messages)
	}
	if !strings.Contains(out, "CLOSURE") {
		t.Errorf("expected disassembly to contain CLOSURE, got:\n%s", out)
	}
}

func TestForLoopDesugarsToJumpsAndLoop(t *testing.T) {
	src := `
for (let i = 0; i < 3; i = i + 1) {
  print i;
}
`
	ok, out, rep := compile(t, src)
	if !ok {
		t.Fatalf("expected compile success, errors: %v", rep.Messages)
	}
	for _, want := range []string{"LOOP", "JUMP_IF_FALSE"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected disassembly to contain %s, got:\n%s", want, out)
		}
	}
}

func TestSwitchStatementUsesCompare(t *testing.T) {
	src := `
switch (1) {
case 1: print "one";
default: print "other";
}
`
	ok, out, rep := compile(t, src)
	if !ok {
		t.Fatalf("expected compile success, errors: %v", rep.Messages)
	}
	if !strings.Contains(out, "COMPARE") {
		t.Errorf("expected disassembly to contain COMPARE, got:\n%s", out)
	}
}

func TestTooManyConstantsUsesConstantLong(t *testing.T) {
	// Numeric literals are never deduped (see internal/chunk's
	// AddConstant), so 300 bare numeric-literal statements
	// push 300 distinct pool entries and force the 257th and later constant
	// loads to use the 24-bit CONSTANT_LONG form instead of CONSTANT.
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("1;\n")
	}
	heap := gc.NewHeap()
	reporter := &CollectingReporter{}
	c := New(heap, reporter)
	fn, ok := c.Compile(b.String())
	if !ok {
		t.Fatalf("expected compile success, errors: %v", reporter.Messages)
	}
	if len(fn.Chunk.Constants) <= 256 {
		t.Fatalf("expected more than 256 constants, got %d", len(fn.Chunk.Constants))
	}
	var buf bytes.Buffer
	chunk.Disassemble(&buf, fn.Chunk, "test")
	if !strings.Contains(buf.String(), "CONSTANT_LONG") {
		t.Errorf("expected CONSTANT_LONG once the pool exceeds 256 entries, got:\n%s", buf.String())
	}
}

