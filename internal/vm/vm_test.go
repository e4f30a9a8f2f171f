package vm_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kristofer/lumen/internal/compiler"
	"github.com/kristofer/lumen/internal/gc"
	"github.com/kristofer/lumen/internal/vm"
)

// run compiles and interprets src, returning stdout and any runtime error.
func run(t *testing.T, src string) (string, error) {
	t.Helper()
	heap := gc.NewHeap()
	reporter := &compiler.CollectingReporter{}
	fn, ok := compiler.New(heap, reporter).Compile(src)
	if !ok {
		t.Fatalf("compile failed: %v", reporter.Messages)
	}
	var out strings.Builder
	machine := vm.New(heap, &out)
	err := machine.Interpret(context.Background(), fn)
	return out.String(), err
}

func TestArithmeticExpressionPrints(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3 - (4 / 2);`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "5\n" {
		t.Fatalf("got %q", out)
	}
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "foobar\n" {
		t.Fatalf("got %q", out)
	}
}

func TestClosureCounter(t *testing.T) {
	src := `
	fun makeCounter() {
		let count = 0;
		fun increment() {
			count = count + 1;
			return count;
		}
		return increment;
	}
	let counter = makeCounter();
	print counter();
	print counter();
	print counter();
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "1\n2\n3\n" {
		t.Fatalf("got %q", out)
	}
}

func TestForLoopAccumulates(t *testing.T) {
	src := `
	let sum = 0;
	for (let i = 0; i < 5; i = i + 1) {
		sum = sum + i;
	}
	print sum;
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "10\n" {
		t.Fatalf("got %q", out)
	}
}

func TestClassMethodCallAndFields(t *testing.T) {
	src := `
	class Counter {
		init(start) {
			this.value = start;
		}
		increment() {
			this.value = this.value + 1;
			return this.value;
		}
	}
	let c = Counter(10);
	print c.increment();
	print c.increment();
	print c.value;
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "11\n12\n12\n" {
		t.Fatalf("got %q", out)
	}
}

func TestSuperInvocation(t *testing.T) {
	src := `
	class Animal {
		speak() {
			return "...";
		}
		describe() {
			return "an animal that says " + this.speak();
		}
	}
	class Dog < Animal {
		speak() {
			return "woof";
		}
		describe() {
			return super.describe();
		}
	}
	print Dog().describe();
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "an animal that says woof\n" {
		t.Fatalf("got %q", out)
	}
}

func TestSwitchStatementMatchesCase(t *testing.T) {
	src := `
	fun classify(n) {
		switch (n) {
			case 1: return "one";
			case 2: return "two";
			default: return "many";
		}
	}
	print classify(1);
	print classify(2);
	print classify(99);
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "one\ntwo\nmany\n" {
		t.Fatalf("got %q", out)
	}
}

func TestClockNativeReturnsNonNegative(t *testing.T) {
	out, err := run(t, `print clock() >= 0;`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "true\n" {
		t.Fatalf("got %q", out)
	}
}

func TestNativeLibrary(t *testing.T) {
	out, err := run(t, `
	print sqrt(16);
	print pow(2, 10);
	print atof("3.5") + 0.5;
	`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "4\n1024\n4\n" {
		t.Fatalf("got %q", out)
	}
}

func TestManyConstantsForceConstantLong(t *testing.T) {
	var b strings.Builder
	b.WriteString("let total = 0;\n")
	for i := 0; i < 300; i++ {
		b.WriteString("total = total + 1;\n")
	}
	b.WriteString("print total;\n")
	out, err := run(t, b.String())
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "300\n" {
		t.Fatalf("got %q", out)
	}
}

func TestStackOverflowFromUnboundedRecursion(t *testing.T) {
	src := `
	fun recurse() {
		return recurse();
	}
	recurse();
	`
	_, err := run(t, src)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "Stack overflow.") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestAssigningUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, err := run(t, `nope = 1;`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "Undefined variable 'nope'.") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	_, err := run(t, `let x = 1; x();`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "Can only call functions and classes.") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestWrongArityIsRuntimeError(t *testing.T) {
	src := `
	fun one(a) { return a; }
	one(1, 2);
	`
	_, err := run(t, src)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "Expected 1 arguments but got 2.") {
		t.Fatalf("got %q", err.Error())
	}
}
