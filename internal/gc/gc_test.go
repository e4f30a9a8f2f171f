package gc

import (
	"testing"

	"github.com/kristofer/lumen/internal/value"
)

func TestInternStringDedupes(t *testing.T) {
	h := NewHeap()
	a := h.InternString("hello")
	b := h.InternString("hello")
	if a != b {
		t.Fatalf("expected the same *ObjString for equal content, got distinct pointers")
	}
	c := h.InternString("world")
	if a == c {
		t.Fatalf("expected distinct strings to intern to distinct objects")
	}
}

func TestCollectSweepsUnreachableObjects(t *testing.T) {
	h := NewHeap()
	var kept value.Value
	h.AddRootSource(func(mark func(value.Value)) {
		mark(kept)
	})

	keep := h.InternString("kept")
	kept = value.Object(keep)
	_ = h.InternString("garbage")

	before := h.BytesAllocated()
	h.Collect()
	after := h.BytesAllocated()

	if after >= before {
		t.Fatalf("expected bytesAllocated to shrink after collecting garbage: before=%d after=%d", before, after)
	}
	if _, ok := h.strings.Get("kept"); !ok {
		t.Error("rooted string should survive collection")
	}
	if _, ok := h.strings.Get("garbage"); ok {
		t.Error("unrooted string should not survive collection")
	}
}

func TestCollectTracesThroughObjectGraph(t *testing.T) {
	h := NewHeap()
	name := h.InternString("Greeter")
	class := h.NewClass(name)
	methodName := h.InternString("greet")
	fn := h.NewFunction(methodName)
	closure := h.NewClosure(fn)
	class.Methods.Set("greet", closure)
	instance := h.NewInstance(class)

	var root value.Value
	h.AddRootSource(func(mark func(value.Value)) { mark(root) })
	root = value.Object(instance)

	h.Collect()

	if instance.GCHeader().Marked {
		t.Error("mark bit should be cleared after sweep")
	}
	if _, ok := class.Methods.Get("greet"); !ok {
		t.Error("method reachable via the surviving instance's class should not be collected")
	}
	if _, ok := h.strings.Get("Greeter"); !ok {
		t.Error("class name string reachable through the instance should survive")
	}
}

func TestCollectWithNoRootsSweepsEverything(t *testing.T) {
	h := NewHeap()
	h.InternString("orphan")
	h.Collect()
	if h.BytesAllocated() != 0 {
		t.Errorf("expected an empty heap after collecting with no roots, got %d bytes", h.BytesAllocated())
	}
}

func TestStressGCCollectsOnEveryAllocation(t *testing.T) {
	h := NewHeap()
	h.SetStressGC(true)
	before := h.Collections()
	h.InternString("a")
	h.InternString("b")
	if h.Collections() <= before {
		t.Error("expected stress mode to trigger a collection per allocation")
	}
}

func TestNextGCNeverDropsBelowInitialThreshold(t *testing.T) {
	h := NewHeap()
	root := h.InternString("root")
	var rootVal value.Value
	h.AddRootSource(func(mark func(value.Value)) { mark(rootVal) })
	rootVal = value.Object(root)

	h.Collect()
	if h.nextGC < initialNextGC {
		t.Errorf("expected nextGC to stay at least at the initial threshold, got %d", h.nextGC)
	}
}
