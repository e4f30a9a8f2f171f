package gc

import "github.com/kristofer/lumen/internal/value"

// Collect runs one full mark-sweep cycle: mark every root each registered
// source reports, trace from there until the gray stack is empty, drop any
// intern-table entry whose string didn't survive, sweep every unmarked
// object off the allocation list, and finally set the next collection
// threshold from the bytes that remain.
func (h *Heap) Collect() {
	h.collections++
	h.gray = h.gray[:0]

	for _, root := range h.roots {
		root(h.markValue)
	}
	h.traceReferences()
	h.removeWhiteStrings()
	h.sweep()

	h.nextGC = h.bytesAllocated * heapGrowFactor
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}
}

// markValue marks v's referent, if v holds one.
func (h *Heap) markValue(v value.Value) {
	if v.IsObject() {
		h.markObject(v.AsObject())
	}
}

// markObject marks o black-pending (gray) unless it's nil or already marked.
func (h *Heap) markObject(o value.Obj) {
	if o == nil {
		return
	}
	hdr := o.GCHeader()
	if hdr.Marked {
		return
	}
	hdr.Marked = true
	h.gray = append(h.gray, o)
}

// traceReferences drains the gray stack, blackening each object by marking
// everything it references in turn, until nothing gray remains.
func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		o := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(o)
	}
}

// blacken marks every object (and, for upvalues, the Value) a gray object
// references, per variant.
func (h *Heap) blacken(o value.Obj) {
	switch obj := o.(type) {
	case *value.ObjString:
		// no outgoing references
	case *value.ObjUpvalue:
		h.markValue(obj.Closed)
	case *value.ObjFunction:
		if obj.Name != nil {
			h.markObject(obj.Name)
		}
		for _, c := range obj.Chunk.Constants {
			h.markConstant(c)
		}
	case *value.ObjClosure:
		h.markObject(obj.Function)
		for _, u := range obj.Upvalues {
			if u != nil {
				h.markObject(u)
			}
		}
	case *value.ObjNative:
		// the wrapped Go function carries no lumen-visible references
	case *value.ObjClass:
		if obj.Name != nil {
			h.markObject(obj.Name)
		}
		obj.Methods.Each(func(_ string, v interface{}) {
			if cl, ok := v.(*value.ObjClosure); ok {
				h.markObject(cl)
			}
		})
	case *value.ObjInstance:
		h.markObject(obj.Class)
		obj.Fields.Each(func(_ string, v interface{}) {
			if val, ok := v.(value.Value); ok {
				h.markValue(val)
			}
		})
	case *value.ObjBoundMethod:
		h.markValue(obj.Receiver)
		h.markObject(obj.Method)
	}
}

// markConstant marks one constant-pool slot. Constants are stored as
// interface{} (see internal/chunk) to avoid a value<->chunk import cycle, so
// the collector has to recover the concrete shape itself: a constant is
// either a Value (numbers, bools, nil stored literally never occur — the
// compiler only ever puts numbers and object-wrapped strings/functions in
// the pool, but both shapes are handled defensively here) or a bare Obj
// (closures-in-progress are never pool entries, but nested ObjFunctions are).
func (h *Heap) markConstant(c interface{}) {
	switch v := c.(type) {
	case value.Value:
		h.markValue(v)
	case value.Obj:
		h.markObject(v)
	}
}

// removeWhiteStrings drops every intern-table entry whose ObjString didn't
// get marked this cycle, so a subsequent InternString call can't resurrect a
// string that's about to be swept.
func (h *Heap) removeWhiteStrings() {
	h.strings.RemoveUnmarked(func(v interface{}) bool {
		s, ok := v.(*value.ObjString)
		return ok && s.Marked
	})
}

// sweep walks the allocation list, unlinking every object that wasn't
// marked this cycle and clearing the mark bit on everything that survives.
func (h *Heap) sweep() {
	var prev value.Obj
	obj := h.objects
	for obj != nil {
		hdr := obj.GCHeader()
		next := hdr.Next
		if hdr.Marked {
			hdr.Marked = false
			prev = obj
			obj = next
			continue
		}
		h.bytesAllocated -= sizeOf(obj)
		if prev == nil {
			h.objects = next
		} else {
			prev.GCHeader().Next = next
		}
		obj = next
	}
}
