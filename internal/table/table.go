// Package table implements the open-addressing hash table shared by every
// part of the interpreter that needs a string-keyed map: the VM's globals,
// instance fields, class method tables, and the string-interning set owned
// by the garbage collector.
//
// Values are stored as interface{} rather than a dedicated value type so
// this package stays independent of the object model above it (table has
// no dependency on the value package; value depends on table, not the
// other way around).
package table

// loadFactor is the maximum fraction of occupied slots (live entries plus
// tombstones) before the table grows. Above this threshold linear probing
// degrades into near-linear scans.
const loadFactor = 0.75

const initialCapacity = 8

// entry is one slot in the backing array. An entry is:
//   - empty:     !present && !tombstone
//   - tombstone: !present &&  tombstone (a deleted key; probing must continue past it)
//   - live:       present
type entry struct {
	key       string
	hash      uint32
	value     interface{}
	present   bool
	tombstone bool
}

// Table is an open-addressing hash table using linear probing. Capacity is
// always a power of two so the bucket index can be computed as hash & (cap-1).
type Table struct {
	entries []entry
	count   int // live entries + tombstones, used against loadFactor
	live    int // live entries only
}

// New creates an empty Table.
func New() *Table {
	return &Table{}
}

// Hash computes the FNV-1a 32-bit hash of a string, the hash function used
// throughout the interpreter for interned strings and table keys.
func Hash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Len returns the number of live key/value pairs.
func (t *Table) Len() int { return t.live }

// Get returns the value stored for key, if any.
func (t *Table) Get(key string) (interface{}, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	e := t.findEntry(key, Hash(key))
	if !e.present {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, growing the table first if needed. It returns
// true if this inserted a brand-new key (as opposed to overwriting one).
func (t *Table) Set(key string, value interface{}) bool {
	if len(t.entries) == 0 || float64(t.count+1) > float64(len(t.entries))*loadFactor {
		t.grow()
	}

	hash := Hash(key)
	idx := t.findIndex(key, hash)
	e := &t.entries[idx]

	isNew := !e.present
	if isNew && !e.tombstone {
		t.count++
	}
	if isNew {
		t.live++
	}
	e.key = key
	e.hash = hash
	e.value = value
	e.present = true
	e.tombstone = false
	return isNew
}

// Delete installs a tombstone at key's slot, if present, so that later
// probes for other keys that hashed into the same run keep working.
func (t *Table) Delete(key string) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := t.findIndex(key, Hash(key))
	e := &t.entries[idx]
	if !e.present {
		return false
	}
	e.present = false
	e.tombstone = true
	e.key = ""
	e.value = nil
	t.live--
	return true
}

// FindString looks up a key by its exact byte sequence and precomputed hash,
// used by the interning table to locate the canonical string object without
// constructing a candidate key first when the hash already differs.
func (t *Table) FindString(chars string, hash uint32) (string, bool) {
	if len(t.entries) == 0 {
		return "", false
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if !e.present && !e.tombstone {
			return "", false
		}
		if e.present && e.hash == hash && e.key == chars {
			return e.key, true
		}
		idx = (idx + 1) & mask
	}
}

// Each calls fn for every live entry, in table (not insertion) order. The
// callback must not mutate the table.
func (t *Table) Each(fn func(key string, value interface{})) {
	for _, e := range t.entries {
		if e.present {
			fn(e.key, e.value)
		}
	}
}

// RemoveUnmarked deletes every live entry for which keep returns false. It is
// used by the collector to drop unmarked strings from the intern table after
// tracing but before sweep, so a dead string cannot be resurrected by a
// lookup that would otherwise find it still interned.
func (t *Table) RemoveUnmarked(keep func(value interface{}) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.present && !keep(e.value) {
			e.present = false
			e.tombstone = true
			e.value = nil
			t.live--
		}
	}
}

// findEntry locates the entry for key (present or not), returning it by
// value for read-only callers.
func (t *Table) findEntry(key string, hash uint32) entry {
	return t.entries[t.findIndex(key, hash)]
}

// findIndex implements the shared linear-probe search: walk from the home
// bucket until hitting an empty slot (the key is absent; if a tombstone was
// seen along the way, its index is reused instead) or the matching live key.
func (t *Table) findIndex(key string, hash uint32) int {
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	tombstoneIdx := -1
	for {
		e := &t.entries[idx]
		switch {
		case !e.present && !e.tombstone:
			if tombstoneIdx != -1 {
				return tombstoneIdx
			}
			return int(idx)
		case e.tombstone:
			if tombstoneIdx == -1 {
				tombstoneIdx = int(idx)
			}
		case e.hash == hash && e.key == key:
			return int(idx)
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) grow() {
	newCap := initialCapacity
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	old := t.entries
	t.entries = make([]entry, newCap)
	t.count = 0
	t.live = 0
	for _, e := range old {
		if !e.present {
			continue
		}
		idx := t.findIndex(e.key, e.hash)
		t.entries[idx] = e
		t.count++
		t.live++
	}
}
