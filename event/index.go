package event

import (
	"time"

	"github.com/google/btree"
)

// slot is an opaque handle into the store's event slab. Indices hold
// slots, not copies of events (spec.md §9 "Shared-state indices": an
// arena owns events, indices hold handles).
type slot int

// indexEntry is one (timestamp, insertion-sequence, slot) triple kept
// in a btree-ordered index. The insertion sequence breaks ties between
// events sharing an identical timestamp, preserving insertion order as
// spec.md §4.E requires ("ties retain insertion order").
type indexEntry struct {
	ts   time.Time
	seq  uint64
	slot slot
}

func lessIndexEntry(a, b indexEntry) bool {
	if !a.ts.Equal(b.ts) {
		return a.ts.Before(b.ts)
	}
	return a.seq < b.seq
}

// orderedIndex is the in-memory analogue of the teacher's badger-backed
// byte-key index: an ordered structure keyed for range scans, backed by
// a generic B-tree (google/btree) instead of an external KV engine.
type orderedIndex struct {
	tree *btree.BTreeG[indexEntry]
}

func newOrderedIndex() *orderedIndex {
	return &orderedIndex{tree: btree.NewG(32, lessIndexEntry)}
}

func (idx *orderedIndex) insert(ts time.Time, seq uint64, s slot) {
	idx.tree.ReplaceOrInsert(indexEntry{ts: ts, seq: seq, slot: s})
}

// rangeSlots returns, in ascending (time, seq) order, the slots whose
// timestamp falls between start and end, each bound included or
// excluded independently by inclusiveStart/inclusiveEnd. An exclusive
// start is realized by moving the scan's lower bound 1ns past start;
// the end bound is compared directly, with no offset.
func (idx *orderedIndex) rangeSlots(start, end *time.Time, inclusiveStart, inclusiveEnd bool) []slot {
	lo := indexEntry{ts: time.Time{}}
	hasLo := false
	if start != nil {
		t := *start
		if !inclusiveStart {
			t = t.Add(time.Nanosecond)
		}
		lo = indexEntry{ts: t}
		hasLo = true
	}

	var out []slot
	visit := func(e indexEntry) bool {
		if end != nil {
			limit := *end
			if inclusiveEnd {
				if e.ts.After(limit) {
					return false
				}
			} else {
				if !e.ts.Before(limit) {
					return false
				}
			}
		}
		out = append(out, e.slot)
		return true
	}

	if hasLo {
		idx.tree.AscendGreaterOrEqual(lo, visit)
	} else {
		idx.tree.Ascend(visit)
	}
	return out
}

func (idx *orderedIndex) all() []slot {
	return idx.rangeSlots(nil, nil, true, true)
}
