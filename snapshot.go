// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lincheck

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/btree"
)

const snapshotDegree = 8

type entry struct {
	key   string
	value string
}

func entryLess(a, b entry) bool { return a.key < b.key }

func (e entry) hash() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(e.key)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(e.value)
	return d.Sum64()
}

// Snapshot is an immutable key-value map state.
//
// Every transition returns a new Snapshot and leaves the receiver untouched,
// so sibling search branches never observe each other's writes. The
// underlying B-tree is cloned copy-on-write, making a transition O(log n).
//
// The zero value is the empty map.
type Snapshot struct {
	tree *btree.BTreeG[entry]
	sum  uint64 // XOR of entry hashes, independent of insertion order
}

// NewSnapshot returns a Snapshot holding the pairs of m.
func NewSnapshot(m map[string]string) Snapshot {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var s Snapshot
	for _, k := range keys {
		s = s.With(k, m[k])
	}
	return s
}

// Lookup returns the value associated with key.
func (s Snapshot) Lookup(key string) (string, bool) {
	if s.tree == nil {
		return "", false
	}
	e, ok := s.tree.Get(entry{key: key})
	return e.value, ok
}

// With returns s with key associated to value.
func (s Snapshot) With(key, value string) Snapshot {
	if v, ok := s.Lookup(key); ok && v == value {
		return s
	}
	var t *btree.BTreeG[entry]
	if s.tree == nil {
		t = btree.NewG(snapshotDegree, entryLess)
	} else {
		t = s.tree.Clone()
	}
	e := entry{key: key, value: value}
	sum := s.sum ^ e.hash()
	if old, replaced := t.ReplaceOrInsert(e); replaced {
		sum ^= old.hash()
	}
	return Snapshot{tree: t, sum: sum}
}

// Len returns the number of keys in s.
func (s Snapshot) Len() int {
	if s.tree == nil {
		return 0
	}
	return s.tree.Len()
}

// Fingerprint returns an order-independent hash of the contents of s.
// Equal snapshots have equal fingerprints.
func (s Snapshot) Fingerprint() uint64 { return s.sum }

// Equal reports whether s and o hold the same pairs.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.sum != o.sum || s.Len() != o.Len() {
		return false
	}
	if s.tree == o.tree || s.Len() == 0 {
		return true
	}
	equal := true
	s.tree.Ascend(func(e entry) bool {
		v, ok := o.Lookup(e.key)
		equal = ok && v == e.value
		return equal
	})
	return equal
}

// Map returns the contents of s as a fresh map.
func (s Snapshot) Map() map[string]string {
	m := make(map[string]string, s.Len())
	if s.tree != nil {
		s.tree.Ascend(func(e entry) bool {
			m[e.key] = e.value
			return true
		})
	}
	return m
}

// Apply runs op against s under sequential map semantics.
//
// A Set always succeeds and returns s with the key updated; its recorded
// return carries no information for this model. A Get succeeds, leaving
// the state unchanged, iff its recorded return equals the current value of
// the key, or Absent when the key is unset. On rejection Apply returns s
// and false; s itself is never modified.
//
// Apply expects a validated op and panics on an unknown Kind.
func Apply(s Snapshot, op Op) (Snapshot, bool) {
	switch op.Kind {
	case KindSet:
		return s.With(op.Key, op.Value), true
	case KindGet:
		want := Absent()
		if v, ok := s.Lookup(op.Key); ok {
			want = Val(v)
		}
		return s, op.Return == want
	default:
		panic(errors.AssertionFailedf("apply: unknown operation kind %d", op.Kind))
	}
}
