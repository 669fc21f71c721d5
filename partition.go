// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lincheck

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
)

// partitionByKey groups the entry indices of h by key.
// Groups are ordered by key; indices within a group keep history order.
func partitionByKey(h History) [][]int {
	byKey := make(map[string][]int)
	for i := range h {
		byKey[h[i].Key] = append(byKey[h[i].Key], i)
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([][]int, len(keys))
	for p, k := range keys {
		parts[p] = byKey[k]
	}
	return parts
}

// checkPartitioned checks each key's sub-history on its own and merges the
// per-key witnesses into a global order.
func checkPartitioned(h History, initial Snapshot, b *budget) (Result, error) {
	var res Result
	// next[i] is the entry placed right after i on the same key, or -1.
	next := make([]int, len(h))
	hasPrev := make([]bool, len(h))
	for i := range next {
		next[i] = -1
	}
	for _, part := range partitionByKey(h) {
		sub := make(History, len(part))
		for k, i := range part {
			sub[k] = h[i]
		}
		s := newSearch(sub, b)
		found := s.run(initial)
		res.MemoHits += s.memoHits
		if !found {
			if b.halted {
				res.Outcome = Inconclusive
			} else {
				res.Outcome = NotLinearizable
			}
			return res, nil
		}
		for pos := 1; pos < len(s.witness); pos++ {
			prev, cur := part[s.witness[pos-1]], part[s.witness[pos]]
			next[prev] = cur
			hasPrev[cur] = true
		}
	}

	order, err := mergeOrders(h, next, hasPrev)
	if err != nil {
		return Result{}, err
	}
	res.Outcome = Linearizable
	res.Witness = make(History, len(order))
	for pos, i := range order {
		res.Witness[pos] = h[i]
	}
	return res, nil
}

// mergeOrders topologically sorts the entries of h under the union of the
// per-key orders (next) and real-time precedence. Ready entries are taken
// by ascending end instant, matching the order the search explores.
//
// Per-key linearizations of a history always combine with its real-time
// order into an acyclic relation; a cycle here is a bug.
func mergeOrders(h History, next []int, hasPrev []bool) ([]int, error) {
	n := len(h)
	before := Precedence(h)
	pending := make([]uint, n)
	after := make([][]int, n)
	for j := range n {
		pending[j] = before[j].Count()
		for i, ok := before[j].NextSet(0); ok; i, ok = before[j].NextSet(i + 1) {
			after[i] = append(after[i], j)
		}
		if hasPrev[j] {
			pending[j]++
		}
	}

	ready := btree.NewG(8, func(a, b int) bool {
		if h[a].End != h[b].End {
			return h[a].End < h[b].End
		}
		if h[a].Start != h[b].Start {
			return h[a].Start < h[b].Start
		}
		return a < b
	})
	for i := range n {
		if pending[i] == 0 {
			ready.ReplaceOrInsert(i)
		}
	}

	order := make([]int, 0, n)
	release := func(j int) {
		pending[j]--
		if pending[j] == 0 {
			ready.ReplaceOrInsert(j)
		}
	}
	for ready.Len() > 0 {
		i, _ := ready.DeleteMin()
		order = append(order, i)
		for _, j := range after[i] {
			release(j)
		}
		if next[i] >= 0 {
			release(next[i])
		}
	}
	if len(order) != n {
		return nil, errors.AssertionFailedf("merge: cycle among %d of %d entries", n-len(order), n)
	}
	return order, nil
}
