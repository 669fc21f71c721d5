// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lincheck

import "github.com/bits-and-blooms/bitset"

// Precedence returns, for every entry j of h, the set of entries that must
// precede j in any linearization: all i with h[i].End < h[j].Start.
//
// The comparison is strict. Entries whose end and start instants are equal
// overlap and are left unordered, since clock resolution makes exact
// equality ambiguous.
//
// The relation is neither transitively reduced nor closed; each pair is
// evaluated from the raw instants. Precedence never fails and runs in
// O(n²) time.
func Precedence(h History) []*bitset.BitSet {
	n := uint(len(h))
	before := make([]*bitset.BitSet, n)
	for j := range h {
		set := bitset.New(n)
		for i := range h {
			if h[i].End < h[j].Start {
				set.Set(uint(i))
			}
		}
		before[j] = set
	}
	return before
}
