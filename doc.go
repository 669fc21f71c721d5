// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lincheck checks recorded histories of a concurrent key-value map
// for linearizability.
//
// A history is linearizable when its operations can be arranged in one
// sequential order that respects real-time order (an operation that ended
// before another started comes first) and under which a plain sequential
// map returns exactly what every operation recorded. The package is a
// correctness oracle for map implementations under test; it is not a map.
//
// # Quick Start
//
//	h := lincheck.History{
//	    lincheck.Set("A", "1", 0, 30),
//	    lincheck.Get("A", lincheck.Val("1"), 10, 20),
//	    lincheck.Get("A", lincheck.Val("1"), 40, 50),
//	}
//
//	res, err := lincheck.Check(h)
//	if err != nil {
//	    // malformed history
//	}
//	if res.Ok() {
//	    for _, op := range res.Witness {
//	        fmt.Println(op)
//	    }
//	}
//
// # Model
//
// Two operation kinds exist:
//
//	Get(key) -> Val(v) | Absent()   reads key; Absent when key was never set
//	Set(key, v) -> Ack() | Absent() writes key; the return is not informative
//
// Each operation carries monotonic Start and End instants. Operation A
// precedes B iff A.End < B.Start; equal instants are treated as overlap.
//
// # Algorithm
//
// The checker performs a depth-first search over orders of the history:
//
//  1. Precedence sets are computed once ([Precedence], O(n²)).
//  2. At each step, the candidates are the unplaced operations whose
//     predecessors are all placed, tried by ascending End.
//  3. Each candidate is replayed through the sequential map ([Apply]);
//     a mismatching return prunes the branch.
//  4. A configuration (placed set and map state) that failed once is
//     memoized and never explored again.
//
// The first complete order is returned as the witness. Worst-case cost is
// exponential in the width of overlapping regions, not in history length:
// a fully sequential history has a single candidate per step.
//
// # Configuration
//
// The [Checker] builder configures the initial map state, a search budget
// and per-key partitioning:
//
//	res, err := lincheck.New().
//	    Initial(lincheck.NewSnapshot(map[string]string{"A": "0"})).
//	    MaxSteps(1 << 22).
//	    Timeout(10 * time.Second).
//	    Partition().
//	    Check(h)
//
// Partition checks each key on its own and merges the per-key orders into
// one witness. Linearizability is local, so the outcome never changes.
//
// # Outcomes and Errors
//
//	Linearizable     - Result.Witness holds one linearization
//	NotLinearizable  - exhaustive search found none; a definite negative
//	Inconclusive     - the budget or context ran out first
//
// Malformed input is an error, never a verdict:
//
//	lincheck.IsMalformed(err)  // unknown kind, Start > End,
//	                           // Set returning a value, Get returning {ok}
//
// [Replay] re-runs any witness against its history and reports
// [ErrWitnessMismatch] when it does not explain it.
//
// # Thread Safety
//
// A check is synchronous and keeps its search state local to the call.
// Independent histories may be checked in parallel with the same [Checker].
// Histories are never modified.
//
// # Related Packages
//
//   - histfmt: reads and writes histories in the line format emitted by
//     external implementations under test
//   - workload: generates PUT/GET directive streams
//   - stress: drives a map implementation concurrently and records a History
//
// # Dependencies
//
// This package uses [github.com/bits-and-blooms/bitset] for placed and
// precedence sets, [github.com/google/btree] for copy-on-write map
// snapshots, [github.com/cespare/xxhash/v2] for memo fingerprints, and
// [github.com/cockroachdb/errors] for error marking.
package lincheck
