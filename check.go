// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lincheck

import (
	"context"
	"encoding/binary"
	"slices"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

// Outcome is the verdict of a check.
type Outcome uint8

const (
	// Linearizable: a witness order was found.
	Linearizable Outcome = iota + 1
	// NotLinearizable: the search was exhaustive and found no order.
	NotLinearizable
	// Inconclusive: the search budget ran out before a verdict.
	Inconclusive
)

func (o Outcome) String() string {
	switch o {
	case Linearizable:
		return "linearizable"
	case NotLinearizable:
		return "not linearizable"
	case Inconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// Result reports the outcome of a check.
type Result struct {
	Outcome Outcome

	// Witness is one linearization of the history, set only when Outcome
	// is Linearizable. It holds copies of the history's entries.
	Witness History

	// Steps counts oracle evaluations; MemoHits counts dead-end
	// configurations that were skipped without re-exploration.
	Steps    int64
	MemoHits int64
	Elapsed  time.Duration
}

// Ok reports whether the history was found linearizable.
func (r Result) Ok() bool { return r.Outcome == Linearizable }

// Check checks h with the default configuration.
// See [Checker.Check].
func Check(h History) (Result, error) {
	return New().Check(h)
}

// Check reports whether h is linearizable with respect to a sequential map.
//
// A malformed history returns an error marked [ErrMalformedHistory] and no
// outcome. Otherwise the error is nil and the Result carries one of
// Linearizable (with a witness), NotLinearizable, or Inconclusive when the
// configured budget ran out.
//
// The search is deterministic: candidates are tried by ascending end
// instant, so identical inputs yield identical witnesses.
func (c *Checker) Check(h History) (Result, error) {
	return c.CheckContext(context.Background(), h)
}

// CheckContext is like Check but also stops, reporting Inconclusive, when
// ctx is done. Cancellation is polled, not preemptive.
func (c *Checker) CheckContext(ctx context.Context, h History) (Result, error) {
	if err := h.Validate(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	b := &budget{ctx: ctx, maxSteps: c.opts.maxSteps}
	if c.opts.timeout > 0 {
		b.deadline = start.Add(c.opts.timeout)
	}

	var res Result
	var err error
	if c.opts.partition {
		res, err = checkPartitioned(h, c.opts.initial, b)
	} else {
		res = checkSingle(h, c.opts.initial, b)
	}
	if err != nil {
		return Result{}, err
	}
	res.Steps = b.steps
	res.Elapsed = time.Since(start)

	c.opts.logger.Debug("linearizability check",
		"ops", len(h),
		"outcome", res.Outcome.String(),
		"steps", res.Steps,
		"memo_hits", res.MemoHits,
		"partitioned", c.opts.partition,
		"elapsed", res.Elapsed)
	return res, nil
}

// budget is shared by every search of one check.
type budget struct {
	ctx      context.Context
	deadline time.Time
	maxSteps int64
	steps    int64
	halted   bool
}

const pollMask = 1<<10 - 1

// spend accounts for one oracle evaluation and reports whether the search
// may continue.
func (b *budget) spend() bool {
	if b.halted {
		return false
	}
	b.steps++
	if b.maxSteps > 0 && b.steps > b.maxSteps {
		b.halted = true
		return false
	}
	if b.steps&pollMask == 0 {
		if b.ctx.Err() != nil || (!b.deadline.IsZero() && time.Now().After(b.deadline)) {
			b.halted = true
			return false
		}
	}
	return true
}

// deadEnd is a configuration from which no linearization exists.
type deadEnd struct {
	placed *bitset.BitSet
	state  Snapshot
}

// search is the state of one backtracking search. It is owned by a single
// call and discarded on return.
type search struct {
	h      History
	before []*bitset.BitSet
	order  []int // entry indices by ascending End

	placed    *bitset.BitSet
	placedSum uint64   // XOR of tokens of placed entries
	tokens    []uint64 // per-entry hash tokens
	witness   []int

	// Dead-end configurations bucketed by placed-set and state fingerprint.
	// The state is part of the key: entries of the same placed set can leave
	// different values behind when concurrent Sets hit the same key.
	memo     map[uint64][]deadEnd
	memoHits int64

	budget *budget
}

func newSearch(h History, b *budget) *search {
	n := len(h)
	s := &search{
		h:       h,
		before:  Precedence(h),
		order:   make([]int, n),
		placed:  bitset.New(uint(n)),
		tokens:  make([]uint64, n),
		witness: make([]int, 0, n),
		memo:    make(map[uint64][]deadEnd),
		budget:  b,
	}
	var buf [8]byte
	for i := range n {
		s.order[i] = i
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		s.tokens[i] = xxhash.Sum64(buf[:])
	}
	slices.SortStableFunc(s.order, func(a, b int) int {
		if c := cmpInt64(h[a].End, h[b].End); c != 0 {
			return c
		}
		return cmpInt64(h[a].Start, h[b].Start)
	})
	return s
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// run extends the current partial order from state. It returns true once
// every entry is placed; the witness stack then holds the order.
func (s *search) run(state Snapshot) bool {
	if len(s.witness) == len(s.h) {
		return true
	}
	key := s.placedSum ^ state.Fingerprint()
	if s.isDead(key, state) {
		s.memoHits++
		return false
	}
	for _, i := range s.order {
		if s.placed.Test(uint(i)) || !s.placed.IsSuperSet(s.before[i]) {
			continue
		}
		if !s.budget.spend() {
			return false
		}
		next, ok := Apply(state, s.h[i])
		if !ok {
			continue
		}
		s.place(i)
		if s.run(next) {
			return true
		}
		s.unplace(i)
		if s.budget.halted {
			return false
		}
	}
	s.memo[key] = append(s.memo[key], deadEnd{placed: s.placed.Clone(), state: state})
	return false
}

func (s *search) isDead(key uint64, state Snapshot) bool {
	for _, d := range s.memo[key] {
		if d.placed.Equal(s.placed) && d.state.Equal(state) {
			return true
		}
	}
	return false
}

func (s *search) place(i int) {
	s.placed.Set(uint(i))
	s.placedSum ^= s.tokens[i]
	s.witness = append(s.witness, i)
}

func (s *search) unplace(i int) {
	s.placed.Clear(uint(i))
	s.placedSum ^= s.tokens[i]
	s.witness = s.witness[:len(s.witness)-1]
}

// checkSingle runs one search over the whole history.
func checkSingle(h History, initial Snapshot, b *budget) Result {
	s := newSearch(h, b)
	found := s.run(initial)
	res := Result{MemoHits: s.memoHits}
	switch {
	case found:
		res.Outcome = Linearizable
		res.Witness = make(History, len(s.witness))
		for pos, i := range s.witness {
			res.Witness[pos] = h[i]
		}
	case b.halted:
		res.Outcome = Inconclusive
	default:
		res.Outcome = NotLinearizable
	}
	return res
}
