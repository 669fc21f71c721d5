// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lincheck

// Replay verifies that witness is a linearization of h starting from
// initial.
//
// The witness must be a permutation of h's entries, must not place an
// entry before one that finished strictly earlier in real time, and must
// reproduce every recorded return when run through [Apply] in order.
// Failures are marked [ErrWitnessMismatch]; a malformed h or witness
// yields [ErrMalformedHistory].
func Replay(h, witness History, initial Snapshot) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if err := witness.Validate(); err != nil {
		return err
	}
	if len(witness) != len(h) {
		return mismatchf("witness has %d entries, history has %d", len(witness), len(h))
	}

	counts := make(map[Op]int, len(h))
	for _, op := range h {
		counts[op]++
	}
	for _, op := range witness {
		if counts[op] == 0 {
			return mismatchf("%s is not an entry of the history", op)
		}
		counts[op]--
	}

	for q := range witness {
		for p := range q {
			if witness[q].End < witness[p].Start {
				return mismatchf("%s placed after %s, which started after it ended", witness[q], witness[p])
			}
		}
	}

	state := initial
	for pos, op := range witness {
		next, ok := Apply(state, op)
		if !ok {
			got := Absent()
			if v, present := state.Lookup(op.Key); present {
				got = Val(v)
			}
			return mismatchf("position %d: %s observed %s, sequential map returns %s", pos, op, op.Return, got)
		}
		state = next
	}
	return nil
}
