// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lincheck_test

import (
	"slices"
	"testing"

	"github.com/cockroachdb/errors"

	"code.hybscloud.com/lincheck"
)

// =============================================================================
// Test Helpers
// =============================================================================

// mustCheck runs c on h and fails the test on error.
func mustCheck(t *testing.T, c *lincheck.Checker, h lincheck.History) lincheck.Result {
	t.Helper()
	res, err := c.Check(h)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	return res
}

// wantOutcome checks h with and without partitioning and verifies both
// agree on want. Witnesses are replayed against h.
func wantOutcome(t *testing.T, h lincheck.History, want lincheck.Outcome) lincheck.Result {
	t.Helper()
	res := mustCheck(t, lincheck.New(), h)
	if res.Outcome != want {
		t.Fatalf("outcome: got %v, want %v", res.Outcome, want)
	}
	part := mustCheck(t, lincheck.New().Partition(), h)
	if part.Outcome != want {
		t.Fatalf("partitioned outcome: got %v, want %v", part.Outcome, want)
	}
	for _, r := range []lincheck.Result{res, part} {
		if r.Ok() {
			if err := lincheck.Replay(h, r.Witness, lincheck.Snapshot{}); err != nil {
				t.Fatalf("Replay: %v", err)
			}
		} else if r.Witness != nil {
			t.Fatalf("witness on %v outcome: %v", r.Outcome, r.Witness)
		}
	}
	return res
}

func withIDs(h lincheck.History) lincheck.History {
	for i := range h {
		h[i].ID = int64(i)
	}
	return h
}

// =============================================================================
// Trivial Histories
// =============================================================================

func TestEmptyHistory(t *testing.T) {
	for _, h := range []lincheck.History{nil, {}} {
		res := wantOutcome(t, h, lincheck.Linearizable)
		if res.Witness == nil || len(res.Witness) != 0 {
			t.Fatalf("witness: got %v, want empty", res.Witness)
		}
	}
}

func TestSingleOperation(t *testing.T) {
	cases := []struct {
		name string
		op   lincheck.Op
		want lincheck.Outcome
	}{
		{"set", lincheck.Set("A", "1", 0, 10), lincheck.Linearizable},
		{"set unacknowledged", lincheck.Op{Kind: lincheck.KindSet, Key: "A", Value: "1", End: 10}, lincheck.Linearizable},
		{"get unset", lincheck.Get("A", lincheck.Absent(), 0, 10), lincheck.Linearizable},
		// A lone read of a value nobody wrote has no legal order.
		{"get phantom", lincheck.Get("A", lincheck.Val("1"), 0, 10), lincheck.NotLinearizable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := wantOutcome(t, lincheck.History{tc.op}, tc.want)
			if res.Ok() && (len(res.Witness) != 1 || res.Witness[0] != tc.op) {
				t.Fatalf("witness: got %v, want [%v]", res.Witness, tc.op)
			}
		})
	}
}

// =============================================================================
// Reference Scenarios
// =============================================================================

// TestOverlappingRead: a read contained in a write's interval may observe it,
// and a later read must.
func TestOverlappingRead(t *testing.T) {
	h := withIDs(lincheck.History{
		lincheck.Set("A", "1", 0, 30),
		lincheck.Get("A", lincheck.Val("1"), 10, 20),
		lincheck.Get("A", lincheck.Val("1"), 40, 50),
	})
	res := wantOutcome(t, h, lincheck.Linearizable)
	want := lincheck.History{h[0], h[1], h[2]}
	if !slices.Equal(res.Witness, want) {
		t.Fatalf("witness:\n got %v\nwant %v", res.Witness, want)
	}
}

// TestStaleRead: two sequential writes force a later read to see the second.
func TestStaleRead(t *testing.T) {
	h := withIDs(lincheck.History{
		lincheck.Set("A", "1", 0, 10),
		lincheck.Set("A", "2", 20, 30),
		lincheck.Get("A", lincheck.Val("1"), 40, 50),
	})
	wantOutcome(t, h, lincheck.NotLinearizable)
}

// TestConcurrentWrites: overlapping writes may take effect in either order.
func TestConcurrentWrites(t *testing.T) {
	cases := []struct {
		name             string
		set1, set2       lincheck.Op
		read             string
		want             lincheck.Outcome
		wantLastWriteVal string
	}{
		{
			name: "second ends first, read second",
			set1: lincheck.Set("A", "1", 0, 20), set2: lincheck.Set("A", "2", 5, 15),
			read: "2", want: lincheck.Linearizable, wantLastWriteVal: "2",
		},
		{
			name: "first ends first, read second",
			set1: lincheck.Set("A", "1", 0, 15), set2: lincheck.Set("A", "2", 5, 20),
			read: "2", want: lincheck.Linearizable, wantLastWriteVal: "2",
		},
		{
			name: "second ends first, read first",
			set1: lincheck.Set("A", "1", 0, 20), set2: lincheck.Set("A", "2", 5, 15),
			read: "1", want: lincheck.Linearizable, wantLastWriteVal: "1",
		},
		{
			name: "read never written",
			set1: lincheck.Set("A", "1", 0, 20), set2: lincheck.Set("A", "2", 5, 15),
			read: "3", want: lincheck.NotLinearizable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := withIDs(lincheck.History{tc.set1, tc.set2, lincheck.Get("A", lincheck.Val(tc.read), 30, 40)})
			res := wantOutcome(t, h, tc.want)
			if !res.Ok() {
				return
			}
			if got := res.Witness[1].Value; got != tc.wantLastWriteVal {
				t.Fatalf("last write: got %q, want %q (witness %v)", got, tc.wantLastWriteVal, res.Witness)
			}
			if res.Witness[2] != h[2] {
				t.Fatalf("read must come last: %v", res.Witness)
			}
		})
	}
}

// TestEqualInstantsOverlap: end == start leaves the pair unordered.
func TestEqualInstantsOverlap(t *testing.T) {
	h := withIDs(lincheck.History{
		lincheck.Get("A", lincheck.Absent(), 10, 20),
		lincheck.Set("A", "1", 0, 10),
	})
	// The read ended after the write started and started when it ended:
	// the read may still go first.
	wantOutcome(t, h, lincheck.Linearizable)

	h[0].Start = 11
	wantOutcome(t, h, lincheck.NotLinearizable)
}

func TestIndependentKeys(t *testing.T) {
	h := withIDs(lincheck.History{
		lincheck.Set("A", "1", 0, 100),
		lincheck.Set("B", "1", 0, 100),
		lincheck.Get("B", lincheck.Val("1"), 10, 20),
		lincheck.Get("A", lincheck.Absent(), 10, 20),
		lincheck.Get("A", lincheck.Val("1"), 30, 40),
		lincheck.Get("B", lincheck.Val("1"), 30, 40),
	})
	wantOutcome(t, h, lincheck.Linearizable)

	h[2].Start = 101
	h[2].End = 110
	h[3].Start = 101
	h[3].End = 110
	// The absent read of A now starts after the write of A finished.
	wantOutcome(t, h, lincheck.NotLinearizable)
}

// =============================================================================
// Fully Sequential Histories
// =============================================================================

// TestSequentialWitnessIsRealTimeOrder: with no overlap, the witness is the
// real-time order, whatever the input order.
func TestSequentialWitnessIsRealTimeOrder(t *testing.T) {
	timeline := lincheck.History{
		lincheck.Get("A", lincheck.Absent(), 0, 1),
		lincheck.Set("A", "1", 2, 3),
		lincheck.Set("B", "x", 4, 5),
		lincheck.Get("A", lincheck.Val("1"), 6, 7),
		lincheck.Set("A", "2", 8, 9),
		lincheck.Get("B", lincheck.Val("x"), 10, 11),
		lincheck.Get("A", lincheck.Val("2"), 12, 13),
	}
	withIDs(timeline)
	shuffled := lincheck.History{timeline[4], timeline[0], timeline[6], timeline[2], timeline[1], timeline[5], timeline[3]}

	for _, c := range []*lincheck.Checker{lincheck.New(), lincheck.New().Partition()} {
		res := mustCheck(t, c, shuffled)
		if !slices.Equal(res.Witness, timeline) {
			t.Fatalf("witness:\n got %v\nwant %v", res.Witness, timeline)
		}
	}

	// A single wrong return in a sequential history is decisive.
	bad := shuffled.Clone()
	bad[2].Return = lincheck.Val("1")
	wantOutcome(t, bad, lincheck.NotLinearizable)
}

// =============================================================================
// Initial State
// =============================================================================

func TestInitialSnapshot(t *testing.T) {
	h := lincheck.History{
		lincheck.Get("A", lincheck.Val("0"), 0, 10),
		lincheck.Set("A", "1", 20, 30),
		lincheck.Get("A", lincheck.Val("1"), 40, 50),
	}
	if res := mustCheck(t, lincheck.New(), h); res.Outcome != lincheck.NotLinearizable {
		t.Fatalf("empty initial state: got %v", res.Outcome)
	}
	initial := lincheck.NewSnapshot(map[string]string{"A": "0", "B": "7"})
	for _, c := range []*lincheck.Checker{lincheck.New(), lincheck.New().Partition()} {
		res := mustCheck(t, c.Initial(initial), h)
		if !res.Ok() {
			t.Fatalf("initial state A=0: got %v", res.Outcome)
		}
		if err := lincheck.Replay(h, res.Witness, initial); err != nil {
			t.Fatalf("Replay: %v", err)
		}
	}
}

// =============================================================================
// Malformed Histories
// =============================================================================

func TestMalformedHistory(t *testing.T) {
	cases := []struct {
		name string
		op   lincheck.Op
	}{
		{"zero kind", lincheck.Op{Key: "A", Start: 0, End: 1}},
		{"unknown kind", lincheck.Op{Kind: lincheck.Kind(9), Key: "A"}},
		{"start after end", lincheck.Set("A", "1", 10, 5)},
		{"set returns value", lincheck.Op{Kind: lincheck.KindSet, Key: "A", Value: "1", Return: lincheck.Val("1")}},
		{"get returns ack", lincheck.Get("A", lincheck.Ack(), 0, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := lincheck.History{lincheck.Set("B", "1", 0, 1), tc.op}
			for _, c := range []*lincheck.Checker{lincheck.New(), lincheck.New().Partition()} {
				res, err := c.Check(h)
				if !lincheck.IsMalformed(err) {
					t.Fatalf("Check: got err %v, want malformed", err)
				}
				if !errors.Is(err, lincheck.ErrMalformedHistory) {
					t.Fatalf("errors.Is(%v, ErrMalformedHistory) = false", err)
				}
				if res.Outcome != 0 {
					t.Fatalf("malformed history got outcome %v", res.Outcome)
				}
			}
		})
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	h := lincheck.History{
		lincheck.Set("A", "1", 0, 0),
		{Kind: lincheck.KindSet, Key: "A", Value: "2", Return: lincheck.Absent(), Start: 1, End: 2},
		lincheck.Get("A", lincheck.Val("2"), 3, 3),
		lincheck.Get("B", lincheck.Absent(), 3, 4),
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

// =============================================================================
// Values and Rendering
// =============================================================================

func TestRet(t *testing.T) {
	if !lincheck.Absent().IsAbsent() || lincheck.Absent().IsAck() {
		t.Fatal("Absent shape")
	}
	if !lincheck.Ack().IsAck() || lincheck.Ack().IsAbsent() {
		t.Fatal("Ack shape")
	}
	if v, ok := lincheck.Val("").Value(); !ok || v != "" {
		t.Fatalf("Val(\"\").Value() = %q, %v", v, ok)
	}
	if lincheck.Val("") == lincheck.Absent() {
		t.Fatal("empty value must differ from absent")
	}
	for r, want := range map[lincheck.Ret]string{
		lincheck.Absent(): "None",
		lincheck.Ack():    "{ok}",
		lincheck.Val("7"): "Some(7)",
	} {
		if got := r.String(); got != want {
			t.Fatalf("String: got %q, want %q", got, want)
		}
	}
}

func TestOpString(t *testing.T) {
	op := lincheck.Set("A", "1", 0, 30)
	op.ID, op.Thread = 3, 1
	if got, want := op.String(), "Op(id=3, thr=1, set(A,1) -> {ok}, [0,30])"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	op = lincheck.Get("A", lincheck.Absent(), 5, 6)
	if got, want := op.String(), "Op(id=0, thr=0, get(A,None) -> None, [5,6])"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseKind(t *testing.T) {
	for s, want := range map[string]lincheck.Kind{"get": lincheck.KindGet, "set": lincheck.KindSet, "PUT": lincheck.KindSet} {
		got, err := lincheck.ParseKind(s)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := lincheck.ParseKind("append"); err == nil {
		t.Fatal("ParseKind(append) succeeded")
	}
}
