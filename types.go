// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lincheck

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Kind is the operation kind of a history entry.
//
// Kind is a closed enumeration. The zero value is not a valid kind, so an
// Op built without setting Kind is rejected by [History.Validate].
type Kind uint8

const (
	// KindGet reads the value associated with a key.
	KindGet Kind = iota + 1
	// KindSet associates a value with a key.
	KindSet
)

// String returns "get" or "set".
func (k Kind) String() string {
	switch k {
	case KindGet:
		return "get"
	case KindSet:
		return "set"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind parses "get" or "set".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "get", "GET", "Get":
		return KindGet, nil
	case "set", "SET", "Set", "put", "PUT", "Put":
		return KindSet, nil
	}
	return 0, errors.Newf("unknown operation kind %q", s)
}

type retShape uint8

const (
	retAbsent retShape = iota
	retAck
	retValue
)

// Ret is the value an operation returned to its caller.
//
// A Ret takes one of three shapes:
//
//	Absent()  - nothing was returned; for Get, the key was unset
//	Ack()     - the acknowledgement marker returned by Set
//	Val(v)    - a concrete value returned by Get
//
// Ret is comparable with ==.
type Ret struct {
	shape retShape
	val   string
}

// Absent returns the "no value" marker.
func Absent() Ret { return Ret{} }

// Ack returns the Set acknowledgement marker.
func Ack() Ret { return Ret{shape: retAck} }

// Val returns a Ret carrying v.
func Val(v string) Ret { return Ret{shape: retValue, val: v} }

// IsAbsent reports whether r is the absent marker.
func (r Ret) IsAbsent() bool { return r.shape == retAbsent }

// IsAck reports whether r is the acknowledgement marker.
func (r Ret) IsAck() bool { return r.shape == retAck }

// Value returns the carried value and whether r carries one.
func (r Ret) Value() (string, bool) {
	return r.val, r.shape == retValue
}

// String renders r as None, {ok} or Some(v).
func (r Ret) String() string {
	switch r.shape {
	case retAck:
		return "{ok}"
	case retValue:
		return "Some(" + r.val + ")"
	default:
		return "None"
	}
}

// Op is one completed operation of a history.
//
// Op is immutable once recorded. ID and Thread are informational only: the
// checker never uses them to decide linearizability. Start and End are
// monotonic instants (nanoseconds in the harness) with Start <= End.
type Op struct {
	ID     int64
	Thread int64
	Kind   Kind
	Key    string
	Value  string // written value, Set only
	Return Ret
	Start  int64
	End    int64
}

// Get returns a Get operation on key that observed ret during [start, end].
func Get(key string, ret Ret, start, end int64) Op {
	return Op{Kind: KindGet, Key: key, Return: ret, Start: start, End: end}
}

// Set returns an acknowledged Set of key to value during [start, end].
func Set(key, value string, start, end int64) Op {
	return Op{Kind: KindSet, Key: key, Value: value, Return: Ack(), Start: start, End: end}
}

// String renders op in the layout used by history dumps:
//
//	Op(id=0, thr=1, set(A,1) -> {ok}, [0,30])
func (op Op) String() string {
	arg := "None"
	if op.Kind == KindSet {
		arg = op.Value
	}
	return fmt.Sprintf("Op(id=%d, thr=%d, %s(%s,%s) -> %s, [%d,%d])",
		op.ID, op.Thread, op.Kind, op.Key, arg, op.Return, op.Start, op.End)
}

// History is the recorded sequence of operations of one execution.
//
// The order of entries is display-only. The only order with meaning is
// the one derived from Start and End.
type History []Op

// Validate reports whether h is well formed.
//
// A malformed history yields an error marked with [ErrMalformedHistory]:
//   - unknown Kind
//   - Start after End
//   - Set whose return is a concrete value (neither Ack nor Absent)
//   - Get whose return is the acknowledgement marker
func (h History) Validate() error {
	for i := range h {
		if err := validateOp(&h[i]); err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
	}
	return nil
}

func validateOp(op *Op) error {
	if op.Start > op.End {
		return malformedf("%s: start %d after end %d", op, op.Start, op.End)
	}
	switch op.Kind {
	case KindGet:
		if op.Return.IsAck() {
			return malformedf("%s: get returned an acknowledgement", op)
		}
	case KindSet:
		if _, ok := op.Return.Value(); ok {
			return malformedf("%s: set returned %s, want {ok} or None", op, op.Return)
		}
	default:
		return malformedf("%s: unknown operation kind", op)
	}
	return nil
}

// Clone returns a copy of h that shares no storage with it.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}
