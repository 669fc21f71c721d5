// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package histfmt reads and writes histories in the line format emitted by
// implementations under test running out of process.
//
// Each line holds one operation:
//
//	Op(id=0, thr=1, set(A,1) -> {ok}, [100,130])
//	Op(id=1, thr=2, get(A,None) -> Some(1), [110,120])
//	Op(id=2, thr=3, get(B,None) -> None, [140,150])
//
// The token None stands for an absent value, both as the written value of
// a get and as a return. {ok} (or bare ok) is the set acknowledgement.
// A return that is neither None, {ok}, ok nor Some(v) is read as a plain
// value. Blank lines and lines starting with # are skipped.
package histfmt

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"code.hybscloud.com/lincheck"
)

// ErrSyntax marks a line that does not follow the history format.
var ErrSyntax = errors.New("history syntax error")

const noneToken = "None"

var lineRE = regexp.MustCompile(
	`^Op\(id=(-?\d+),\s*thr=(-?\d+),\s*(\w+)\(([^,()]*),([^()]*)\)\s*->\s*(.*),\s*\[\s*(-?\d+)\s*,\s*(-?\d+)\s*\]\)$`)

// ParseLine parses one operation line.
func ParseLine(line string) (lincheck.Op, error) {
	m := lineRE.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return lincheck.Op{}, syntaxf("malformed operation %q", line)
	}
	var op lincheck.Op
	var err error
	if op.ID, err = strconv.ParseInt(m[1], 10, 64); err != nil {
		return lincheck.Op{}, syntaxf("id: %v", err)
	}
	if op.Thread, err = strconv.ParseInt(m[2], 10, 64); err != nil {
		return lincheck.Op{}, syntaxf("thread: %v", err)
	}
	if op.Kind, err = lincheck.ParseKind(m[3]); err != nil {
		return lincheck.Op{}, errors.Mark(err, ErrSyntax)
	}
	op.Key = m[4]
	switch arg := m[5]; op.Kind {
	case lincheck.KindSet:
		if arg == noneToken {
			return lincheck.Op{}, syntaxf("set of %q has no written value", op.Key)
		}
		op.Value = arg
	case lincheck.KindGet:
		if arg != noneToken {
			return lincheck.Op{}, syntaxf("get of %q carries argument %q, want None", op.Key, arg)
		}
	}
	op.Return = parseRet(m[6])
	if op.Start, err = strconv.ParseInt(m[7], 10, 64); err != nil {
		return lincheck.Op{}, syntaxf("start: %v", err)
	}
	if op.End, err = strconv.ParseInt(m[8], 10, 64); err != nil {
		return lincheck.Op{}, syntaxf("end: %v", err)
	}
	return op, nil
}

func parseRet(s string) lincheck.Ret {
	s = strings.TrimSpace(s)
	switch {
	case s == noneToken:
		return lincheck.Absent()
	case s == "{ok}" || s == "ok":
		return lincheck.Ack()
	case strings.HasPrefix(s, "Some(") && strings.HasSuffix(s, ")"):
		return lincheck.Val(s[len("Some(") : len(s)-1])
	default:
		return lincheck.Val(s)
	}
}

// FormatLine renders op in the history line format.
func FormatLine(op lincheck.Op) (string, error) {
	if strings.ContainsAny(op.Key, ",()\n") {
		return "", errors.Newf("key %q cannot be represented", op.Key)
	}
	if op.Kind == lincheck.KindSet && (op.Value == noneToken || strings.ContainsAny(op.Value, "()\n")) {
		return "", errors.Newf("value %q cannot be represented", op.Value)
	}
	return op.String(), nil
}

// Decoder reads operations from an input stream.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Decoder{sc: sc}
}

// Decode returns the next operation, or io.EOF at the end of input.
// Syntax errors carry the line number and are marked [ErrSyntax].
func (d *Decoder) Decode() (lincheck.Op, error) {
	for d.sc.Scan() {
		d.line++
		text := strings.TrimSpace(d.sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		op, err := ParseLine(text)
		if err != nil {
			return lincheck.Op{}, errors.Wrapf(err, "line %d", d.line)
		}
		return op, nil
	}
	if err := d.sc.Err(); err != nil {
		return lincheck.Op{}, errors.Wrap(err, "reading history")
	}
	return lincheck.Op{}, io.EOF
}

// ReadHistory decodes every operation of r.
func ReadHistory(r io.Reader) (lincheck.History, error) {
	d := NewDecoder(r)
	var h lincheck.History
	for {
		op, err := d.Decode()
		if err == io.EOF {
			return h, nil
		}
		if err != nil {
			return nil, err
		}
		h = append(h, op)
	}
}

// Encoder writes operations to an output stream.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns an Encoder writing to w. Call Flush when done.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes op as one line.
func (e *Encoder) Encode(op lincheck.Op) error {
	line, err := FormatLine(op)
	if err != nil {
		return err
	}
	if _, err := e.w.WriteString(line); err != nil {
		return errors.Wrap(err, "writing history")
	}
	return errors.Wrap(e.w.WriteByte('\n'), "writing history")
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return errors.Wrap(e.w.Flush(), "writing history")
}

// WriteHistory encodes every operation of h to w.
func WriteHistory(w io.Writer, h lincheck.History) error {
	e := NewEncoder(w)
	for _, op := range h {
		if err := e.Encode(op); err != nil {
			return err
		}
	}
	return e.Flush()
}

func syntaxf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrSyntax)
}
