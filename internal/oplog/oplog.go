// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package oplog provides the lock-free buffer that carries completed
// operations from harness workers to the history collector.
//
// Many workers append, one collector reads. Appending never takes a lock,
// so recording an operation adds as little as possible to the interval
// being measured around the map call.
package oplog

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
	"github.com/cockroachdb/errors"

	"code.hybscloud.com/lincheck"
)

// ErrWouldBlock indicates the buffer is full (Append) or empty (Next).
// It is a control flow signal sourced from iox; retry with backoff.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrClosed is returned by Append after Close, and by Next once the buffer
// is closed and fully drained.
var ErrClosed = errors.New("oplog: closed")

// IsWouldBlock reports whether err indicates the operation would block.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// Buffer is an FAA-based multi-producer single-consumer bounded buffer of
// operation records.
//
// Producers claim tickets with fetch-and-add over 2n physical slots for
// capacity n. Each slot carries the round (cycle) it expects next, so a
// producer writes only into a slot the consumer has released. The ticket
// doubles as the arrival sequence number stamped into Op.ID.
type Buffer struct {
	_        pad
	head     atomix.Uint64 // Consumer index (single consumer writes)
	_        pad
	tail     atomix.Uint64 // Producer tickets (FAA)
	_        pad
	closed   atomix.Bool
	_        pad
	slots    []slot
	capacity uint64 // n
	size     uint64 // 2n
	mask     uint64 // 2n - 1
}

type slot struct {
	cycle atomix.Uint64
	op    lincheck.Op
}

// New creates a Buffer holding up to capacity records.
// Capacity rounds up to the next power of 2; panics if capacity < 2.
func New(capacity int) *Buffer {
	if capacity < 2 {
		panic("oplog: capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	size := n * 2
	b := &Buffer{
		slots:    make([]slot, size),
		capacity: n,
		size:     size,
		mask:     size - 1,
	}
	for i := uint64(0); i < size; i++ {
		b.slots[i].cycle.StoreRelaxed(i / n)
	}
	return b
}

// Append copies op into the buffer and stamps the copy's ID with its
// arrival ticket (multiple producers safe).
// Returns ErrWouldBlock if the buffer is full, ErrClosed after Close.
func (b *Buffer) Append(op *lincheck.Op) error {
	if b.closed.LoadAcquire() {
		return ErrClosed
	}
	if b.tail.LoadAcquire() >= b.head.LoadAcquire()+b.capacity {
		return ErrWouldBlock
	}

	ticket := b.tail.AddAcqRel(1) - 1
	s := &b.slots[ticket&b.mask]
	want := ticket / b.capacity

	// A claimed ticket is always filled: wait for the consumer to release
	// the slot's previous round instead of abandoning the ticket.
	sw := spin.Wait{}
	for s.cycle.LoadAcquire() != want {
		sw.Once()
	}
	s.op = *op
	s.op.ID = int64(ticket)
	s.cycle.StoreRelease(want + 1)
	return nil
}

// Next removes and returns the oldest record (single consumer only).
// Returns ErrWouldBlock if the buffer is empty, ErrClosed if it is empty
// and closed.
func (b *Buffer) Next() (lincheck.Op, error) {
	head := b.head.LoadRelaxed()
	s := &b.slots[head&b.mask]

	if s.cycle.LoadAcquire() != head/b.capacity+1 {
		if b.closed.LoadAcquire() && b.tail.LoadAcquire() == head {
			return lincheck.Op{}, ErrClosed
		}
		return lincheck.Op{}, ErrWouldBlock
	}

	op := s.op
	s.op = lincheck.Op{}
	s.cycle.StoreRelease((head + b.size) / b.capacity)
	b.head.StoreRelease(head + 1)
	return op, nil
}

// Close signals that no more appends will occur.
// The caller ensures every producer has returned from Append first;
// records already appended stay readable through Next.
func (b *Buffer) Close() {
	b.closed.StoreRelease(true)
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return int(b.capacity)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
