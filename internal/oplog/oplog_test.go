// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package oplog_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/lincheck"
	"code.hybscloud.com/lincheck/internal/oplog"
)

// =============================================================================
// Basic Operations
// =============================================================================

func TestNewPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New(1) did not panic")
		}
	}()
	oplog.New(1)
}

func TestCapRoundsUp(t *testing.T) {
	for capacity, want := range map[int]int{2: 2, 3: 4, 4: 4, 1000: 1024} {
		if got := oplog.New(capacity).Cap(); got != want {
			t.Fatalf("New(%d).Cap(): got %d, want %d", capacity, got, want)
		}
	}
}

func TestAppendNextFIFO(t *testing.T) {
	b := oplog.New(4)

	if _, err := b.Next(); !oplog.IsWouldBlock(err) {
		t.Fatalf("Next on empty: got %v, want ErrWouldBlock", err)
	}

	for round := range 3 {
		for i := range 4 {
			op := lincheck.Set("A", "v", int64(i), int64(i+1))
			op.Thread = int64(round)
			op.ID = -1
			if err := b.Append(&op); err != nil {
				t.Fatalf("round %d: Append(%d): %v", round, i, err)
			}
			if op.ID != -1 {
				t.Fatal("Append modified its argument")
			}
		}
		extra := lincheck.Get("A", lincheck.Absent(), 0, 0)
		if err := b.Append(&extra); !oplog.IsWouldBlock(err) {
			t.Fatalf("Append on full: got %v, want ErrWouldBlock", err)
		}
		for i := range 4 {
			op, err := b.Next()
			if err != nil {
				t.Fatalf("round %d: Next(%d): %v", round, i, err)
			}
			if want := int64(round*4 + i); op.ID != want {
				t.Fatalf("ID: got %d, want %d", op.ID, want)
			}
			if op.Start != int64(i) || op.Thread != int64(round) {
				t.Fatalf("round %d: got %v", round, op)
			}
		}
		if _, err := b.Next(); !oplog.IsWouldBlock(err) {
			t.Fatalf("Next on drained: got %v", err)
		}
	}
}

func TestClose(t *testing.T) {
	b := oplog.New(4)
	op := lincheck.Set("A", "1", 0, 1)
	if err := b.Append(&op); err != nil {
		t.Fatal(err)
	}
	b.Close()

	if err := b.Append(&op); err != oplog.ErrClosed {
		t.Fatalf("Append after Close: got %v, want ErrClosed", err)
	}
	if _, err := b.Next(); err != nil {
		t.Fatalf("Next after Close with pending record: %v", err)
	}
	if _, err := b.Next(); err != oplog.ErrClosed {
		t.Fatalf("Next on closed and drained: got %v, want ErrClosed", err)
	}
}

// =============================================================================
// Concurrent Producers
// =============================================================================

// TestConcurrentAppend: every record of every producer arrives once, and
// each producer's records arrive in its program order.
func TestConcurrentAppend(t *testing.T) {
	if lincheck.RaceEnabled {
		t.Skip("skip: lock-free buffer ordering is invisible to the race detector")
	}
	const (
		producers = 8
		perThread = 2000
	)
	if testing.Short() {
		t.Skip("skip: short mode")
	}
	b := oplog.New(64)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backoff := iox.Backoff{}
			for i := range perThread {
				op := lincheck.Set("K", "v", int64(i), int64(i))
				op.Thread = int64(p)
				for {
					err := b.Append(&op)
					if err == nil {
						break
					}
					if !oplog.IsWouldBlock(err) {
						t.Errorf("Append: %v", err)
						return
					}
					backoff.Wait()
				}
				backoff.Reset()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		b.Close()
		close(done)
	}()

	next := make([]int64, producers)
	seen := make(map[int64]bool, producers*perThread)
	backoff := iox.Backoff{}
	for {
		op, err := b.Next()
		if err == oplog.ErrClosed {
			break
		}
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if seen[op.ID] {
			t.Fatalf("duplicate ticket %d", op.ID)
		}
		seen[op.ID] = true
		if op.Start != next[op.Thread] {
			t.Fatalf("producer %d: got record %d, want %d", op.Thread, op.Start, next[op.Thread])
		}
		next[op.Thread]++
	}
	<-done

	if len(seen) != producers*perThread {
		t.Fatalf("received %d records, want %d", len(seen), producers*perThread)
	}
	for id := range int64(producers * perThread) {
		if !seen[id] {
			t.Fatalf("ticket %d missing", id)
		}
	}
}
