// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lincheck

import (
	"log/slog"
	"time"
)

// Options configures a linearizability check.
type Options struct {
	// Initial map state (zero value: empty map)
	initial Snapshot

	// Search budget; zero disables the limit
	maxSteps int64
	timeout  time.Duration

	// Check each key independently, then merge witnesses
	partition bool

	logger *slog.Logger
}

// Checker checks histories with fluent configuration.
//
// Configure a Checker once and use it from any number of goroutines: Check
// keeps all search state local to the call. The configuration methods
// themselves are not safe for concurrent use.
//
// Example:
//
//	// Default: empty initial map, no budget
//	res, err := lincheck.New().Check(h)
//
//	// Bounded search over a pre-populated map
//	res, err := lincheck.New().
//	    Initial(lincheck.NewSnapshot(map[string]string{"x": "0"})).
//	    MaxSteps(1 << 20).
//	    Timeout(5 * time.Second).
//	    Check(h)
type Checker struct {
	opts Options
}

// New creates a Checker with the empty initial map and no search budget.
func New() *Checker {
	return &Checker{opts: Options{logger: slog.New(slog.DiscardHandler)}}
}

// Initial sets the map state the history starts from.
func (c *Checker) Initial(s Snapshot) *Checker {
	c.opts.initial = s
	return c
}

// MaxSteps bounds the number of oracle evaluations.
// A search that exceeds the bound reports [Inconclusive].
// Zero or negative removes the bound.
func (c *Checker) MaxSteps(n int64) *Checker {
	c.opts.maxSteps = max(n, 0)
	return c
}

// Timeout bounds the wall-clock duration of one check.
// A search that exceeds the bound reports [Inconclusive].
// Zero or negative removes the bound.
func (c *Checker) Timeout(d time.Duration) *Checker {
	c.opts.timeout = max(d, 0)
	return c
}

// Partition checks every key independently and merges the per-key
// linearizations into one witness.
//
// Linearizability is local: a map history is linearizable iff each per-key
// sub-history is. Partitioning turns one search whose width is the total
// concurrency into one search per key, which is usually far cheaper. The
// outcome is the same as without partitioning; the witness may differ.
func (c *Checker) Partition() *Checker {
	c.opts.partition = true
	return c
}

// Logger sets the logger receiving per-check search statistics at debug
// level. A nil logger discards them.
func (c *Checker) Logger(l *slog.Logger) *Checker {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	c.opts.logger = l
	return c
}
