// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stress drives a map implementation from many goroutines and
// records the resulting history for linearizability checking.
//
// Every call is bracketed by monotonic instants taken from one shared
// clock. Completed operations travel to a single collector through a
// lock-free buffer, so recording adds little to the measured interval.
// The history is handed over only after every worker has returned; it is
// sorted by start instant and renumbered, and never touched again.
//
// The harness synchronizes nothing around the map itself: concurrent calls
// reach the implementation under test exactly as issued.
package stress

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/lincheck"
	"code.hybscloud.com/lincheck/internal/oplog"
	"code.hybscloud.com/lincheck/workload"
)

// Map is the map implementation under test.
type Map interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// LockedMap is a map guarded by a single mutex. It is the reference
// implementation: its histories are always linearizable.
type LockedMap struct {
	mu sync.Mutex
	m  map[string]string
}

// NewLockedMap returns an empty LockedMap.
func NewLockedMap() *LockedMap {
	return &LockedMap{m: make(map[string]string)}
}

func (l *LockedMap) Get(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.m[key]
	return v, ok
}

func (l *LockedMap) Set(key, value string) {
	l.mu.Lock()
	l.m[key] = value
	l.mu.Unlock()
}

// Config configures a random stress run.
type Config struct {
	Workers      int      `yaml:"workers"`
	OpsPerWorker int      `yaml:"ops_per_worker"`
	Keys         []string `yaml:"keys"`

	// Set values are drawn uniformly from [0, MaxValue].
	MaxValue int `yaml:"max_value"`
	// PutRatio is the probability that an operation is a Set.
	PutRatio float64 `yaml:"put_ratio"`

	// Jitter is the maximum random pause between two operations of a
	// worker; zero disables pauses.
	Jitter time.Duration `yaml:"jitter"`

	// Seed makes the operation mix reproducible; zero picks a random seed.
	// Interleavings are never reproducible.
	Seed uint64 `yaml:"seed"`

	// BufferSize is the capacity of the worker-to-collector buffer.
	BufferSize int `yaml:"buffer_size"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a small run over three hot keys.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		OpsPerWorker: 20,
		Keys:         []string{"x", "y", "z"},
		MaxValue:     10,
		PutRatio:     0.5,
		Jitter:       100 * time.Microsecond,
		BufferSize:   1024,
	}
}

// Validate reports whether c describes a runnable workload.
func (c Config) Validate() error {
	switch {
	case c.Workers < 1:
		return errors.Newf("workers %d, want at least 1", c.Workers)
	case c.OpsPerWorker < 0:
		return errors.Newf("ops per worker %d is negative", c.OpsPerWorker)
	case len(c.Keys) == 0:
		return errors.New("no keys")
	case c.MaxValue < 0:
		return errors.Newf("max value %d is negative", c.MaxValue)
	case c.PutRatio < 0 || c.PutRatio > 1:
		return errors.Newf("put ratio %v outside [0, 1]", c.PutRatio)
	case c.Jitter < 0:
		return errors.Newf("jitter %v is negative", c.Jitter)
	case c.BufferSize < 2:
		return errors.Newf("buffer size %d, want at least 2", c.BufferSize)
	}
	return nil
}

// Report is the outcome of a stress run.
type Report struct {
	RunID   string
	History lincheck.History
	Elapsed time.Duration

	// Backpressure counts appends that found the buffer full.
	Backpressure int64
}

// Run drives m with cfg.Workers goroutines issuing random operations and
// returns the recorded history.
func Run(ctx context.Context, m Map, cfg Config) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	plans := make([][]workload.Directive, cfg.Workers)
	for w := range plans {
		rng := rand.New(rand.NewPCG(seed, uint64(w)))
		plan := make([]workload.Directive, cfg.OpsPerWorker)
		for i := range plan {
			key := cfg.Keys[rng.IntN(len(cfg.Keys))]
			if rng.Float64() < cfg.PutRatio {
				plan[i] = workload.Directive{Op: workload.Put, Key: key, Value: strconv.Itoa(rng.IntN(cfg.MaxValue + 1))}
			} else {
				plan[i] = workload.Directive{Op: workload.Get, Key: key}
			}
		}
		plans[w] = plan
	}
	return execute(ctx, m, plans, runOptions{
		jitter:     cfg.Jitter,
		seed:       seed,
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
	})
}

// Replay drives m with directives, dealt round-robin to workers
// goroutines, and returns the recorded history.
func Replay(ctx context.Context, m Map, directives []workload.Directive, workers int, logger *slog.Logger) (Report, error) {
	if workers < 1 {
		return Report{}, errors.Newf("workers %d, want at least 1", workers)
	}
	plans := make([][]workload.Directive, workers)
	for i, d := range directives {
		plans[i%workers] = append(plans[i%workers], d)
	}
	return execute(ctx, m, plans, runOptions{bufferSize: 1024, logger: logger})
}

type runOptions struct {
	jitter     time.Duration
	seed       uint64
	bufferSize int
	logger     *slog.Logger
}

func execute(ctx context.Context, m Map, plans [][]workload.Directive, o runOptions) (Report, error) {
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rep := Report{RunID: uuid.NewString()}
	logger = logger.With("run_id", rep.RunID)

	epoch := time.Now()
	now := func() int64 { return int64(time.Since(epoch)) }

	buf := oplog.New(o.bufferSize)
	var backpressure atomix.Int64

	var history lincheck.History
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		backoff := iox.Backoff{}
		for {
			op, err := buf.Next()
			switch {
			case err == nil:
				history = append(history, op)
				backoff.Reset()
			case oplog.IsWouldBlock(err):
				backoff.Wait()
			default:
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for w, plan := range plans {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(o.seed, uint64(w)|1<<32))
			backoff := iox.Backoff{}
			for _, d := range plan {
				if err := gctx.Err(); err != nil {
					return err
				}
				op := call(m, d, now)
				op.Thread = int64(w)
				for {
					err := buf.Append(&op)
					if err == nil {
						backoff.Reset()
						break
					}
					if !oplog.IsWouldBlock(err) {
						return err
					}
					backpressure.Add(1)
					if err := gctx.Err(); err != nil {
						return err
					}
					backoff.Wait()
				}
				if o.jitter > 0 {
					time.Sleep(time.Duration(rng.Int64N(int64(o.jitter))))
				}
			}
			return nil
		})
	}
	err := g.Wait()
	buf.Close()
	<-collected
	if err != nil {
		return Report{}, errors.Wrapf(err, "stress run %s", rep.RunID)
	}

	slices.SortStableFunc(history, func(a, b lincheck.Op) int {
		if a.Start != b.Start {
			return compare(a.Start, b.Start)
		}
		return compare(a.ID, b.ID)
	})
	for i := range history {
		history[i].ID = int64(i)
	}

	rep.History = history
	rep.Elapsed = time.Since(epoch)
	rep.Backpressure = backpressure.Load()
	logger.Info("stress run complete",
		"workers", len(plans),
		"ops", len(history),
		"backpressure", rep.Backpressure,
		"elapsed", rep.Elapsed)
	return rep, nil
}

// call issues d against m and records it.
func call(m Map, d workload.Directive, now func() int64) lincheck.Op {
	op := lincheck.Op{Key: d.Key}
	switch d.Op {
	case workload.Put:
		op.Kind, op.Value = lincheck.KindSet, d.Value
		op.Start = now()
		m.Set(d.Key, d.Value)
		op.End = now()
		op.Return = lincheck.Ack()
	default:
		op.Kind = lincheck.KindGet
		op.Start = now()
		v, ok := m.Get(d.Key)
		op.End = now()
		if ok {
			op.Return = lincheck.Val(v)
		}
	}
	return op
}

func compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
