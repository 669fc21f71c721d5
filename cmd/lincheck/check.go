// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"code.hybscloud.com/lincheck"
	"code.hybscloud.com/lincheck/histfmt"
)

type checkFlags struct {
	maxSteps     int64
	timeout      time.Duration
	partition    bool
	initial      []string
	verify       bool
	printWitness bool
}

func newCheckCmd(e *env) *cobra.Command {
	var f checkFlags
	cmd := &cobra.Command{
		Use:   "check [file|-]",
		Short: "Check a recorded history for linearizability",
		Long: `Check reads a history in the Op(...) line format and reports whether
some sequential order of its operations, consistent with real-time order,
explains every recorded return.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := e.cfg.Check
			flags := cmd.Flags()
			if flags.Changed("max-steps") {
				cfg.MaxSteps = f.maxSteps
			}
			if flags.Changed("timeout") {
				cfg.Timeout = f.timeout
			}
			if flags.Changed("partition") {
				cfg.Partition = f.partition
			}
			if flags.Changed("verify") {
				cfg.Verify = f.verify
			}
			if len(f.initial) > 0 {
				initial, err := parseInitial(f.initial)
				if err != nil {
					return err
				}
				cfg.Initial = initial
			}

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			h, err := readHistoryFile(path, e.stdin)
			if err != nil {
				return err
			}
			res, err := e.check(cmd.Context(), h, cfg)
			if err != nil {
				return err
			}
			if f.printWitness && res.Ok() {
				if err := histfmt.WriteHistory(e.stdout, res.Witness); err != nil {
					return err
				}
			}
			return outcomeStatus(res.Outcome)
		},
	}
	fl := cmd.Flags()
	fl.Int64Var(&f.maxSteps, "max-steps", 0, "oracle evaluation budget (0: unlimited)")
	fl.DurationVar(&f.timeout, "timeout", time.Minute, "wall-clock budget (0: unlimited)")
	fl.BoolVar(&f.partition, "partition", false, "check every key independently")
	fl.StringArrayVar(&f.initial, "initial", nil, "initial map entry key=value (repeatable)")
	fl.BoolVar(&f.verify, "verify", false, "replay the witness and fail if it does not explain the history")
	fl.BoolVar(&f.printWitness, "print-witness", false, "write the witness to stdout")
	return cmd
}

// check runs one configured check, logs and records its result.
func (e *env) check(ctx context.Context, h lincheck.History, cfg CheckConfig) (lincheck.Result, error) {
	initial := lincheck.NewSnapshot(cfg.Initial)
	c := lincheck.New().
		Initial(initial).
		MaxSteps(cfg.MaxSteps).
		Timeout(cfg.Timeout).
		Logger(e.logger)
	if cfg.Partition {
		c.Partition()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := c.CheckContext(ctx, h)
	if err != nil {
		return lincheck.Result{}, err
	}
	e.metrics.ObserveCheck(h, res)

	if cfg.Verify && res.Ok() {
		if err := lincheck.Replay(h, res.Witness, initial); err != nil {
			return lincheck.Result{}, errors.Wrap(err, "verifying witness")
		}
	}
	e.logger.Info("check complete",
		"ops", len(h),
		"outcome", res.Outcome.String(),
		"steps", res.Steps,
		"memo_hits", res.MemoHits,
		"elapsed", res.Elapsed)
	fmt.Fprintln(e.stdout, res.Outcome)
	return res, nil
}

func parseInitial(pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errors.Newf("initial entry %q, want key=value", p)
		}
		m[k] = v
	}
	return m, nil
}

func readHistoryFile(path string, stdin io.Reader) (lincheck.History, error) {
	if path == "-" {
		return histfmt.ReadHistory(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening history")
	}
	defer f.Close()
	return histfmt.ReadHistory(f)
}
