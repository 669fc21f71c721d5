// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"code.hybscloud.com/lincheck/histfmt"
	"code.hybscloud.com/lincheck/stress"
	"code.hybscloud.com/lincheck/workload"
)

func newStressCmd(e *env) *cobra.Command {
	var (
		s          stress.Config
		directives string
		out        string
		noCheck    bool
	)
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Record a concurrent history of the reference map and check it",
		Long: `Stress drives a mutex-guarded map from concurrent workers, records every
call with monotonic start and end instants, and checks the history.

With --directives, the workers replay a file produced by gen instead of
issuing random operations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := e.cfg.Stress
			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Workers = s.Workers
			}
			if flags.Changed("ops") {
				cfg.OpsPerWorker = s.OpsPerWorker
			}
			if flags.Changed("keys") {
				cfg.Keys = s.Keys
			}
			if flags.Changed("max-value") {
				cfg.MaxValue = s.MaxValue
			}
			if flags.Changed("put-ratio") {
				cfg.PutRatio = s.PutRatio
			}
			if flags.Changed("jitter") {
				cfg.Jitter = s.Jitter
			}
			if flags.Changed("seed") {
				cfg.Seed = s.Seed
			}
			cfg.Logger = e.logger

			ctx := cmd.Context()
			m := stress.NewLockedMap()
			var rep stress.Report
			var err error
			if directives != "" {
				ds, rerr := readDirectives(directives)
				if rerr != nil {
					return rerr
				}
				rep, err = stress.Replay(ctx, m, ds, cfg.Workers, e.logger)
			} else {
				rep, err = stress.Run(ctx, m, cfg)
			}
			if err != nil {
				return err
			}
			e.metrics.ObserveStress(rep.History)

			if out != "" {
				if err := writeHistoryFile(out, rep); err != nil {
					return err
				}
			}
			if noCheck {
				return nil
			}
			res, err := e.check(ctx, rep.History, e.cfg.Check)
			if err != nil {
				return err
			}
			return outcomeStatus(res.Outcome)
		},
	}
	d := stress.DefaultConfig()
	fl := cmd.Flags()
	fl.IntVar(&s.Workers, "workers", d.Workers, "concurrent workers")
	fl.IntVar(&s.OpsPerWorker, "ops", d.OpsPerWorker, "operations per worker")
	fl.StringSliceVar(&s.Keys, "keys", d.Keys, "keys to operate on")
	fl.IntVar(&s.MaxValue, "max-value", d.MaxValue, "largest Set value")
	fl.Float64Var(&s.PutRatio, "put-ratio", d.PutRatio, "probability of Set")
	fl.DurationVar(&s.Jitter, "jitter", d.Jitter, "maximum pause between operations")
	fl.Uint64Var(&s.Seed, "seed", 0, "operation mix seed (0: random)")
	fl.StringVar(&directives, "directives", "", "replay directives from this file")
	fl.StringVar(&out, "out", "", "write the recorded history to this file")
	fl.BoolVar(&noCheck, "no-check", false, "record only, do not check")
	return cmd
}

func readDirectives(path string) ([]workload.Directive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening directives")
	}
	defer f.Close()
	return workload.ReadDirectives(f)
}

func writeHistoryFile(path string, rep stress.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating history file")
	}
	if _, err := f.WriteString("# run " + rep.RunID + " recorded " + rep.Elapsed.Round(time.Microsecond).String() + "\n"); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "writing history file")
	}
	if err := histfmt.WriteHistory(f, rep.History); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "closing history file")
}
