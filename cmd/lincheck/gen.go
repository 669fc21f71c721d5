// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"code.hybscloud.com/lincheck/workload"
)

func newGenCmd(e *env) *cobra.Command {
	var (
		w                workload.Config
		initOut, restOut string
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate PUT/GET directive streams",
		Long: `Gen writes the init stream to stdout and the remainder to stderr,
unless --init-out or --rest-out name files:

  lincheck gen --ops 2000000 --keys 1000000 > init_actions.txt 2> actions.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := e.cfg.Workload
			flags := cmd.Flags()
			if flags.Changed("ops") {
				cfg.TotalOps = w.TotalOps
			}
			if flags.Changed("keys") {
				cfg.TotalKeys = w.TotalKeys
			}
			if flags.Changed("key-len") {
				cfg.KeyLen = w.KeyLen
			}
			if flags.Changed("init-split") {
				cfg.InitSplit = w.InitSplit
			}
			if flags.Changed("put-ratio") {
				cfg.PutRatio = w.PutRatio
			}
			if flags.Changed("key-repetitions") {
				cfg.KeyRepetitions = w.KeyRepetitions
			}
			if flags.Changed("separate") {
				cfg.SeparateDatasets = w.SeparateDatasets
			}
			if flags.Changed("max-value") {
				cfg.MaxValue = w.MaxValue
			}
			if flags.Changed("seed") {
				cfg.Seed = w.Seed
			}

			initW, closeInit, err := openOut(initOut, e.stdout)
			if err != nil {
				return err
			}
			defer closeInit()
			restW, closeRest, err := openOut(restOut, e.stderr)
			if err != nil {
				return err
			}
			defer closeRest()

			if err := workload.Generate(cfg, initW, restW); err != nil {
				return err
			}
			e.logger.Debug("workload generated", "ops", cfg.TotalOps, "keys", cfg.TotalKeys)
			return nil
		},
	}
	d := workload.DefaultConfig()
	fl := cmd.Flags()
	fl.IntVar(&w.TotalOps, "ops", d.TotalOps, "total directives")
	fl.IntVar(&w.TotalKeys, "keys", d.TotalKeys, "distinct keys")
	fl.IntVar(&w.KeyLen, "key-len", d.KeyLen, "key length")
	fl.Float64Var(&w.InitSplit, "init-split", d.InitSplit, "fraction of directives in the init stream")
	fl.Float64Var(&w.PutRatio, "put-ratio", d.PutRatio, "probability of PUT")
	fl.BoolVar(&w.KeyRepetitions, "key-repetitions", d.KeyRepetitions, "allow more directives than keys")
	fl.BoolVar(&w.SeparateDatasets, "separate", false, "PUTs to the init stream, GETs to the rest stream")
	fl.IntVar(&w.MaxValue, "max-value", d.MaxValue, "largest PUT value")
	fl.Uint64Var(&w.Seed, "seed", 0, "random seed (0: random)")
	fl.StringVar(&initOut, "init-out", "", "init stream file (default stdout)")
	fl.StringVar(&restOut, "rest-out", "", "rest stream file (default stderr)")
	return cmd
}

func openOut(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating output")
	}
	return f, func() { _ = f.Close() }, nil
}
