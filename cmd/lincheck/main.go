// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command lincheck checks recorded map histories for linearizability,
// generates workloads and runs stress tests against the reference map.
//
// Usage:
//
//	lincheck check [--partition] [--max-steps N] [--timeout D] [file|-]
//	lincheck gen [--ops N] [--keys N] > init.txt 2> actions.txt
//	lincheck stress [--workers N] [--ops N] [--out history.txt]
//
// Exit status of check and stress: 0 linearizable, 1 not linearizable,
// 2 usage or input error, 3 inconclusive.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"code.hybscloud.com/lincheck"
	"code.hybscloud.com/lincheck/internal/telemetry"
)

const (
	exitOK              = 0
	exitNotLinearizable = 1
	exitError           = 2
	exitInconclusive    = 3
)

// exitStatus carries a non-zero exit status that is not a failure of the
// command itself.
type exitStatus struct {
	code    int
	outcome lincheck.Outcome
}

func (e *exitStatus) Error() string { return e.outcome.String() }

func outcomeStatus(o lincheck.Outcome) error {
	switch o {
	case lincheck.Linearizable:
		return nil
	case lincheck.NotLinearizable:
		return &exitStatus{code: exitNotLinearizable, outcome: o}
	default:
		return &exitStatus{code: exitInconclusive, outcome: o}
	}
}

// env is shared by all subcommands of one invocation.
type env struct {
	cfgPath    string
	logLevel   string
	logFormat  string
	metricsOut string

	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics

	stdin          io.Reader
	stdout, stderr io.Writer
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "lincheck",
		Short:         "Linearizability checker for concurrent key-value maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(e.cfgPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.Log.Level = e.logLevel
			}
			if flags.Changed("log-format") {
				cfg.Log.Format = e.logFormat
			}
			if flags.Changed("metrics-out") {
				cfg.MetricsOut = e.metricsOut
			}
			logger, err := newLogger(e.stderr, cfg.Log)
			if err != nil {
				return err
			}
			e.cfg, e.logger = cfg, logger
			e.metrics = telemetry.New()
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return e.flushMetrics()
		},
	}
	root.SetIn(e.stdin)
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&e.cfgPath, "config", "", "YAML configuration file")
	pf.StringVar(&e.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&e.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&e.metricsOut, "metrics-out", "", "write Prometheus metrics to this textfile on exit")

	root.AddCommand(newCheckCmd(e), newGenCmd(e), newStressCmd(e))
	return root
}

// flushMetrics writes the metrics textfile if one is configured.
func (e *env) flushMetrics() error {
	if e.metrics == nil || e.cfg.MetricsOut == "" {
		return nil
	}
	return e.metrics.WriteTextfile(e.cfg.MetricsOut)
}

func newLogger(w io.Writer, cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, errors.Wrapf(err, "log level %q", cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.Newf("unknown log format %q", cfg.Format)
	}
}

// run executes the command line and returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr}
	root := newRootCmd(e)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	// PersistentPostRunE is skipped when RunE fails.
	if ferr := e.flushMetrics(); ferr != nil && e.logger != nil {
		e.logger.Error("writing metrics", "err", ferr)
	}
	var st *exitStatus
	if errors.As(err, &st) {
		return st.code
	}
	fmt.Fprintf(stderr, "lincheck: %v\n", err)
	return exitError
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
