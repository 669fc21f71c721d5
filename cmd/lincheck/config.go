// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"code.hybscloud.com/lincheck/stress"
	"code.hybscloud.com/lincheck/workload"
)

// Config is the file configuration of the lincheck command. Command-line
// flags override the values it holds.
type Config struct {
	Log      LogConfig       `yaml:"log"`
	Check    CheckConfig     `yaml:"check"`
	Workload workload.Config `yaml:"workload"`
	Stress   stress.Config   `yaml:"stress"`

	// MetricsOut is a Prometheus textfile path written on exit.
	MetricsOut string `yaml:"metrics_out"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// CheckConfig configures linearizability checks.
type CheckConfig struct {
	MaxSteps  int64             `yaml:"max_steps"`
	Timeout   time.Duration     `yaml:"timeout"`
	Partition bool              `yaml:"partition"`
	Initial   map[string]string `yaml:"initial"`
	Verify    bool              `yaml:"verify"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Check:    CheckConfig{Timeout: time.Minute},
		Workload: workload.DefaultConfig(),
		Stress:   stress.DefaultConfig(),
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}
