// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package workload generates PUT/GET directive streams that drive a map
// implementation under test before and while a history is captured.
//
// Directives are newline-delimited:
//
//	PUT: <key> <value>
//	GET: <key>
//
// Generate splits them over two streams. By default the first
// InitSplit*TotalOps directives go to the init stream (used to warm the
// map) and the remainder to the rest stream. With SeparateDatasets, every
// PUT goes to init and every GET to rest.
package workload

import (
	"bufio"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Config configures a generated workload.
type Config struct {
	TotalOps  int `yaml:"total_ops"`
	TotalKeys int `yaml:"total_keys"`
	KeyLen    int `yaml:"key_len"`

	// InitSplit is the fraction of TotalOps sent to the init stream.
	InitSplit float64 `yaml:"init_split"`
	// PutRatio is the probability that a directive is a PUT.
	PutRatio float64 `yaml:"put_ratio"`

	KeyRepetitions   bool `yaml:"key_repetitions"`
	SeparateDatasets bool `yaml:"separate_datasets"`

	// Values are drawn uniformly from [1, MaxValue].
	MaxValue int `yaml:"max_value"`

	// Seed makes generation reproducible; zero picks a random seed.
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns a small mixed workload.
func DefaultConfig() Config {
	return Config{
		TotalOps:       200,
		TotalKeys:      75,
		KeyLen:         8,
		InitSplit:      0.2,
		PutRatio:       0.5,
		KeyRepetitions: true,
		MaxValue:       100,
	}
}

// Validate reports whether c describes a workload that can be generated.
func (c Config) Validate() error {
	switch {
	case c.TotalOps < 0:
		return errors.Newf("total ops %d is negative", c.TotalOps)
	case c.TotalKeys < 1:
		return errors.Newf("total keys %d, want at least 1", c.TotalKeys)
	case c.KeyLen < 1:
		return errors.Newf("key length %d, want at least 1", c.KeyLen)
	case c.InitSplit < 0 || c.InitSplit > 1:
		return errors.Newf("init split %v outside [0, 1]", c.InitSplit)
	case c.PutRatio < 0 || c.PutRatio > 1:
		return errors.Newf("put ratio %v outside [0, 1]", c.PutRatio)
	case c.MaxValue < 1:
		return errors.Newf("max value %d, want at least 1", c.MaxValue)
	case c.TotalOps > c.TotalKeys && !c.KeyRepetitions:
		return errors.Newf("keys (%d) are fewer than ops (%d): key repetitions must be enabled",
			c.TotalKeys, c.TotalOps)
	}
	if space := keySpace(c.KeyLen); space > 0 && uint64(c.TotalKeys) > space {
		return errors.Newf("%d unique keys of length %d do not exist", c.TotalKeys, c.KeyLen)
	}
	return nil
}

// keySpace returns the number of distinct keys of length n, or 0 when it
// exceeds uint64.
func keySpace(n int) uint64 {
	space := uint64(1)
	for range n {
		if space > ^uint64(0)/uint64(len(alphabet)) {
			return 0
		}
		space *= uint64(len(alphabet))
	}
	return space
}

// Op is a directive kind.
type Op string

const (
	Put Op = "PUT"
	Get Op = "GET"
)

// Directive is one generated map call.
type Directive struct {
	Op    Op
	Key   string
	Value string // PUT only
}

// String renders d as a directive line without the newline.
func (d Directive) String() string {
	if d.Op == Put {
		return "PUT: " + d.Key + " " + d.Value
	}
	return "GET: " + d.Key
}

// ParseDirective parses one directive line.
func ParseDirective(line string) (Directive, error) {
	head, rest, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok {
		return Directive{}, errors.Newf("directive %q: missing ':'", line)
	}
	fields := strings.Fields(rest)
	switch Op(head) {
	case Put:
		if len(fields) != 2 {
			return Directive{}, errors.Newf("directive %q: want PUT: <key> <value>", line)
		}
		return Directive{Op: Put, Key: fields[0], Value: fields[1]}, nil
	case Get:
		if len(fields) != 1 {
			return Directive{}, errors.Newf("directive %q: want GET: <key>", line)
		}
		return Directive{Op: Get, Key: fields[0]}, nil
	default:
		return Directive{}, errors.Newf("directive %q: unknown operation %q", line, head)
	}
}

// ReadDirectives parses every non-blank line of r.
func ReadDirectives(r io.Reader) ([]Directive, error) {
	var ds []Directive
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		d, err := ParseDirective(sc.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		ds = append(ds, d)
	}
	return ds, errors.Wrap(sc.Err(), "reading directives")
}

// Keys returns count unique random alphanumeric keys of the given length,
// in generation order.
func Keys(rng *rand.Rand, count, length int) []string {
	seen := make(map[string]struct{}, count)
	keys := make([]string, 0, count)
	buf := make([]byte, length)
	for len(keys) < count {
		for i := range buf {
			buf[i] = alphabet[rng.IntN(len(alphabet))]
		}
		k := string(buf)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Generator produces directives for a Config.
type Generator struct {
	cfg  Config
	rng  *rand.Rand
	keys []string
}

// NewGenerator validates cfg and draws its key set.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Generator{cfg: cfg, rng: rng, keys: Keys(rng, cfg.TotalKeys, cfg.KeyLen)}, nil
}

// Keys returns the generator's key set.
func (g *Generator) Keys() []string { return g.keys }

// Next returns one random directive drawn with the configured PUT ratio.
func (g *Generator) Next() Directive {
	if g.rng.Float64() < g.cfg.PutRatio {
		return g.put()
	}
	return g.get()
}

func (g *Generator) put() Directive {
	return Directive{
		Op:    Put,
		Key:   g.key(),
		Value: strconv.Itoa(1 + g.rng.IntN(g.cfg.MaxValue)),
	}
}

func (g *Generator) get() Directive {
	return Directive{Op: Get, Key: g.key()}
}

func (g *Generator) key() string { return g.keys[g.rng.IntN(len(g.keys))] }

// Generate writes the workload described by cfg to init and rest.
func Generate(cfg Config, init, rest io.Writer) error {
	g, err := NewGenerator(cfg)
	if err != nil {
		return err
	}
	return g.WriteTo(init, rest)
}

// WriteTo writes the generator's full workload to init and rest.
func (g *Generator) WriteTo(init, rest io.Writer) error {
	wi, wr := bufio.NewWriter(init), bufio.NewWriter(rest)
	emit := func(w *bufio.Writer, d Directive) error {
		_, err := w.WriteString(d.String() + "\n")
		return err
	}

	if g.cfg.SeparateDatasets {
		puts := int(float64(g.cfg.TotalOps) * g.cfg.PutRatio)
		gets := int(float64(g.cfg.TotalOps) * (1 - g.cfg.PutRatio))
		for range puts {
			if err := emit(wi, g.put()); err != nil {
				return errors.Wrap(err, "writing init stream")
			}
		}
		for range gets {
			if err := emit(wr, g.get()); err != nil {
				return errors.Wrap(err, "writing rest stream")
			}
		}
	} else {
		initCount := int(g.cfg.InitSplit * float64(g.cfg.TotalOps))
		for i := range g.cfg.TotalOps {
			w := wr
			if i < initCount {
				w = wi
			}
			if err := emit(w, g.Next()); err != nil {
				return errors.Wrap(err, "writing directives")
			}
		}
	}

	if err := wi.Flush(); err != nil {
		return errors.Wrap(err, "writing init stream")
	}
	return errors.Wrap(wr.Flush(), "writing rest stream")
}
