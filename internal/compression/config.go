package compression

import (
	"fmt"
)

// AlgorithmConfig is one algorithm entry of a configuration.
type AlgorithmConfig struct {
	Name   string
	Params Params
}

// Config is an immutable, ordered set of algorithm entries plus the
// calibration resources attached for initialization.
//
// Declaration order is preserved: it fixes the order in which algorithms
// transform the model, the order of loss summation and the order of
// scheduler fan-out.
type Config struct {
	algorithms []AlgorithmConfig
	init       *InitRegistry
}

// NewConfig creates a configuration. Algorithm names must be unique.
func NewConfig(algorithms ...AlgorithmConfig) (*Config, error) {
	seen := make(map[string]bool, len(algorithms))
	entries := make([]AlgorithmConfig, 0, len(algorithms))
	for _, a := range algorithms {
		if a.Name == "" {
			return nil, fmt.Errorf("algorithm entry %d: empty name", len(entries))
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAlgorithm, a.Name)
		}
		seen[a.Name] = true
		entries = append(entries, AlgorithmConfig{Name: a.Name, Params: a.Params.Clone()})
	}
	return &Config{algorithms: entries}, nil
}

// WithInit returns a copy of c with reg attached.
func (c *Config) WithInit(reg *InitRegistry) *Config {
	return &Config{algorithms: c.algorithms, init: reg}
}

// Algorithms returns a copy of the algorithm entries in declaration order.
func (c *Config) Algorithms() []AlgorithmConfig {
	out := make([]AlgorithmConfig, len(c.algorithms))
	for i, a := range c.algorithms {
		out[i] = AlgorithmConfig{Name: a.Name, Params: a.Params.Clone()}
	}
	return out
}

// Names returns the algorithm names in declaration order.
func (c *Config) Names() []string {
	names := make([]string, len(c.algorithms))
	for i, a := range c.algorithms {
		names[i] = a.Name
	}
	return names
}

// Len returns the number of algorithms.
func (c *Config) Len() int {
	return len(c.algorithms)
}

// Init returns the attached registry, or nil.
func (c *Config) Init() *InitRegistry {
	return c.init
}
