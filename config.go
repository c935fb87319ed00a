package hnswkit

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/hnswkit/distance"
	"github.com/hupe1980/hnswkit/internal/hnsw"
	"gopkg.in/yaml.v3"
)

// Distance metrics re-exported for convenience.
const (
	L2     = distance.MetricL2
	Cosine = distance.MetricCosine
	L1     = distance.MetricL1
	Dot    = distance.MetricDot
)

// Defaults used by DefaultConfig.
const (
	DefaultMaxNbConnection = 16
	DefaultMaxElements     = 10_000
	DefaultMaxLayer        = 16
	DefaultEfConstruction  = 200
)

// Config describes an index. Dimension and Distance are fixed for the lifetime
// of an index; the remaining fields size the graph.
type Config struct {
	// MaxNbConnection is the number of links per node and layer (M). Layer 0
	// allows twice as many.
	MaxNbConnection uint32 `yaml:"max_nb_connection"`
	// MaxElements is a capacity hint. The index grows beyond it.
	MaxElements uint64 `yaml:"max_elements"`
	// MaxLayer bounds the number of graph layers.
	MaxLayer uint32 `yaml:"max_layer"`
	// EfConstruction is the candidate list size used while inserting.
	EfConstruction uint32          `yaml:"ef_construction"`
	Dimension      uint32          `yaml:"dimension"`
	Distance       distance.Metric `yaml:"distance"`
}

// DefaultConfig returns a config with default graph parameters.
func DefaultConfig(dimension uint32, metric distance.Metric) Config {
	return Config{
		MaxNbConnection: DefaultMaxNbConnection,
		MaxElements:     DefaultMaxElements,
		MaxLayer:        DefaultMaxLayer,
		EfConstruction:  DefaultEfConstruction,
		Dimension:       dimension,
		Distance:        metric,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Dimension == 0 {
		return &InvalidConfigError{Field: "dimension", Reason: "must be positive"}
	}
	if _, err := distance.SpaceFor(c.Distance); err != nil {
		return &InvalidDistanceError{Distance: c.Distance.String()}
	}
	switch {
	case c.MaxNbConnection < 2:
		return &InvalidConfigError{Field: "max_nb_connection", Reason: "must be at least 2"}
	case c.MaxLayer == 0 || c.MaxLayer > hnsw.MaxLayerLimit:
		return &InvalidConfigError{Field: "max_layer", Reason: fmt.Sprintf("must be in [1, %d]", hnsw.MaxLayerLimit)}
	case c.EfConstruction == 0:
		return &InvalidConfigError{Field: "ef_construction", Reason: "must be positive"}
	}
	return nil
}

func (c Config) graphOptions(seed *int64) hnsw.Options {
	return hnsw.Options{
		Dimension:      int(c.Dimension),
		M:              int(c.MaxNbConnection),
		MaxElements:    c.MaxElements,
		MaxLayer:       int(c.MaxLayer),
		EfConstruction: int(c.EfConstruction),
		RandomSeed:     seed,
	}
}

// DecodeConfig reads a YAML config from r. Missing fields keep their defaults
// and unknown fields are rejected.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig(0, distance.MetricL2)

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &InvalidConfigError{Field: "yaml", Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	return DecodeConfig(f)
}
