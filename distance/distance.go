package distance

import (
	"fmt"
	"strings"

	"github.com/viterin/vek/vek32"
)

// Metric represents the distance metric used for vector comparison.
type Metric uint8

const (
	MetricL2 Metric = iota
	MetricCosine
	MetricL1
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricCosine:
		return "cosine"
	case MetricL1:
		return "l1"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// Valid reports whether m names one of the supported metrics.
func (m Metric) Valid() bool {
	return m <= MetricDot
}

// ParseMetric parses the textual form of a metric. Matching is case-insensitive
// and accepts a few common aliases.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "euclidean":
		return MetricL2, nil
	case "cosine", "cos":
		return MetricCosine, nil
	case "l1", "manhattan":
		return MetricL1, nil
	case "dot", "inner_product", "ip":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown distance metric %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown distance metric %d", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Space is a distance function over equal-length float32 vectors.
// Implementations are stateless value types so graphs can be instantiated per space.
type Space interface {
	// Distance returns the distance between a and b. Smaller is closer.
	Distance(a, b []float32) float32
	// Metric identifies the space.
	Metric() Metric
}

// L2 is the Euclidean distance.
type L2 struct{}

func (L2) Distance(a, b []float32) float32 { return vek32.Distance(a, b) }

func (L2) Metric() Metric { return MetricL2 }

// L1 is the Manhattan distance.
type L1 struct{}

func (L1) Distance(a, b []float32) float32 { return vek32.ManhattanDistance(a, b) }

func (L1) Metric() Metric { return MetricL1 }

// Cosine is one minus the cosine similarity. Zero vectors are at distance 1 from everything.
type Cosine struct{}

func (Cosine) Distance(a, b []float32) float32 {
	na := vek32.Norm(a)
	nb := vek32.Norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - vek32.Dot(a, b)/(na*nb)
	if d < 0 {
		return 0
	}
	return d
}

func (Cosine) Metric() Metric { return MetricCosine }

// Dot is one minus the inner product, clamped at zero.
type Dot struct{}

func (Dot) Distance(a, b []float32) float32 {
	d := 1 - vek32.Dot(a, b)
	if d < 0 {
		return 0
	}
	return d
}

func (Dot) Metric() Metric { return MetricDot }

// SpaceFor returns the space for m.
func SpaceFor(m Metric) (Space, error) {
	switch m {
	case MetricL2:
		return L2{}, nil
	case MetricCosine:
		return Cosine{}, nil
	case MetricL1:
		return L1{}, nil
	case MetricDot:
		return Dot{}, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
