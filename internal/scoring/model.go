// Package scoring assigns hotspot risk probabilities to incident records using
// a pre-trained logistic model and its feature scaler.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	yaml "gopkg.in/yaml.v3"
)

// Scorer maps a raw feature vector to the probability of belonging to a hotspot.
type Scorer interface {
	Score(features []float64) (float64, error)
}

// ErrFeatureCount is returned when a feature vector does not match the model.
var ErrFeatureCount = errors.New("feature count does not match model")

// Scaler standardizes the named columns: (x - mean) / scale.
type Scaler struct {
	Columns []string  `yaml:"columns"`
	Mean    []float64 `yaml:"mean"`
	Scale   []float64 `yaml:"scale"`
}

// Model is a binary logistic classifier over Features, FeatureNames when the
// artifact does not list its own.
type Model struct {
	Name      string    `yaml:"name"`
	Classes   []int     `yaml:"classes"`
	Features  []string  `yaml:"features"`
	Weights   []float64 `yaml:"weights"`
	Intercept float64   `yaml:"intercept"`
	Scaler    Scaler    `yaml:"scaler"`

	scaleIdx []int // feature index -> scaler column, -1 when unscaled
}

// Load reads a model artifact from disk.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML model artifact.
func Parse(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(m.Features) == 0 {
		m.Features = append([]string(nil), FeatureNames...)
	}
	if len(m.Weights) != len(m.Features) {
		return nil, fmt.Errorf("model has %d weights for %d features: %w", len(m.Weights), len(m.Features), ErrFeatureCount)
	}
	sc := m.Scaler
	if len(sc.Mean) != len(sc.Columns) || len(sc.Scale) != len(sc.Columns) {
		return nil, fmt.Errorf("scaler columns, mean and scale differ in length")
	}
	m.scaleIdx = make([]int, len(m.Features))
	for i, f := range m.Features {
		m.scaleIdx[i] = -1
		for j, c := range sc.Columns {
			if c == f {
				m.scaleIdx[i] = j
				break
			}
		}
	}
	return &m, nil
}

// Columns returns the feature columns the model was trained on, in order.
func (m *Model) Columns() []string { return m.Features }

// SingleClass reports whether the model was trained on one class only.
// Such a model scores every record 0.
func (m *Model) SingleClass() bool { return len(m.Classes) < 2 }

// Score scales the numeric columns and returns the positive-class probability.
func (m *Model) Score(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("got %d features, want %d: %w", len(features), len(m.Weights), ErrFeatureCount)
	}
	if m.SingleClass() {
		return 0, nil
	}
	x := make([]float64, len(features))
	for i, v := range features {
		x[i] = v
		if j := m.scaleIdx[i]; j >= 0 {
			scale := m.Scaler.Scale[j]
			if scale == 0 {
				scale = 1
			}
			x[i] = (v - m.Scaler.Mean[j]) / scale
		}
	}
	z := floats.Dot(m.Weights, x) + m.Intercept
	return 1 / (1 + math.Exp(-z)), nil
}
