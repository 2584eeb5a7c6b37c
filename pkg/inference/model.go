package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoModel is returned when no model source is configured
var ErrNoModel = errors.New("model source is not configured")

// Prediction is the output of one inference call
type Prediction struct {
	Values map[string]float64
	Method string
}

// Predictor runs inference over one spectrum
type Predictor interface {
	Predict(ctx context.Context, spectra []float64) (*Prediction, error)
}

// PredictorFunc adapts a function to Predictor
type PredictorFunc func(ctx context.Context, spectra []float64) (*Prediction, error)

func (f PredictorFunc) Predict(ctx context.Context, spectra []float64) (*Prediction, error) {
	return f(ctx, spectra)
}

// ObjectReader fetches a model artifact from object storage.
// storage.S3Reader satisfies it.
type ObjectReader interface {
	ReadObject(ctx context.Context, url string) ([]byte, error)
}

// Target is one predicted property
type Target struct {
	Name         string    `yaml:"name"`
	Intercept    float64   `yaml:"intercept"`
	Coefficients []float64 `yaml:"coefficients"`
}

// LinearModel predicts each target as intercept + coefficients . spectra
type LinearModel struct {
	Method  string   `yaml:"method"`
	Inputs  int      `yaml:"inputs"`
	Targets []Target `yaml:"targets"`
}

// ParseModel decodes and validates a YAML artifact
func ParseModel(data []byte) (*LinearModel, error) {
	var m LinearModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LinearModel) validate() error {
	if m.Method == "" {
		return fmt.Errorf("invalid model: method is required")
	}
	if m.Inputs < 1 {
		return fmt.Errorf("invalid model: inputs must be positive")
	}
	if len(m.Targets) == 0 {
		return fmt.Errorf("invalid model: at least one target is required")
	}

	seen := make(map[string]bool, len(m.Targets))
	for i, t := range m.Targets {
		if t.Name == "" {
			return fmt.Errorf("invalid model: target %d has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("invalid model: duplicate target %s", t.Name)
		}
		seen[t.Name] = true
		if len(t.Coefficients) != m.Inputs {
			return fmt.Errorf("invalid model: target %s has %d coefficients, want %d",
				t.Name, len(t.Coefficients), m.Inputs)
		}
	}
	return nil
}

// Predict evaluates every target. The spectrum length must match Inputs.
func (m *LinearModel) Predict(ctx context.Context, spectra []float64) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(spectra) != m.Inputs {
		return nil, fmt.Errorf("model %s expects %d spectral values, got %d", m.Method, m.Inputs, len(spectra))
	}

	values := make(map[string]float64, len(m.Targets))
	for _, t := range m.Targets {
		v := t.Intercept
		for i, c := range t.Coefficients {
			v += c * spectra[i]
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("model %s produced a non-finite %s", m.Method, t.Name)
		}
		values[t.Name] = v
	}
	return &Prediction{Values: values, Method: m.Method}, nil
}

// LoadModel loads the artifact at source, a file path or an s3:// URL.
// reader may be nil when source is a local path.
func LoadModel(ctx context.Context, source string, reader ObjectReader) (*LinearModel, error) {
	if source == "" {
		return nil, ErrNoModel
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "s3://") {
		if reader == nil {
			return nil, fmt.Errorf("no object store configured for %s", source)
		}
		data, err = reader.ReadObject(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", source, err)
	}

	m, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return m, nil
}
