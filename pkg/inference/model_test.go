package inference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = `
method: PLSR_v1
inputs: 3
targets:
  - name: SOM
    intercept: 1.0
    coefficients: [1.0, 2.0, 3.0]
  - name: N
    intercept: 0
    coefficients: [0.5, 0.5, 0.5]
`

type fakeReader struct {
	objects map[string][]byte
	urls    []string
}

func (f *fakeReader) ReadObject(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	data, ok := f.objects[url]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return data, nil
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel([]byte(testModel))
	require.NoError(t, err)
	assert.Equal(t, "PLSR_v1", m.Method)
	assert.Equal(t, 3, m.Inputs)
	require.Len(t, m.Targets, 2)
	assert.Equal(t, "SOM", m.Targets[0].Name)
}

func TestParseModel_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"not yaml", "method: [", "failed to parse model"},
		{"no method", "inputs: 1\ntargets: [{name: SOM, coefficients: [1]}]", "method is required"},
		{"no inputs", "method: m\ntargets: [{name: SOM, coefficients: []}]", "inputs must be positive"},
		{"no targets", "method: m\ninputs: 1", "at least one target"},
		{"unnamed target", "method: m\ninputs: 1\ntargets: [{coefficients: [1]}]", "has no name"},
		{"duplicate target", "method: m\ninputs: 1\ntargets: [{name: a, coefficients: [1]}, {name: a, coefficients: [2]}]", "duplicate target"},
		{"coefficient mismatch", "method: m\ninputs: 2\ntargets: [{name: a, coefficients: [1]}]", "has 1 coefficients, want 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLinearModel_Predict(t *testing.T) {
	m, err := ParseModel([]byte(testModel))
	require.NoError(t, err)

	p, err := m.Predict(context.Background(), []float64{0.1, 0.2, 0.3})
	require.NoError(t, err)
	assert.Equal(t, "PLSR_v1", p.Method)
	assert.InDelta(t, 2.4, p.Values["SOM"], 1e-9)
	assert.InDelta(t, 0.3, p.Values["N"], 1e-9)
}

func TestLinearModel_PredictWrongLength(t *testing.T) {
	m, err := ParseModel([]byte(testModel))
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), []float64{0.1})
	require.Error(t, err)
	assert.Equal(t, "model PLSR_v1 expects 3 spectral values, got 1", err.Error())
}

func TestLinearModel_PredictCancelled(t *testing.T) {
	m, err := ParseModel([]byte(testModel))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Predict(ctx, []float64{0.1, 0.2, 0.3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadModel_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soil_model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testModel), 0o600))

	m, err := LoadModel(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "PLSR_v1", m.Method)
}

func TestLoadModel_S3(t *testing.T) {
	reader := &fakeReader{objects: map[string][]byte{
		"s3://models/soil/v1.yaml": []byte(testModel),
	}}

	m, err := LoadModel(context.Background(), "s3://models/soil/v1.yaml", reader)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Inputs)
	assert.Equal(t, []string{"s3://models/soil/v1.yaml"}, reader.urls)
}

func TestLoadModel_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := LoadModel(ctx, "", nil)
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = LoadModel(ctx, "s3://models/soil.yaml", nil)
	assert.ErrorContains(t, err, "no object store configured")

	_, err = LoadModel(ctx, "s3://models/missing.yaml", &fakeReader{})
	assert.ErrorContains(t, err, "NoSuchKey")

	_, err = LoadModel(ctx, filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("method: m\ninputs: 0"), 0o600))
	_, err = LoadModel(ctx, bad, nil)
	assert.ErrorContains(t, err, "inputs must be positive")
}

func TestPredictorFunc(t *testing.T) {
	var p Predictor = PredictorFunc(func(ctx context.Context, spectra []float64) (*Prediction, error) {
		return &Prediction{Values: map[string]float64{"SOM": float64(len(spectra))}, Method: "stub"}, nil
	})

	out, err := p.Predict(context.Background(), []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out.Values["SOM"])
}

func TestLoadModel_BundledArtifact(t *testing.T) {
	m, err := LoadModel(context.Background(), filepath.Join("..", "..", "models", "soil_model.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "PLSR_v1", m.Method)

	out, err := m.Predict(context.Background(), make([]float64, m.Inputs))
	require.NoError(t, err)
	assert.InDelta(t, 6.1, out.Values["ph"], 1e-9)
}
