package analysis

import (
	"bytes"
	"encoding/json"

	"github.com/platinummonkey/agronomy/pkg/validation"
)

const spectraField = "spectra"

// ValidateSpectra checks that raw is a non-empty JSON array of numbers and
// returns the decoded values. Booleans, strings and null are rejected.
func ValidateSpectra(raw json.RawMessage) ([]float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, validation.New(spectraField, "This field is required.")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, validation.New(spectraField, "Spectra must be a list of absorbance values.")
	}

	items, ok := value.([]interface{})
	if !ok {
		return nil, validation.New(spectraField, "Spectra must be a list of absorbance values.")
	}
	if len(items) == 0 {
		return nil, validation.New(spectraField, "Spectra array cannot be empty.")
	}

	spectra := make([]float64, len(items))
	for i, item := range items {
		n, ok := item.(json.Number)
		if !ok {
			return nil, validation.New(spectraField, "All spectral values must be numbers.")
		}
		f, err := n.Float64()
		if err != nil {
			return nil, validation.New(spectraField, "All spectral values must be numbers.")
		}
		spectra[i] = f
	}
	return spectra, nil
}
