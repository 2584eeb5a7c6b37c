package samples

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/platinummonkey/agronomy/pkg/validation"
)

var emptyObject = json.RawMessage(`{}`)

func (r *CreateSampleRequest) validate() error {
	var errs validation.Errors
	r.Label = strings.TrimSpace(r.Label)
	validation.Required(&errs, "label", r.Label)
	validation.Coordinates(&errs, r.Latitude, r.Longitude)
	if r.DepthCM == nil {
		depth := DefaultDepthCM
		r.DepthCM = &depth
	}
	checkDepth(&errs, *r.DepthCM)
	if r.PH == nil {
		errs.Add("ph", "This field is required.")
	} else {
		checkPH(&errs, *r.PH)
	}
	nutrients(&errs, r.Nitrogen, r.Phosphorus, r.Potassium)

	meta, err := normalizeMetadata(r.Metadata)
	if err != nil {
		errs.Add("metadata", err.Error())
	}
	r.Metadata = meta
	return errs.Err()
}

func (r *UpdateSampleRequest) validate(current *SoilSample) error {
	var errs validation.Errors
	if r.Label != nil {
		validation.Required(&errs, "label", strings.TrimSpace(*r.Label))
	}

	lat, long := current.Latitude, current.Longitude
	if r.Latitude != nil {
		lat = r.Latitude
	}
	if r.Longitude != nil {
		long = r.Longitude
	}
	validation.Coordinates(&errs, lat, long)

	if r.DepthCM != nil {
		checkDepth(&errs, *r.DepthCM)
	}
	if r.PH != nil {
		checkPH(&errs, *r.PH)
	}
	nutrients(&errs, r.Nitrogen, r.Phosphorus, r.Potassium)

	if len(r.Metadata) > 0 {
		meta, err := normalizeMetadata(r.Metadata)
		if err != nil {
			errs.Add("metadata", err.Error())
		}
		r.Metadata = meta
	}
	return errs.Err()
}

func checkDepth(errs *validation.Errors, v int) {
	if v < 0 {
		errs.Add("depth_cm", "Ensure this value is greater than or equal to 0.")
	}
}

func checkPH(errs *validation.Errors, v float64) {
	if v < 0 || v > 14 {
		errs.Add("ph", "pH must be between 0 and 14.")
	}
}

func nutrients(errs *validation.Errors, nitrogen, phosphorus, potassium *float64) {
	validation.NonNegative(errs, "nitrogen", nitrogen)
	validation.NonNegative(errs, "phosphorus", phosphorus)
	validation.NonNegative(errs, "potassium", potassium)
}

// normalizeMetadata accepts a JSON object or nothing
func normalizeMetadata(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyObject, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, errors.New("Metadata must be a JSON object.")
	}
	return json.RawMessage(trimmed), nil
}
