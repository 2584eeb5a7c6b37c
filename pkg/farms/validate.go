package farms

import (
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/validation"
)

func (r *CreateFarmRequest) validate() error {
	var errs validation.Errors
	r.Name = strings.TrimSpace(r.Name)
	validation.Required(&errs, "name", r.Name)
	validation.Required(&errs, "location", strings.TrimSpace(r.Location))
	validation.NonNegative(&errs, "total_area_hectares", &r.TotalAreaHectares)
	return errs.Err()
}

func (r *UpdateFarmRequest) validate() error {
	var errs validation.Errors
	if r.Name != nil {
		validation.Required(&errs, "name", strings.TrimSpace(*r.Name))
	}
	if r.Location != nil {
		validation.Required(&errs, "location", strings.TrimSpace(*r.Location))
	}
	validation.NonNegative(&errs, "total_area_hectares", r.TotalAreaHectares)
	return errs.Err()
}

func (r *CreateFieldRequest) validate() (CropType, error) {
	var errs validation.Errors
	if r.FarmID == uuid.Nil {
		errs.Add("farm", "This field is required.")
	}
	r.Name = strings.TrimSpace(r.Name)
	validation.Required(&errs, "name", r.Name)
	crop, err := ParseCropType(r.CropType)
	if err != nil {
		errs.Add("crop_type", err.Error())
	}
	validation.NonNegative(&errs, "area_hectares", &r.AreaHectares)
	validation.Coordinates(&errs, r.Latitude, r.Longitude)
	return crop, errs.Err()
}

// validate checks r against the field it will be applied to, so a partial
// coordinate update still yields a complete pair.
func (r *UpdateFieldRequest) validate(current *Field) (*CropType, error) {
	var errs validation.Errors
	if r.Name != nil {
		validation.Required(&errs, "name", strings.TrimSpace(*r.Name))
	}
	var crop *CropType
	if r.CropType != nil {
		c, err := ParseCropType(*r.CropType)
		if err != nil {
			errs.Add("crop_type", err.Error())
		}
		crop = &c
	}
	validation.NonNegative(&errs, "area_hectares", r.AreaHectares)

	lat, long := current.Latitude, current.Longitude
	if r.Latitude != nil {
		lat = r.Latitude
	}
	if r.Longitude != nil {
		long = r.Longitude
	}
	validation.Coordinates(&errs, lat, long)
	return crop, errs.Err()
}
