package validation

// Coordinates checks an optional latitude/longitude pair. Both must be set
// or both omitted, and each must fall inside its range.
func Coordinates(errs *Errors, latitude, longitude *float64) {
	if (latitude == nil) != (longitude == nil) {
		errs.Add("latitude", "Both latitude and longitude must be provided together.")
		return
	}
	if latitude == nil {
		return
	}
	if *latitude < -90 || *latitude > 90 {
		errs.Add("latitude", "Latitude must be between -90 and 90.")
	}
	if *longitude < -180 || *longitude > 180 {
		errs.Add("longitude", "Longitude must be between -180 and 180.")
	}
}

// NonNegative rejects a negative optional value
func NonNegative(errs *Errors, field string, v *float64) {
	if v != nil && *v < 0 {
		errs.Add(field, "Ensure this value is greater than or equal to 0.")
	}
}

// Required rejects an empty string
func Required(errs *Errors, field, v string) {
	if v == "" {
		errs.Add(field, "This field is required.")
	}
}
