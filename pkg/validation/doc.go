// Package validation carries field-level input errors from the domain
// packages to the HTTP layer, where they become 400 responses.
//
//	var errs validation.Errors
//	errs.Add("ph", "must be between 0 and 14")
//	if err := errs.Err(); err != nil {
//		return err
//	}
package validation
