package rbac

import "errors"

// ErrForbidden is matched by every denial
var ErrForbidden = errors.New("forbidden")

// ForbiddenError carries the denied permission and the decision reason
type ForbiddenError struct {
	Permission Permission
	Reason     string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden: " + e.Permission.String()
	}
	return e.Reason
}

// Is makes errors.Is(err, ErrForbidden) true
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}
