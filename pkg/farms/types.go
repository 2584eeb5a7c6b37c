package farms

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CropType is the closed set of field crops
type CropType string

const (
	CropMaize  CropType = "MAIZE"
	CropBeans  CropType = "BEANS"
	CropWheat  CropType = "WHEAT"
	CropCoffee CropType = "COFFEE"
	CropTea    CropType = "TEA"
	CropOther  CropType = "OTHER"
)

// ParseCropType accepts a crop name in any case. Empty means MAIZE.
func ParseCropType(s string) (CropType, error) {
	c := CropType(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case "":
		return CropMaize, nil
	case CropMaize, CropBeans, CropWheat, CropCoffee, CropTea, CropOther:
		return c, nil
	}
	return "", fmt.Errorf("%q is not a valid choice", s)
}

// Farm is a physical estate
type Farm struct {
	ID                uuid.UUID  `json:"id"`
	OrganizationID    uuid.UUID  `json:"organization_id"`
	OwnerID           *uuid.UUID `json:"owner_id,omitempty"`
	Name              string     `json:"name"`
	Location          string     `json:"location"`
	TotalAreaHectares float64    `json:"total_area_hectares"`
	Fields            []*Field   `json:"fields,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Field is a plot of land within a farm
type Field struct {
	ID           uuid.UUID `json:"id"`
	FarmID       uuid.UUID `json:"farm"`
	Name         string    `json:"name"`
	CropType     CropType  `json:"crop_type"`
	AreaHectares float64   `json:"area_hectares"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	CreatedAt    time.Time `json:"created_at"`

	// Taken from the parent farm for access checks
	OrganizationID uuid.UUID  `json:"-"`
	FarmOwnerID    *uuid.UUID `json:"-"`
}

// CreateFarmRequest is the client payload for a new farm. Organization and
// owner are never taken from the payload.
type CreateFarmRequest struct {
	Name              string  `json:"name"`
	Location          string  `json:"location"`
	TotalAreaHectares float64 `json:"total_area_hectares"`
}

// UpdateFarmRequest changes the non-nil fields of a farm
type UpdateFarmRequest struct {
	Name              *string  `json:"name,omitempty"`
	Location          *string  `json:"location,omitempty"`
	TotalAreaHectares *float64 `json:"total_area_hectares,omitempty"`
}

// CreateFieldRequest is the client payload for a new field
type CreateFieldRequest struct {
	FarmID       uuid.UUID `json:"farm"`
	Name         string    `json:"name"`
	CropType     string    `json:"crop_type"`
	AreaHectares float64   `json:"area_hectares"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
}

// UpdateFieldRequest changes the non-nil fields of a field. Moving a field
// between farms is not supported.
type UpdateFieldRequest struct {
	Name         *string  `json:"name,omitempty"`
	CropType     *string  `json:"crop_type,omitempty"`
	AreaHectares *float64 `json:"area_hectares,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

var (
	ErrFarmNotFound  = errors.New("farm not found")
	ErrFieldNotFound = errors.New("field not found")
)
