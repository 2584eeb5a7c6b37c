package samples

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/validation"
)

// DefaultDepthCM is used when a sample is created without a depth
const DefaultDepthCM = 15

// SoilSample is one soil measurement
type SoilSample struct {
	ID              uuid.UUID       `json:"id"`
	OrganizationID  uuid.UUID       `json:"organization_id"`
	UploadedBy      *uuid.UUID      `json:"uploaded_by,omitempty"`
	UploadedByEmail string          `json:"uploaded_by_email,omitempty"`
	Label           string          `json:"label"`
	Latitude        *float64        `json:"latitude"`
	Longitude       *float64        `json:"longitude"`
	DepthCM         int             `json:"depth_cm"`
	CropType        string          `json:"crop_type"`
	PH              float64         `json:"ph"`
	Nitrogen        *float64        `json:"nitrogen"`
	Phosphorus      *float64        `json:"phosphorus"`
	Potassium       *float64        `json:"potassium"`
	Metadata        json.RawMessage `json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreateSampleRequest is the client payload for a new sample. Organization
// and uploader are never taken from the payload.
type CreateSampleRequest struct {
	Label      string          `json:"label"`
	Latitude   *float64        `json:"latitude"`
	Longitude  *float64        `json:"longitude"`
	DepthCM    *int            `json:"depth_cm"`
	CropType   string          `json:"crop_type"`
	PH         *float64        `json:"ph"`
	Nitrogen   *float64        `json:"nitrogen"`
	Phosphorus *float64        `json:"phosphorus"`
	Potassium  *float64        `json:"potassium"`
	Metadata   json.RawMessage `json:"metadata"`
}

// UpdateSampleRequest changes the non-nil fields of a sample
type UpdateSampleRequest struct {
	Label      *string         `json:"label,omitempty"`
	Latitude   *float64        `json:"latitude,omitempty"`
	Longitude  *float64        `json:"longitude,omitempty"`
	DepthCM    *int            `json:"depth_cm,omitempty"`
	CropType   *string         `json:"crop_type,omitempty"`
	PH         *float64        `json:"ph,omitempty"`
	Nitrogen   *float64        `json:"nitrogen,omitempty"`
	Phosphorus *float64        `json:"phosphorus,omitempty"`
	Potassium  *float64        `json:"potassium,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// ErrSampleNotFound is returned for an unknown sample id
var ErrSampleNotFound = errors.New("soil sample not found")

// ErrUploaderNotMember rejects a sample whose uploader has no membership in
// the sample's organization
var ErrUploaderNotMember = validation.New("uploaded_by", "The uploader must be a member of the assigned organization.")
