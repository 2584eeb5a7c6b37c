package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusRunning},
	StatusRunning: {StatusSuccess, StatusFailed},
}

// CanTransition reports whether s may move to next
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ParseStatus parses a stored status
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid job status %q", s)
}

// MethodKey is the key of the model tag inside PredictedProperties
const MethodKey = "Method"

// Job is one soil analysis request
type Job struct {
	ID                  uuid.UUID              `json:"id"`
	OrganizationID      uuid.UUID              `json:"-"`
	RequestedBy         *uuid.UUID             `json:"-"`
	Status              Status                 `json:"status"`
	Spectra             []float64              `json:"spectra"`
	PredictedProperties map[string]interface{} `json:"predicted_properties"`
	ErrorMessage        *string                `json:"error_message"`
	Attempts            int                    `json:"-"`
	LeaseExpiresAt      *time.Time             `json:"-"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"-"`
}

// CreateJobRequest is the body of a job submission. Spectra is kept raw so
// its shape can be validated before decoding.
type CreateJobRequest struct {
	Spectra json.RawMessage `json:"spectra"`
}

// Expired is a RUNNING job whose lease has run out
type Expired struct {
	ID       uuid.UUID
	Attempts int
}

var (
	// ErrJobNotFound is returned when the job row does not exist
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotClaimable is returned when the job is terminal, leased by
	// another worker, or out of attempts
	ErrJobNotClaimable = errors.New("job is not claimable")
	// ErrJobNotRunning is returned when completing or failing a job that is
	// not RUNNING
	ErrJobNotRunning = errors.New("job is not running")
)
