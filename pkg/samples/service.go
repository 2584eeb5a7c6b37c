package samples

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
)

// Service applies access rules on top of a Store
type Service struct {
	store Store
	authz *rbac.Authorizer
}

// NewService creates a sample service
func NewService(store Store, authz *rbac.Authorizer) *Service {
	return &Service{store: store, authz: authz}
}

// ListSamples returns every sample of tc's organization
func (s *Service) ListSamples(ctx context.Context, tc *tenancy.Context) ([]*SoilSample, error) {
	if err := s.authz.Authorize(ctx, tc.Request(rbac.ActionList, rbac.ResourceSoilSample)); err != nil {
		return nil, err
	}
	return s.store.ListSamples(ctx, tc.OrgID())
}

// CreateSample records a sample in tc's organization uploaded by the
// requester
func (s *Service) CreateSample(ctx context.Context, tc *tenancy.Context, req *CreateSampleRequest) (*SoilSample, error) {
	if err := s.authz.Authorize(ctx, tc.Request(rbac.ActionCreate, rbac.ResourceSoilSample)); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	uploader := tc.UserID()
	sample := &SoilSample{
		OrganizationID: tc.OrgID(),
		UploadedBy:     &uploader,
		Label:          req.Label,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		DepthCM:        *req.DepthCM,
		CropType:       req.CropType,
		PH:             *req.PH,
		Nitrogen:       req.Nitrogen,
		Phosphorus:     req.Phosphorus,
		Potassium:      req.Potassium,
		Metadata:       req.Metadata,
	}
	if tc.User != nil {
		sample.UploadedByEmail = tc.User.Email
	}
	if err := s.store.CreateSample(ctx, sample); err != nil {
		return nil, err
	}

	observability.FromContext(ctx).WithField("sample_id", sample.ID.String()).Info("soil sample created")
	return sample, nil
}

// GetSample returns a sample of tc's organization
func (s *Service) GetSample(ctx context.Context, tc *tenancy.Context, id uuid.UUID) (*SoilSample, error) {
	return s.authorized(ctx, tc, rbac.ActionRead, id)
}

// UpdateSample updates a sample of tc's organization
func (s *Service) UpdateSample(ctx context.Context, tc *tenancy.Context, id uuid.UUID, req *UpdateSampleRequest) (*SoilSample, error) {
	current, err := s.authorized(ctx, tc, rbac.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	if err := req.validate(current); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSample(ctx, id, req); err != nil {
		return nil, err
	}
	return s.store.GetSample(ctx, id)
}

// DeleteSample deletes a sample of tc's organization
func (s *Service) DeleteSample(ctx context.Context, tc *tenancy.Context, id uuid.UUID) error {
	if _, err := s.authorized(ctx, tc, rbac.ActionDelete, id); err != nil {
		return err
	}
	return s.store.DeleteSample(ctx, id)
}

func (s *Service) authorized(ctx context.Context, tc *tenancy.Context, action rbac.Action, id uuid.UUID) (*SoilSample, error) {
	req := tc.Request(action, rbac.ResourceSoilSample)
	sample, err := s.store.GetSample(ctx, id)
	if errors.Is(err, ErrSampleNotFound) {
		req.TargetMissing = true
		return nil, s.authz.Authorize(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	req.ResourceOrgID = sample.OrganizationID
	if err := s.authz.Authorize(ctx, req); err != nil {
		return nil, err
	}
	return sample, nil
}
