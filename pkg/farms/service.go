package farms

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

// NewService creates a farm service
func NewService(store Store, authz *rbac.Authorizer) *Service {
	return &Service{store: store, authz: authz}
}

// ListFarms returns the farms tc may see
func (s *Service) ListFarms(ctx context.Context, tc *tenancy.Context) ([]*Farm, error) {
	if err := s.authz.Authorize(ctx, tc.Request(rbac.ActionList, rbac.ResourceFarm)); err != nil {
		return nil, err
	}
	return s.store.ListFarms(ctx, tc.OrgID(), tc.Visibility(rbac.ResourceFarm))
}

// CreateFarm creates a farm in tc's organization owned by the requester
func (s *Service) CreateFarm(ctx context.Context, tc *tenancy.Context, req *CreateFarmRequest) (*Farm, error) {
	if err := s.authz.Authorize(ctx, tc.Request(rbac.ActionCreate, rbac.ResourceFarm)); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	owner := tc.UserID()
	farm := &Farm{
		OrganizationID:    tc.OrgID(),
		OwnerID:           &owner,
		Name:              req.Name,
		Location:          req.Location,
		TotalAreaHectares: req.TotalAreaHectares,
	}
	if err := s.store.CreateFarm(ctx, farm); err != nil {
		return nil, err
	}

	observability.FromContext(ctx).WithField("farm_id", farm.ID.String()).Info("farm created")
	return farm, nil
}

// GetFarm returns a farm with its fields
func (s *Service) GetFarm(ctx context.Context, tc *tenancy.Context, id uuid.UUID) (*Farm, error) {
	farm, err := s.authorizedFarm(ctx, tc, rbac.ActionRead, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.store.ListFields(ctx, farm.OrganizationID, rbac.Filter{}, &farm.ID)
	if err != nil {
		return nil, err
	}
	farm.Fields = fields
	return farm, nil
}

// UpdateFarm updates a farm the requester may write
func (s *Service) UpdateFarm(ctx context.Context, tc *tenancy.Context, id uuid.UUID, req *UpdateFarmRequest) (*Farm, error) {
	if _, err := s.authorizedFarm(ctx, tc, rbac.ActionUpdate, id); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateFarm(ctx, id, req); err != nil {
		return nil, err
	}
	return s.store.GetFarm(ctx, id)
}

// DeleteFarm deletes a farm the requester may write
func (s *Service) DeleteFarm(ctx context.Context, tc *tenancy.Context, id uuid.UUID) error {
	if _, err := s.authorizedFarm(ctx, tc, rbac.ActionDelete, id); err != nil {
		return err
	}
	return s.store.DeleteFarm(ctx, id)
}

// ListFields returns the fields tc may see, optionally for one farm
func (s *Service) ListFields(ctx context.Context, tc *tenancy.Context, farmID *uuid.UUID) ([]*Field, error) {
	if err := s.authz.Authorize(ctx, tc.Request(rbac.ActionList, rbac.ResourceField)); err != nil {
		return nil, err
	}
	return s.store.ListFields(ctx, tc.OrgID(), tc.Visibility(rbac.ResourceField), farmID)
}

// CreateField adds a field to a farm. The farm must be in tc's organization
// and owned by the requester unless the requester is privileged.
func (s *Service) CreateField(ctx context.Context, tc *tenancy.Context, req *CreateFieldRequest) (*Field, error) {
	crop, err := req.validate()
	if err != nil {
		return nil, err
	}

	authzReq := tc.Request(rbac.ActionCreate, rbac.ResourceField)
	farm, err := s.store.GetFarm(ctx, req.FarmID)
	if errors.Is(err, ErrFarmNotFound) {
		authzReq.TargetMissing = true
		return nil, s.authz.Authorize(ctx, authzReq)
	}
	if err != nil {
		return nil, err
	}
	authzReq.ResourceOrgID = farm.OrganizationID
	authzReq.OwnerID = farm.OwnerID
	if err := s.authz.Authorize(ctx, authzReq); err != nil {
		return nil, err
	}

	field := &Field{
		FarmID:         farm.ID,
		Name:           req.Name,
		CropType:       crop,
		AreaHectares:   req.AreaHectares,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		OrganizationID: farm.OrganizationID,
		FarmOwnerID:    farm.OwnerID,
	}
	if err := s.store.CreateField(ctx, field); err != nil {
		return nil, err
	}
	return field, nil
}

// GetField returns a field the requester may see
func (s *Service) GetField(ctx context.Context, tc *tenancy.Context, id uuid.UUID) (*Field, error) {
	return s.authorizedField(ctx, tc, rbac.ActionRead, id)
}

// UpdateField updates a field the requester may write
func (s *Service) UpdateField(ctx context.Context, tc *tenancy.Context, id uuid.UUID, req *UpdateFieldRequest) (*Field, error) {
	field, err := s.authorizedField(ctx, tc, rbac.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	crop, err := req.validate(field)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateField(ctx, id, req, crop); err != nil {
		return nil, err
	}
	return s.store.GetField(ctx, id)
}

// DeleteField deletes a field the requester may write
func (s *Service) DeleteField(ctx context.Context, tc *tenancy.Context, id uuid.UUID) error {
	if _, err := s.authorizedField(ctx, tc, rbac.ActionDelete, id); err != nil {
		return err
	}
	return s.store.DeleteField(ctx, id)
}

func (s *Service) authorizedFarm(ctx context.Context, tc *tenancy.Context, action rbac.Action, id uuid.UUID) (*Farm, error) {
	req := tc.Request(action, rbac.ResourceFarm)
	farm, err := s.store.GetFarm(ctx, id)
	if errors.Is(err, ErrFarmNotFound) {
		req.TargetMissing = true
		return nil, s.authz.Authorize(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	req.ResourceOrgID = farm.OrganizationID
	req.OwnerID = farm.OwnerID
	if err := s.authz.Authorize(ctx, req); err != nil {
		return nil, err
	}
	return farm, nil
}

func (s *Service) authorizedField(ctx context.Context, tc *tenancy.Context, action rbac.Action, id uuid.UUID) (*Field, error) {
	req := tc.Request(action, rbac.ResourceField)
	field, err := s.store.GetField(ctx, id)
	if errors.Is(err, ErrFieldNotFound) {
		req.TargetMissing = true
		return nil, s.authz.Authorize(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	req.ResourceOrgID = field.OrganizationID
	req.OwnerID = field.FarmOwnerID
	if err := s.authz.Authorize(ctx, req); err != nil {
		return nil, err
	}
	return field, nil
}
