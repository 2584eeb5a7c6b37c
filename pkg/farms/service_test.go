package farms

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

type memoryStore struct {
	farms  map[uuid.UUID]*Farm
	fields map[uuid.UUID]*Field
}

func newMemoryStore() *memoryStore {
	return &memoryStore{farms: map[uuid.UUID]*Farm{}, fields: map[uuid.UUID]*Field{}}
}

func (m *memoryStore) CreateFarm(_ context.Context, farm *Farm) error {
	farm.ID = uuid.New()
	farm.CreatedAt = time.Now()
	m.farms[farm.ID] = farm
	return nil
}

func (m *memoryStore) GetFarm(_ context.Context, id uuid.UUID) (*Farm, error) {
	farm, ok := m.farms[id]
	if !ok {
		return nil, ErrFarmNotFound
	}
	cp := *farm
	return &cp, nil
}

func (m *memoryStore) ListFarms(_ context.Context, orgID uuid.UUID, filter rbac.Filter) ([]*Farm, error) {
	var out []*Farm
	for _, farm := range m.farms {
		if farm.OrganizationID != orgID {
			continue
		}
		if filter.OwnerID != nil && (farm.OwnerID == nil || *farm.OwnerID != *filter.OwnerID) {
			continue
		}
		out = append(out, farm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) UpdateFarm(_ context.Context, id uuid.UUID, req *UpdateFarmRequest) error {
	farm, ok := m.farms[id]
	if !ok {
		return ErrFarmNotFound
	}
	if req.Name != nil {
		farm.Name = *req.Name
	}
	if req.Location != nil {
		farm.Location = *req.Location
	}
	if req.TotalAreaHectares != nil {
		farm.TotalAreaHectares = *req.TotalAreaHectares
	}
	return nil
}

func (m *memoryStore) DeleteFarm(_ context.Context, id uuid.UUID) error {
	if _, ok := m.farms[id]; !ok {
		return ErrFarmNotFound
	}
	delete(m.farms, id)
	for fid, field := range m.fields {
		if field.FarmID == id {
			delete(m.fields, fid)
		}
	}
	return nil
}

func (m *memoryStore) CreateField(_ context.Context, field *Field) error {
	field.ID = uuid.New()
	m.fields[field.ID] = field
	return nil
}

func (m *memoryStore) GetField(_ context.Context, id uuid.UUID) (*Field, error) {
	field, ok := m.fields[id]
	if !ok {
		return nil, ErrFieldNotFound
	}
	farm := m.farms[field.FarmID]
	cp := *field
	cp.OrganizationID = farm.OrganizationID
	cp.FarmOwnerID = farm.OwnerID
	return &cp, nil
}

func (m *memoryStore) ListFields(_ context.Context, orgID uuid.UUID, filter rbac.Filter, farmID *uuid.UUID) ([]*Field, error) {
	var out []*Field
	for _, field := range m.fields {
		farm := m.farms[field.FarmID]
		if farm.OrganizationID != orgID {
			continue
		}
		if filter.OwnerID != nil && (farm.OwnerID == nil || *farm.OwnerID != *filter.OwnerID) {
			continue
		}
		if farmID != nil && field.FarmID != *farmID {
			continue
		}
		out = append(out, field)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) UpdateField(_ context.Context, id uuid.UUID, req *UpdateFieldRequest, crop *CropType) error {
	field, ok := m.fields[id]
	if !ok {
		return ErrFieldNotFound
	}
	if req.Name != nil {
		field.Name = *req.Name
	}
	if crop != nil {
		field.CropType = *crop
	}
	if req.Latitude != nil {
		field.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		field.Longitude = req.Longitude
	}
	return nil
}

func (m *memoryStore) DeleteField(_ context.Context, id uuid.UUID) error {
	if _, ok := m.fields[id]; !ok {
		return ErrFieldNotFound
	}
	delete(m.fields, id)
	return nil
}

func member(org *orgs.Organization, role rbac.Role) *tenancy.Context {
	return &tenancy.Context{User: &auth.User{ID: uuid.New()}, Organization: org, Role: role}
}

type fixture struct {
	store   *memoryStore
	service *Service
	orgA    *orgs.Organization
	orgB    *orgs.Organization
}

func newFixture() *fixture {
	store := newMemoryStore()
	return &fixture{
		store:   store,
		service: NewService(store, rbac.NewAuthorizer(nil)),
		orgA:    &orgs.Organization{ID: uuid.New(), Name: "Org A"},
		orgB:    &orgs.Organization{ID: uuid.New(), Name: "Org B"},
	}
}

func (f *fixture) farm(t *testing.T, tc *tenancy.Context, name string) *Farm {
	t.Helper()
	farm, err := f.service.CreateFarm(context.Background(), tc, &CreateFarmRequest{Name: name, Location: "Nakuru", TotalAreaHectares: 12.5})
	require.NoError(t, err)
	return farm
}

func TestCreateFarm_StampsOrganizationAndOwner(t *testing.T) {
	f := newFixture()
	viewer := member(f.orgA, rbac.RoleViewer)

	farm := f.farm(t, viewer, "Green Valley")
	assert.Equal(t, f.orgA.ID, farm.OrganizationID)
	require.NotNil(t, farm.OwnerID)
	assert.Equal(t, viewer.UserID(), *farm.OwnerID)
}

func TestCreateFarm_Validation(t *testing.T) {
	f := newFixture()
	_, err := f.service.CreateFarm(context.Background(), member(f.orgA, rbac.RoleOwner), &CreateFarmRequest{TotalAreaHectares: -1})
	require.ErrorIs(t, err, validation.ErrValidationFailed)

	var fields []string
	for _, e := range validation.Fields(err) {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"name", "location", "total_area_hectares"}, fields)
}

func TestListFarms_Visibility(t *testing.T) {
	f := newFixture()
	viewer := member(f.orgA, rbac.RoleViewer)
	agronomist := member(f.orgA, rbac.RoleAgronomist)
	other := member(f.orgB, rbac.RoleOwner)

	mine := f.farm(t, viewer, "A1")
	f.farm(t, agronomist, "A2")
	f.farm(t, other, "B1")

	farms, err := f.service.ListFarms(context.Background(), viewer)
	require.NoError(t, err)
	require.Len(t, farms, 1)
	assert.Equal(t, mine.ID, farms[0].ID)

	for _, role := range []rbac.Role{rbac.RoleOwner, rbac.RoleOrgAdmin, rbac.RoleAgronomist} {
		farms, err := f.service.ListFarms(context.Background(), member(f.orgA, role))
		require.NoError(t, err)
		assert.Len(t, farms, 2, "role %s sees every farm in the organization", role)
	}
}

func TestGetFarm(t *testing.T) {
	f := newFixture()
	owner := member(f.orgA, rbac.RoleViewer)
	farm := f.farm(t, owner, "A1")

	_, err := f.service.CreateField(context.Background(), owner, &CreateFieldRequest{FarmID: farm.ID, Name: "Block A", AreaHectares: 2})
	require.NoError(t, err)

	got, err := f.service.GetFarm(context.Background(), owner, farm.ID)
	require.NoError(t, err)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, CropMaize, got.Fields[0].CropType)

	_, err = f.service.GetFarm(context.Background(), member(f.orgA, rbac.RoleViewer), farm.ID)
	assert.ErrorIs(t, err, rbac.ErrForbidden, "another viewer does not own the farm")

	_, err = f.service.GetFarm(context.Background(), member(f.orgB, rbac.RoleOwner), farm.ID)
	var fe *rbac.ForbiddenError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, rbac.ReasonCrossOrganization, fe.Reason)

	_, err = f.service.GetFarm(context.Background(), owner, uuid.New())
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, rbac.ReasonCrossOrganization, fe.Reason, "an unknown id is denied like a foreign one")
}

func TestUpdateAndDeleteFarm(t *testing.T) {
	f := newFixture()
	viewer := member(f.orgA, rbac.RoleViewer)
	farm := f.farm(t, viewer, "A1")

	name := "Renamed"
	updated, err := f.service.UpdateFarm(context.Background(), member(f.orgA, rbac.RoleOrgAdmin), farm.ID, &UpdateFarmRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	assert.ErrorIs(t, f.service.DeleteFarm(context.Background(), member(f.orgA, rbac.RoleViewer), farm.ID), rbac.ErrForbidden)
	require.NoError(t, f.service.DeleteFarm(context.Background(), viewer, farm.ID))
	assert.Empty(t, f.store.farms)
}

func TestCreateField_CrossOrganizationForbiddenForEveryRole(t *testing.T) {
	f := newFixture()
	farmB := f.farm(t, member(f.orgB, rbac.RoleOwner), "B1")

	for _, role := range rbac.Roles {
		t.Run(string(role), func(t *testing.T) {
			_, err := f.service.CreateField(context.Background(), member(f.orgA, role), &CreateFieldRequest{FarmID: farmB.ID, Name: "intruder", AreaHectares: 1})
			var fe *rbac.ForbiddenError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, rbac.ReasonFieldCrossOrganization, fe.Reason)
		})
	}
	assert.Empty(t, f.store.fields)
}

func TestCreateField_UnknownFarmDeniedLikeForeignFarm(t *testing.T) {
	f := newFixture()
	farmB := f.farm(t, member(f.orgB, rbac.RoleOwner), "B1")
	tc := member(f.orgA, rbac.RoleOwner)

	_, foreign := f.service.CreateField(context.Background(), tc, &CreateFieldRequest{FarmID: farmB.ID, Name: "x", AreaHectares: 1})
	_, missing := f.service.CreateField(context.Background(), tc, &CreateFieldRequest{FarmID: uuid.New(), Name: "x", AreaHectares: 1})

	var fe *rbac.ForbiddenError
	require.True(t, errors.As(missing, &fe))
	assert.Equal(t, rbac.ReasonFieldCrossOrganization, fe.Reason)
	assert.Equal(t, foreign.Error(), missing.Error())
}

func TestCreateField_Ownership(t *testing.T) {
	f := newFixture()
	owner := member(f.orgA, rbac.RoleViewer)
	farm := f.farm(t, owner, "A1")

	_, err := f.service.CreateField(context.Background(), member(f.orgA, rbac.RoleViewer), &CreateFieldRequest{FarmID: farm.ID, Name: "x", AreaHectares: 1})
	var fe *rbac.ForbiddenError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, rbac.ReasonFieldNotOwner, fe.Reason)

	field, err := f.service.CreateField(context.Background(), member(f.orgA, rbac.RoleAgronomist), &CreateFieldRequest{FarmID: farm.ID, Name: "x", CropType: "coffee", AreaHectares: 1})
	require.NoError(t, err)
	assert.Equal(t, CropCoffee, field.CropType)
}

func TestCreateField_Validation(t *testing.T) {
	f := newFixture()
	tc := member(f.orgA, rbac.RoleOwner)
	lat := 1.0

	farm := f.farm(t, tc, "A1")
	_, err := f.service.CreateField(context.Background(), tc, &CreateFieldRequest{FarmID: farm.ID, Name: "x", CropType: "rice", Latitude: &lat})
	fields := validation.Fields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "crop_type", fields[0].Field)
	assert.Equal(t, "latitude", fields[1].Field)
}

func TestListFields_Visibility(t *testing.T) {
	f := newFixture()
	viewer := member(f.orgA, rbac.RoleViewer)
	admin := member(f.orgA, rbac.RoleOrgAdmin)

	mine := f.farm(t, viewer, "A1")
	theirs := f.farm(t, admin, "A2")
	for _, farm := range []*Farm{mine, theirs} {
		_, err := f.service.CreateField(context.Background(), admin, &CreateFieldRequest{FarmID: farm.ID, Name: farm.Name + "-f", AreaHectares: 1})
		require.NoError(t, err)
	}

	fields, err := f.service.ListFields(context.Background(), viewer, nil)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, mine.ID, fields[0].FarmID)

	fields, err = f.service.ListFields(context.Background(), admin, nil)
	require.NoError(t, err)
	assert.Len(t, fields, 2)

	fields, err = f.service.ListFields(context.Background(), admin, &theirs.ID)
	require.NoError(t, err)
	assert.Len(t, fields, 1)
}

func TestUpdateField_CoordinatePair(t *testing.T) {
	f := newFixture()
	tc := member(f.orgA, rbac.RoleOwner)
	farm := f.farm(t, tc, "A1")
	field, err := f.service.CreateField(context.Background(), tc, &CreateFieldRequest{FarmID: farm.ID, Name: "x", AreaHectares: 1})
	require.NoError(t, err)

	lat := 10.0
	_, err = f.service.UpdateField(context.Background(), tc, field.ID, &UpdateFieldRequest{Latitude: &lat})
	assert.ErrorIs(t, err, validation.ErrValidationFailed)

	long := 20.0
	updated, err := f.service.UpdateField(context.Background(), tc, field.ID, &UpdateFieldRequest{Latitude: &lat, Longitude: &long})
	require.NoError(t, err)
	assert.Equal(t, 10.0, *updated.Latitude)

	require.NoError(t, f.service.DeleteField(context.Background(), tc, field.ID))
	_, err = f.service.GetField(context.Background(), tc, field.ID)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	assert.NotContains(t, f.store.fields, field.ID)
}
