package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/audit"
	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/billing"
	"github.com/platinummonkey/agronomy/pkg/farms"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/samples"
)

// In-memory stores behind the real services. They mirror the Postgres
// stores' contracts closely enough for handler tests.

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*auth.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]*auth.User)}
}

func (m *memUsers) CreateUser(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range m.users {
		if u.Email == user.Email {
			return auth.ErrUserExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.DateJoined = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

type memSubscriptions struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*billing.Subscription
}

func newMemSubscriptions() *memSubscriptions {
	return &memSubscriptions{subs: make(map[uuid.UUID]*billing.Subscription)}
}

func (m *memSubscriptions) GetSubscription(_ context.Context, orgID uuid.UUID) (*billing.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[orgID]
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *memSubscriptions) UpdateSubscription(ctx context.Context, orgID uuid.UUID, req *billing.UpdateSubscriptionRequest) (*billing.Subscription, error) {
	m.mu.Lock()
	sub, ok := m.subs[orgID]
	if !ok {
		m.mu.Unlock()
		return nil, billing.ErrSubscriptionNotFound
	}
	if req.Plan != nil {
		sub.Plan = *req.Plan
	}
	if req.Status != nil {
		sub.Status = *req.Status
	}
	if req.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart = req.CurrentPeriodStart
	}
	if req.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = req.CurrentPeriodEnd
	}
	m.mu.Unlock()
	return m.GetSubscription(ctx, orgID)
}

func (m *memSubscriptions) CreateDefaultSubscription(_ context.Context, orgID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[orgID]; ok {
		return false, nil
	}
	m.subs[orgID] = &billing.Subscription{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Plan:           billing.PlanFree,
		Status:         billing.StatusActive,
		CreatedAt:      time.Now(),
	}
	return true, nil
}

func (m *memSubscriptions) set(orgID uuid.UUID, status billing.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[orgID].Status = status
}

type memOrgs struct {
	mu          sync.Mutex
	orgs        map[uuid.UUID]*orgs.Organization
	memberships []*orgs.Membership
	users       *memUsers
	subs        *memSubscriptions
}

var _ orgs.Service = (*memOrgs)(nil)

func newMemOrgs(users *memUsers, subs *memSubscriptions) *memOrgs {
	return &memOrgs{orgs: make(map[uuid.UUID]*orgs.Organization), users: users, subs: subs}
}

func (m *memOrgs) CreateOrganization(ctx context.Context, name string) (*orgs.Organization, error) {
	m.mu.Lock()
	for _, o := range m.orgs {
		if o.Name == name {
			m.mu.Unlock()
			return nil, orgs.ErrOrganizationExists
		}
	}
	org := &orgs.Organization{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	m.orgs[org.ID] = org
	m.mu.Unlock()

	if _, err := m.subs.CreateDefaultSubscription(ctx, org.ID); err != nil {
		return nil, err
	}
	return org, nil
}

func (m *memOrgs) GetOrganization(_ context.Context, id uuid.UUID) (*orgs.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, orgs.ErrOrganizationNotFound
	}
	return org, nil
}

func (m *memOrgs) ListOrganizations(context.Context) ([]*orgs.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*orgs.Organization
	for _, o := range m.orgs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memOrgs) DeleteOrganization(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[id]; !ok {
		return orgs.ErrOrganizationNotFound
	}
	delete(m.orgs, id)
	return nil
}

func (m *memOrgs) decorate(ms *orgs.Membership) *orgs.Membership {
	cp := *ms
	if org, ok := m.orgs[ms.OrganizationID]; ok {
		cp.OrganizationName = org.Name
	}
	if u, err := m.users.GetUserByID(context.Background(), ms.UserID); err == nil {
		cp.UserEmail = u.Email
	}
	return &cp
}

func (m *memOrgs) ListMembers(_ context.Context, orgID uuid.UUID) ([]*orgs.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*orgs.Membership
	for _, ms := range m.memberships {
		if ms.OrganizationID == orgID {
			out = append(out, m.decorate(ms))
		}
	}
	return out, nil
}

func (m *memOrgs) GetMember(_ context.Context, orgID, userID uuid.UUID) (*orgs.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.memberships {
		if ms.OrganizationID == orgID && ms.UserID == userID {
			return m.decorate(ms), nil
		}
	}
	return nil, orgs.ErrMemberNotFound
}

func (m *memOrgs) ListMembershipsForUser(_ context.Context, userID uuid.UUID) ([]*orgs.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*orgs.Membership
	for _, ms := range m.memberships {
		if ms.UserID == userID {
			out = append(out, m.decorate(ms))
		}
	}
	return out, nil
}

func (m *memOrgs) AddMember(_ context.Context, orgID, userID uuid.UUID, role rbac.Role) (*orgs.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.memberships {
		if ms.OrganizationID == orgID && ms.UserID == userID {
			return nil, orgs.ErrMemberExists
		}
	}
	ms := &orgs.Membership{ID: uuid.New(), UserID: userID, OrganizationID: orgID, Role: role, CreatedAt: time.Now()}
	m.memberships = append(m.memberships, ms)
	return m.decorate(ms), nil
}

func (m *memOrgs) UpdateMemberRole(_ context.Context, orgID, userID uuid.UUID, role rbac.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.memberships {
		if ms.OrganizationID == orgID && ms.UserID == userID {
			ms.Role = role
			return nil
		}
	}
	return orgs.ErrMemberNotFound
}

func (m *memOrgs) RemoveMember(_ context.Context, orgID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ms := range m.memberships {
		if ms.OrganizationID == orgID && ms.UserID == userID {
			m.memberships = append(m.memberships[:i], m.memberships[i+1:]...)
			return nil
		}
	}
	return orgs.ErrMemberNotFound
}

type memFarms struct {
	mu     sync.Mutex
	farms  map[uuid.UUID]*farms.Farm
	fields map[uuid.UUID]*farms.Field
}

var _ farms.Store = (*memFarms)(nil)

func newMemFarms() *memFarms {
	return &memFarms{farms: make(map[uuid.UUID]*farms.Farm), fields: make(map[uuid.UUID]*farms.Field)}
}

func (m *memFarms) CreateFarm(_ context.Context, farm *farms.Farm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	farm.ID = uuid.New()
	farm.CreatedAt = time.Now()
	farm.UpdatedAt = farm.CreatedAt
	cp := *farm
	m.farms[farm.ID] = &cp
	return nil
}

func (m *memFarms) GetFarm(_ context.Context, id uuid.UUID) (*farms.Farm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.farms[id]
	if !ok {
		return nil, farms.ErrFarmNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFarms) ListFarms(_ context.Context, orgID uuid.UUID, filter rbac.Filter) ([]*farms.Farm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*farms.Farm
	for _, f := range m.farms {
		if f.OrganizationID != orgID {
			continue
		}
		if filter.OwnerID != nil && (f.OwnerID == nil || *f.OwnerID != *filter.OwnerID) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memFarms) UpdateFarm(_ context.Context, id uuid.UUID, req *farms.UpdateFarmRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.farms[id]
	if !ok {
		return farms.ErrFarmNotFound
	}
	if req.Name != nil {
		f.Name = *req.Name
	}
	if req.Location != nil {
		f.Location = *req.Location
	}
	if req.TotalAreaHectares != nil {
		f.TotalAreaHectares = *req.TotalAreaHectares
	}
	return nil
}

func (m *memFarms) DeleteFarm(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.farms[id]; !ok {
		return farms.ErrFarmNotFound
	}
	delete(m.farms, id)
	for fid, field := range m.fields {
		if field.FarmID == id {
			delete(m.fields, fid)
		}
	}
	return nil
}

func (m *memFarms) CreateField(_ context.Context, field *farms.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	field.ID = uuid.New()
	field.CreatedAt = time.Now()
	cp := *field
	m.fields[field.ID] = &cp
	return nil
}

func (m *memFarms) field(id uuid.UUID) (*farms.Field, error) {
	field, ok := m.fields[id]
	if !ok {
		return nil, farms.ErrFieldNotFound
	}
	cp := *field
	farm := m.farms[field.FarmID]
	cp.OrganizationID = farm.OrganizationID
	cp.FarmOwnerID = farm.OwnerID
	return &cp, nil
}

func (m *memFarms) GetField(_ context.Context, id uuid.UUID) (*farms.Field, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.field(id)
}

func (m *memFarms) ListFields(_ context.Context, orgID uuid.UUID, filter rbac.Filter, farmID *uuid.UUID) ([]*farms.Field, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*farms.Field
	for id := range m.fields {
		field, _ := m.field(id)
		if field.OrganizationID != orgID {
			continue
		}
		if farmID != nil && field.FarmID != *farmID {
			continue
		}
		if filter.OwnerID != nil && (field.FarmOwnerID == nil || *field.FarmOwnerID != *filter.OwnerID) {
			continue
		}
		out = append(out, field)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memFarms) UpdateField(_ context.Context, id uuid.UUID, req *farms.UpdateFieldRequest, crop *farms.CropType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	field, ok := m.fields[id]
	if !ok {
		return farms.ErrFieldNotFound
	}
	if req.Name != nil {
		field.Name = *req.Name
	}
	if crop != nil {
		field.CropType = *crop
	}
	if req.AreaHectares != nil {
		field.AreaHectares = *req.AreaHectares
	}
	if req.Latitude != nil {
		field.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		field.Longitude = req.Longitude
	}
	return nil
}

func (m *memFarms) DeleteField(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fields[id]; !ok {
		return farms.ErrFieldNotFound
	}
	delete(m.fields, id)
	return nil
}

type memSamples struct {
	mu      sync.Mutex
	samples map[uuid.UUID]*samples.SoilSample
	orgs    *memOrgs
}

var _ samples.Store = (*memSamples)(nil)

func newMemSamples(o *memOrgs) *memSamples {
	return &memSamples{samples: make(map[uuid.UUID]*samples.SoilSample), orgs: o}
}

func (m *memSamples) CreateSample(ctx context.Context, sample *samples.SoilSample) error {
	if sample.UploadedBy != nil {
		if _, err := m.orgs.GetMember(ctx, sample.OrganizationID, *sample.UploadedBy); err != nil {
			return samples.ErrUploaderNotMember
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sample.ID = uuid.New()
	sample.CreatedAt = time.Now()
	sample.UpdatedAt = sample.CreatedAt
	cp := *sample
	m.samples[sample.ID] = &cp
	return nil
}

func (m *memSamples) GetSample(_ context.Context, id uuid.UUID) (*samples.SoilSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.samples[id]
	if !ok {
		return nil, samples.ErrSampleNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSamples) ListSamples(_ context.Context, orgID uuid.UUID) ([]*samples.SoilSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*samples.SoilSample
	for _, s := range m.samples {
		if s.OrganizationID == orgID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memSamples) UpdateSample(_ context.Context, id uuid.UUID, req *samples.UpdateSampleRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.samples[id]
	if !ok {
		return samples.ErrSampleNotFound
	}
	if req.Label != nil {
		s.Label = *req.Label
	}
	if req.PH != nil {
		s.PH = *req.PH
	}
	if req.DepthCM != nil {
		s.DepthCM = *req.DepthCM
	}
	if req.CropType != nil {
		s.CropType = *req.CropType
	}
	return nil
}

func (m *memSamples) DeleteSample(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.samples[id]; !ok {
		return samples.ErrSampleNotFound
	}
	delete(m.samples, id)
	return nil
}

type memAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (m *memAudit) Log(_ context.Context, event *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) Close() error { return nil }

func (m *memAudit) Search(_ context.Context, filter audit.SearchFilter) ([]*audit.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*audit.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if filter.OrganizationID != nil && (e.OrganizationID == nil || *e.OrganizationID != *filter.OrganizationID) {
			continue
		}
		if len(filter.EventTypes) > 0 && !containsType(filter.EventTypes, e.EventType) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memAudit) Cleanup(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memAudit) types() []audit.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.EventType, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType
	}
	return out
}

func containsType(types []audit.EventType, t audit.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
