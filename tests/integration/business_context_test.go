package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	apptenancy "github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/application/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/persistence"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/persistence/models"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type contextFixture struct {
	db         *TestDB
	businesses *persistence.GormBusinessRepository
	requests   *persistence.GormLinkRequestRepository
	resolver   *apptenancy.BusinessResolver
	links      *apptenancy.LinkRequestService
}

func newContextFixture(t *testing.T) *contextFixture {
	db := NewSharedTestDB(t)
	f := &contextFixture{
		db:         db,
		businesses: persistence.NewGormBusinessRepository(db.DB),
		requests:   persistence.NewGormLinkRequestRepository(db.DB),
	}
	f.resolver = apptenancy.NewBusinessResolver(
		f.businesses,
		persistence.NewGormUserProfileRepository(db.DB),
		persistence.NewGormStaffRepository(db.DB),
		zap.NewNop(),
	)
	f.links = apptenancy.NewLinkRequestService(f.businesses, f.requests, telemetry.NoopContextMetrics(), zap.NewNop())
	return f
}

func (f *contextFixture) owner(t *testing.T, id, name, uid string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, f.businesses.Create(context.Background(), &tenancy.Business{
		ID:        id,
		Name:      name,
		Owner:     tenancy.Owner{UserID: uid, Name: name + " Owner"},
		Plan:      tenancy.PlanInfo{Type: "pro", Status: "active", Currency: "EGP"},
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (f *contextFixture) staff(t *testing.T, businessID, uid, permissions string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, f.db.DB.Create(&models.UserProfileModel{
		UID: uid, BusinessID: businessID, CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, f.db.DB.Create(&models.StaffModel{
		BusinessID:  businessID,
		StaffUID:    uid,
		Role:        string(tenancy.RoleStaff),
		Name:        "Staff " + uid,
		Permissions: datatypes.JSON(permissions),
		CreatedAt:   now,
		UpdatedAt:   now,
	}).Error)
}

func (f *contextFixture) resolve(t *testing.T, uid, email string) tenancy.ResolvedContext {
	t.Helper()
	resolved, err := f.resolver.ResolveOnce(context.Background(), apptenancy.ResolveInput{
		Identity: tenancy.Identity{UID: uid, Email: email},
	})
	require.NoError(t, err)
	return resolved
}

func TestPostgres_ResolveMembers(t *testing.T) {
	f := newContextFixture(t)
	f.owner(t, "biz-a", "Alpha", "owner-a")
	f.staff(t, "biz-a", "clerk", `{"orders":["view","edit"],"settings":["view"]}`)

	owner := f.resolve(t, "owner-a", "owner@alpha.io")
	assert.Equal(t, "biz-a", owner.BusinessID)
	assert.Equal(t, tenancy.RoleOwner, owner.Role)
	assert.True(t, owner.PermissionSet().Has("settings_edit"))

	clerk := f.resolve(t, "clerk", "clerk@alpha.io")
	assert.Equal(t, "biz-a", clerk.BusinessID)
	assert.Equal(t, tenancy.RoleStaff, clerk.Role)
	assert.True(t, clerk.PermissionSet().HasAll("orders_view", "orders_edit", "settings_view"))
	assert.False(t, clerk.PermissionSet().Has("settings_edit"))

	_, err := f.resolver.ResolveOnce(context.Background(), apptenancy.ResolveInput{
		Identity: tenancy.Identity{UID: "stranger", Email: "s@example.com"},
	})
	assert.ErrorIs(t, err, tenancy.ErrNoBusiness)
}

func TestPostgres_LinkedBusinesses(t *testing.T) {
	f := newContextFixture(t)
	ctx := context.Background()
	f.owner(t, "biz-a", "Alpha", "owner-a")
	f.owner(t, "biz-b", "Beta", "owner-b")

	require.NoError(t, f.businesses.AddLinkedBusiness(ctx, "biz-a", "biz-b"))
	require.NoError(t, f.businesses.AddLinkedBusiness(ctx, "biz-a", "biz-b"))

	stored, err := f.businesses.FindByID(ctx, "biz-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"biz-b"}, stored.LinkedBusinessIDs)

	resolved := f.resolve(t, "owner-a", "owner@alpha.io")
	require.Len(t, resolved.LinkedBusinesses, 1)
	assert.Equal(t, "Beta", resolved.LinkedBusinesses[0].Name)

	require.NoError(t, f.businesses.RemoveLinkedBusiness(ctx, "biz-a", "biz-b"))
	stored, err = f.businesses.FindByID(ctx, "biz-a")
	require.NoError(t, err)
	assert.Empty(t, stored.LinkedBusinessIDs)

	_, err = f.businesses.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPostgres_LinkRequestWorkflow(t *testing.T) {
	f := newContextFixture(t)
	ctx := context.Background()
	f.owner(t, "biz-a", "Alpha", "owner-a")
	f.owner(t, "biz-b", "Beta", "owner-b")

	alpha := f.resolve(t, "owner-a", "owner@alpha.io")

	req, err := f.links.Send(ctx, alpha, "biz-b", tenancy.AccessRead)
	require.NoError(t, err)
	assert.Equal(t, tenancy.LinkRequestPending, req.Status)
	assert.Equal(t, "Beta", req.ToBusinessName)

	t.Run("pending pair is unique in the store", func(t *testing.T) {
		// A stale context has no outgoing list, so the index has to catch it
		_, err := f.links.Send(ctx, alpha, "biz-b", tenancy.AccessRead)
		assert.ErrorIs(t, err, tenancy.ErrLinkPending)
	})

	pending, err := f.links.Pending(ctx, "biz-b")
	require.NoError(t, err)
	require.Len(t, pending.Incoming, 1)
	assert.Equal(t, req.ID, pending.Incoming[0].ID)

	_, err = f.links.Approve(ctx, "biz-a", req.ID)
	assert.ErrorIs(t, err, tenancy.ErrRequestForbidden)

	approved, err := f.links.Approve(ctx, "biz-b", req.ID)
	require.NoError(t, err)
	assert.Equal(t, tenancy.LinkRequestApproved, approved.Status)
	require.NotNil(t, approved.RespondedAt)

	_, err = f.links.Reject(ctx, "biz-b", req.ID)
	assert.ErrorIs(t, err, tenancy.ErrRequestNotPending)

	alpha = f.resolve(t, "owner-a", "owner@alpha.io")
	_, linked := alpha.FindLinkedBusiness("biz-b")
	assert.True(t, linked, "requester gains a link to the approving business")

	beta := f.resolve(t, "owner-b", "owner@beta.io")
	_, linked = beta.FindLinkedBusiness("biz-a")
	assert.False(t, linked)
}

func TestPostgres_CancelLinkRequest(t *testing.T) {
	f := newContextFixture(t)
	ctx := context.Background()
	f.owner(t, "biz-a", "Alpha", "owner-a")
	f.owner(t, "biz-b", "Beta", "owner-b")

	req, err := f.links.Send(ctx, f.resolve(t, "owner-a", "owner@alpha.io"), "biz-b", tenancy.AccessReadWrite)
	require.NoError(t, err)

	assert.ErrorIs(t, f.links.Cancel(ctx, "biz-b", req.ID), tenancy.ErrRequestForbidden)
	require.NoError(t, f.links.Cancel(ctx, "biz-a", req.ID))
	assert.ErrorIs(t, f.links.Cancel(ctx, "biz-a", req.ID), tenancy.ErrRequestNotFound)

	pending, err := f.links.Pending(ctx, "biz-a")
	require.NoError(t, err)
	assert.Empty(t, pending.Outgoing)
}

func TestPostgres_ConcurrentAnswersSettleOnce(t *testing.T) {
	f := newContextFixture(t)
	ctx := context.Background()
	f.owner(t, "biz-a", "Alpha", "owner-a")
	f.owner(t, "biz-b", "Beta", "owner-b")

	req, err := f.links.Send(ctx, f.resolve(t, "owner-a", "owner@alpha.io"), "biz-b", tenancy.AccessRead)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.links.Approve(ctx, "biz-b", req.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.links.Reject(ctx, "biz-b", req.ID)
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, tenancy.ErrRequestNotPending)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := f.requests.FindByID(ctx, req.ID)
	require.NoError(t, err)
	alpha, err := f.businesses.FindByID(ctx, "biz-a")
	require.NoError(t, err)
	if stored.Status == tenancy.LinkRequestApproved {
		assert.Equal(t, []string{"biz-b"}, alpha.LinkedBusinessIDs)
	} else {
		assert.Equal(t, tenancy.LinkRequestRejected, stored.Status)
		assert.Empty(t, alpha.LinkedBusinessIDs)
	}
}
