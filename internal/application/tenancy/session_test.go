package tenancy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sessionFixture struct {
	businesses *MockBusinessRepository
	profiles   tenancy.UserProfileRepository
	staff      *MockStaffRepository
	requests   *MockLinkRequestRepository
	snapshots  *memorySnapshots
	cfg        SessionConfig

	mu     sync.Mutex
	delays []time.Duration
}

func newSessionFixture() *sessionFixture {
	return &sessionFixture{
		businesses: new(MockBusinessRepository),
		profiles:   new(MockUserProfileRepository),
		staff:      new(MockStaffRepository),
		requests:   new(MockLinkRequestRepository),
		snapshots:  newMemorySnapshots(),
		cfg:        DefaultSessionConfig(),
	}
}

func (f *sessionFixture) mockProfiles() *MockUserProfileRepository {
	return f.profiles.(*MockUserProfileRepository)
}

func (f *sessionFixture) noPendingRequests() {
	f.requests.On("FindPendingIncoming", mock.Anything, mock.Anything).Return([]tenancy.LinkRequest{}, nil).Maybe()
	f.requests.On("FindPendingOutgoing", mock.Anything, mock.Anything).Return([]tenancy.LinkRequest{}, nil).Maybe()
}

func (f *sessionFixture) session() *Session {
	metrics := telemetry.NoopContextMetrics()
	s := NewSession(SessionDeps{
		Resolver:   NewBusinessResolver(f.businesses, f.profiles, f.staff, zap.NewNop()),
		Requests:   NewLinkRequestService(f.businesses, f.requests, metrics, zap.NewNop()),
		Businesses: f.businesses,
		Snapshots:  f.snapshots,
		Metrics:    metrics,
		Logger:     zap.NewNop(),
	}, f.cfg)
	s.sleep = func(ctx context.Context, d time.Duration) error {
		f.mu.Lock()
		f.delays = append(f.delays, d)
		f.mu.Unlock()
		return ctx.Err()
	}
	return s
}

func (f *sessionFixture) recordedDelays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("resolution did not settle")
	}
}

func ownedBusiness() *tenancy.Business {
	return &tenancy.Business{
		ID:                "biz-a",
		Name:              "Alpha",
		Owner:             tenancy.Owner{UserID: "u1", Name: "Amal"},
		LinkedBusinessIDs: []string{"biz-b"},
	}
}

func cachedSnapshot() tenancy.Snapshot {
	return tenancy.Snapshot{
		Email:        "a@x.com",
		BusinessID:   "biz-cached",
		BusinessName: "Cached",
		Role:         tenancy.RoleStaff,
		Permissions:  tenancy.DefaultPermissions(),
		DisplayName:  "Cached Name",
	}
}

// resolvedOwnerSession returns a session settled as owner of biz-a with biz-b linked
func resolvedOwnerSession(t *testing.T, f *sessionFixture) *Session {
	t.Helper()
	f.mockProfiles().On("FindByUID", mock.Anything, "u1").Return(nil, shared.ErrNotFound)
	f.businesses.On("FindFirstByOwner", mock.Anything, "u1").Return(ownedBusiness(), nil)
	f.businesses.On("FindByID", mock.Anything, "biz-b").Return(&tenancy.Business{ID: "biz-b", Name: "Beta"}, nil)
	f.noPendingRequests()

	s := f.session()
	identity := identityU1
	waitDone(t, s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{}))
	require.True(t, s.Context().HasBusiness())
	return s
}

func TestSession_NoIdentity(t *testing.T) {
	f := newSessionFixture()
	s := f.session()

	waitDone(t, s.Refresh(context.Background()))

	state := s.Context()
	assert.False(t, state.Loading)
	assert.False(t, state.NoAccess)
	assert.Empty(t, state.BusinessID)
}

func TestSession_ResolvesOwnerAndPersistsSnapshot(t *testing.T) {
	f := newSessionFixture()
	s := resolvedOwnerSession(t, f)

	state := s.Context()
	assert.False(t, state.Loading)
	assert.Equal(t, "biz-a", state.BusinessID)
	assert.Equal(t, tenancy.RoleOwner, state.Role)
	assert.Equal(t, tenancy.SourceStore, state.Source)
	assert.NotNil(t, state.IncomingLinkRequests)

	snap, err := f.snapshots.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "a@x.com", snap.Email)
	assert.Equal(t, "biz-a", snap.BusinessID)
	assert.Equal(t, "Amal", snap.DisplayName)
}

func TestSession_CacheFirstPaint(t *testing.T) {
	f := newSessionFixture()
	snap := cachedSnapshot()
	require.NoError(t, f.snapshots.Save(context.Background(), "u1", &snap))

	release := make(chan time.Time)
	f.mockProfiles().On("FindByUID", mock.Anything, "u1").WaitUntil(release).Return(nil, shared.ErrNotFound)
	f.businesses.On("FindFirstByOwner", mock.Anything, "u1").Return(ownedBusiness(), nil)
	f.businesses.On("FindByID", mock.Anything, "biz-b").Return(&tenancy.Business{ID: "biz-b", Name: "Beta"}, nil)
	f.noPendingRequests()

	s := f.session()
	identity := identityU1
	done := s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{})

	painted := s.Context()
	assert.False(t, painted.Loading, "cache paint happens before any store call returns")
	assert.Equal(t, "biz-cached", painted.BusinessID)
	assert.Equal(t, tenancy.SourceCache, painted.Source)

	close(release)
	waitDone(t, done)

	settled := s.Context()
	assert.Equal(t, "biz-a", settled.BusinessID)
	assert.Equal(t, tenancy.SourceStore, settled.Source)
}

func TestSession_CachePaintRequiresMatchingEmail(t *testing.T) {
	f := newSessionFixture()
	snap := cachedSnapshot()
	snap.Email = "other@x.com"
	require.NoError(t, f.snapshots.Save(context.Background(), "u1", &snap))

	release := make(chan time.Time)
	f.mockProfiles().On("FindByUID", mock.Anything, "u1").WaitUntil(release).Return(nil, shared.ErrNotFound)
	f.businesses.On("FindFirstByOwner", mock.Anything, "u1").Return(nil, shared.ErrNotFound)

	s := f.session()
	identity := identityU1
	done := s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{})

	assert.True(t, s.Context().Loading)

	close(release)
	waitDone(t, done)
	assert.True(t, s.Context().NoAccess)
}

func TestSession_NoBusiness(t *testing.T) {
	setup := func(f *sessionFixture) {
		f.mockProfiles().On("FindByUID", mock.Anything, "u1").Return(nil, shared.ErrNotFound)
		f.businesses.On("FindFirstByOwner", mock.Anything, "u1").Return(nil, shared.ErrNotFound)
		f.noPendingRequests()
	}

	t.Run("without cache settles no access", func(t *testing.T) {
		f := newSessionFixture()
		setup(f)
		s := f.session()
		identity := identityU1

		waitDone(t, s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{}))

		state := s.Context()
		assert.True(t, state.NoAccess)
		assert.False(t, state.Loading)
		assert.Empty(t, f.recordedDelays(), "no-business is not retried")
	})

	t.Run("same-email cache keeps access", func(t *testing.T) {
		f := newSessionFixture()
		setup(f)
		snap := cachedSnapshot()
		require.NoError(t, f.snapshots.Save(context.Background(), "u1", &snap))
		s := f.session()
		identity := identityU1

		waitDone(t, s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{}))

		state := s.Context()
		assert.False(t, state.NoAccess)
		assert.Equal(t, "biz-cached", state.BusinessID)
		assert.Equal(t, tenancy.SourceCache, state.Source)
	})

	t.Run("cache fallback disabled fails closed", func(t *testing.T) {
		f := newSessionFixture()
		setup(f)
		f.cfg.CacheFallback = false
		snap := cachedSnapshot()
		require.NoError(t, f.snapshots.Save(context.Background(), "u1", &snap))
		s := f.session()
		identity := identityU1

		waitDone(t, s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{}))

		assert.True(t, s.Context().NoAccess)
	})
}

func TestSession_DashboardDisabledIgnoresCache(t *testing.T) {
	f := newSessionFixture()
	snap := cachedSnapshot()
	require.NoError(t, f.snapshots.Save(context.Background(), "u1", &snap))

	business := ownedBusiness()
	business.SystemAccess.Dashboard = falsePtr()
	f.mockProfiles().On("FindByUID", mock.Anything, "u1").Return(nil, shared.ErrNotFound)
	f.businesses.On("FindFirstByOwner", mock.Anything, "u1").Return(business, nil)

	s := f.session()
	identity := identityU1
	waitDone(t, s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{}))

	state := s.Context()
	assert.True(t, state.NoAccess)
	assert.False(t, state.HasBusiness())
}

func TestSession_RetrySchedule(t *testing.T) {
	boom := errors.New("unavailable")

	t.Run("gives up after three retries", func(t *testing.T) {
		f := newSessionFixture()
		f.mockProfiles().On("FindByUID", mock.Anything, "u1").Return(nil, boom)
		s := f.session()
		identity := identityU1

		waitDone(t, s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{}))

		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, f.recordedDelays())
		f.mockProfiles().AssertNumberOfCalls(t, "FindByUID", 4)
		assert.True(t, s.Context().NoAccess)
	})

	t.Run("falls back to cache after retries", func(t *testing.T) {
		f := newSessionFixture()
		f.cfg.CacheFallback = false
		snap := cachedSnapshot()
		require.NoError(t, f.snapshots.Save(context.Background(), "u1", &snap))
		f.mockProfiles().On("FindByUID", mock.Anything, "u1").Return(nil, boom)
		f.noPendingRequests()
		s := f.session()
		identity := identityU1

		waitDone(t, s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{}))

		state := s.Context()
		assert.False(t, state.NoAccess)
		assert.Equal(t, "biz-cached", state.BusinessID)
	})

	t.Run("recovers on a later attempt", func(t *testing.T) {
		f := newSessionFixture()
		f.mockProfiles().On("FindByUID", mock.Anything, "u1").Return(nil, boom).Twice()
		f.mockProfiles().On("FindByUID", mock.Anything, "u1").Return(nil, shared.ErrNotFound)
		f.businesses.On("FindFirstByOwner", mock.Anything, "u1").Return(ownedBusiness(), nil)
		f.businesses.On("FindByID", mock.Anything, "biz-b").Return(&tenancy.Business{ID: "biz-b", Name: "Beta"}, nil)
		f.noPendingRequests()
		s := f.session()
		identity := identityU1

		waitDone(t, s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{}))

		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.recordedDelays())
		assert.Equal(t, "biz-a", s.Context().BusinessID)
	})
}

func TestSession_Support(t *testing.T) {
	f := newSessionFixture()
	f.businesses.On("FindByID", mock.Anything, "biz1").Return(&tenancy.Business{ID: "biz1", Name: "Target"}, nil)
	f.noPendingRequests()
	s := f.session()
	identity := identityU1

	waitDone(t, s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{Enabled: true, BusinessID: "biz1"}))

	state := s.Context()
	assert.Equal(t, "biz1", state.BusinessID)
	assert.Equal(t, tenancy.RoleOwner, state.Role)
	assert.Equal(t, []string{tenancy.WildcardPermission}, state.PermissionSet().Tokens())
	assert.Zero(t, f.snapshots.saveCount(), "support sessions are not cached")
}

// gatedProfiles blocks the first lookup until released
type gatedProfiles struct {
	calls   int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedProfiles) FindByUID(_ context.Context, _ string) (*tenancy.UserProfile, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.entered)
		<-g.release
	}
	return nil, shared.ErrNotFound
}

func TestSession_SupersededResolutionIsDiscarded(t *testing.T) {
	f := newSessionFixture()
	gate := &gatedProfiles{entered: make(chan struct{}), release: make(chan struct{})}
	f.profiles = gate
	f.businesses.On("FindFirstByOwner", mock.Anything, "u1").Return(&tenancy.Business{ID: "biz-new", Owner: tenancy.Owner{UserID: "u1"}}, nil).Once()
	f.businesses.On("FindFirstByOwner", mock.Anything, "u1").Return(&tenancy.Business{ID: "biz-old", Owner: tenancy.Owner{UserID: "u1"}}, nil)
	f.noPendingRequests()

	s := f.session()
	identity := identityU1
	first := s.SetIdentity(context.Background(), &identity, tenancy.SupportSession{})
	<-gate.entered

	second := s.Refresh(context.Background())
	waitDone(t, second)
	assert.Equal(t, "biz-new", s.Context().BusinessID)

	close(gate.release)
	waitDone(t, first)
	assert.Equal(t, "biz-new", s.Context().BusinessID)
}

func TestSession_IdentityCleared(t *testing.T) {
	f := newSessionFixture()
	s := resolvedOwnerSession(t, f)

	waitDone(t, s.SetIdentity(context.Background(), nil, tenancy.SupportSession{}))

	state := s.Context()
	assert.False(t, state.Loading)
	assert.False(t, state.NoAccess)
	assert.Empty(t, state.BusinessID)
	assert.Nil(t, s.Identity())
}

func TestSession_LinkedBusinessRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("self link fails without mutation", func(t *testing.T) {
		f := newSessionFixture()
		s := resolvedOwnerSession(t, f)
		before := s.Context().LinkedBusinesses

		_, err := s.AddLinkedBusiness(ctx, "biz-a", tenancy.AccessRead)

		assert.ErrorIs(t, err, tenancy.ErrLinkSelf)
		assert.Equal(t, before, s.Context().LinkedBusinesses)
		f.businesses.AssertNotCalled(t, "AddLinkedBusiness", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("adding twice succeeds once", func(t *testing.T) {
		f := newSessionFixture()
		s := resolvedOwnerSession(t, f)
		f.businesses.On("FindByID", mock.Anything, "biz-c").Return(&tenancy.Business{ID: "biz-c", Name: "Gamma"}, nil)
		f.businesses.On("AddLinkedBusiness", mock.Anything, "biz-a", "biz-c").Return(nil).Once()

		entry, err := s.AddLinkedBusiness(ctx, "biz-c", "")
		require.NoError(t, err)
		assert.Equal(t, tenancy.AccessRead, entry.AccessType)

		_, err = s.AddLinkedBusiness(ctx, "biz-c", tenancy.AccessRead)
		assert.ErrorIs(t, err, tenancy.ErrLinkExists)

		count := 0
		for _, lb := range s.Context().LinkedBusinesses {
			if lb.ID == "biz-c" {
				count++
			}
		}
		assert.Equal(t, 1, count)
		f.businesses.AssertNumberOfCalls(t, "AddLinkedBusiness", 1)
	})

	t.Run("unknown target", func(t *testing.T) {
		f := newSessionFixture()
		s := resolvedOwnerSession(t, f)
		f.businesses.On("FindByID", mock.Anything, "biz-x").Return(nil, shared.ErrNotFound)

		_, err := s.AddLinkedBusiness(ctx, "biz-x", tenancy.AccessRead)

		assert.ErrorIs(t, err, tenancy.ErrBusinessNotFound)
	})

	t.Run("viewing override", func(t *testing.T) {
		f := newSessionFixture()
		s := resolvedOwnerSession(t, f)

		assert.False(t, s.SetCurrentViewingBusiness("biz-unlinked"))
		assert.Equal(t, "biz-a", s.EffectiveBusinessID())
		assert.False(t, s.IsViewingOtherBusiness())

		assert.True(t, s.SetCurrentViewingBusiness("biz-b"))
		assert.Equal(t, "biz-b", s.EffectiveBusinessID())
		assert.True(t, s.IsViewingOtherBusiness())

		assert.True(t, s.SetCurrentViewingBusiness(""))
		assert.Equal(t, "biz-a", s.EffectiveBusinessID())
	})

	t.Run("removing the viewed business resets viewing", func(t *testing.T) {
		f := newSessionFixture()
		s := resolvedOwnerSession(t, f)
		f.businesses.On("RemoveLinkedBusiness", mock.Anything, "biz-a", "biz-b").Return(nil)
		require.True(t, s.SetCurrentViewingBusiness("biz-b"))

		require.NoError(t, s.RemoveLinkedBusiness(ctx, "biz-b"))

		state := s.Context()
		assert.Empty(t, state.LinkedBusinesses)
		assert.Empty(t, state.CurrentViewingBusinessID)
		assert.Equal(t, "biz-a", s.EffectiveBusinessID())
	})

	t.Run("viewing survives a refresh while still linked", func(t *testing.T) {
		f := newSessionFixture()
		s := resolvedOwnerSession(t, f)
		require.True(t, s.SetCurrentViewingBusiness("biz-b"))

		waitDone(t, s.Refresh(ctx))

		assert.Equal(t, "biz-b", s.EffectiveBusinessID())
	})
}

func TestSession_LinkRequestWorkflow(t *testing.T) {
	ctx := context.Background()

	t.Run("second send to the same target is refused", func(t *testing.T) {
		f := newSessionFixture()
		s := resolvedOwnerSession(t, f)

		f.requests.ExpectedCalls = nil
		var created *tenancy.LinkRequest
		f.businesses.On("FindByID", mock.Anything, "biz-c").Return(&tenancy.Business{ID: "biz-c", Name: "Gamma"}, nil)
		f.requests.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			created = args.Get(1).(*tenancy.LinkRequest)
		}).Return(nil).Once()
		f.requests.On("FindPendingIncoming", mock.Anything, "biz-a").Return([]tenancy.LinkRequest{}, nil)
		f.requests.On("FindPendingOutgoing", mock.Anything, "biz-a").Return([]tenancy.LinkRequest{
			{ID: "req-c", FromBusinessID: "biz-a", ToBusinessID: "biz-c", Status: tenancy.LinkRequestPending},
		}, nil)

		req, err := s.SendLinkRequest(ctx, "biz-c", tenancy.AccessRead)
		require.NoError(t, err)
		assert.Same(t, created, req)
		require.Len(t, s.Context().OutgoingLinkRequests, 1)

		_, err = s.SendLinkRequest(ctx, "biz-c", tenancy.AccessRead)
		assert.ErrorIs(t, err, tenancy.ErrLinkPending)
		f.requests.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("approve refreshes both lists", func(t *testing.T) {
		f := newSessionFixture()
		s := resolvedOwnerSession(t, f)
		f.requests.On("FindByID", mock.Anything, "req-1").Return(&tenancy.LinkRequest{
			ID: "req-1", FromBusinessID: "biz-z", ToBusinessID: "biz-a", Status: tenancy.LinkRequestPending,
		}, nil)
		f.requests.On("Approve", mock.Anything, mock.Anything).Return(nil)

		req, err := s.ApproveLinkRequest(ctx, "req-1")

		require.NoError(t, err)
		assert.Equal(t, tenancy.LinkRequestApproved, req.Status)
		f.requests.AssertNumberOfCalls(t, "FindPendingIncoming", 2)
		f.requests.AssertNumberOfCalls(t, "FindPendingOutgoing", 2)
	})

	t.Run("operations need a business", func(t *testing.T) {
		f := newSessionFixture()
		s := f.session()

		_, err := s.SendLinkRequest(ctx, "biz-c", tenancy.AccessRead)
		assert.ErrorIs(t, err, tenancy.ErrNoActiveBusiness)

		_, err = s.ApproveLinkRequest(ctx, "req-1")
		assert.ErrorIs(t, err, tenancy.ErrNoActiveBusiness)

		assert.ErrorIs(t, s.CancelLinkRequest(ctx, "req-1"), tenancy.ErrNoActiveBusiness)
	})
}
