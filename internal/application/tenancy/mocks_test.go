package tenancy

import (
	"context"
	"sync"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/stretchr/testify/mock"
)

// MockBusinessRepository is a mock implementation of tenancy.BusinessRepository
type MockBusinessRepository struct {
	mock.Mock
}

func (m *MockBusinessRepository) FindByID(ctx context.Context, id string) (*tenancy.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Business), args.Error(1)
}

func (m *MockBusinessRepository) FindFirstByOwner(ctx context.Context, uid string) (*tenancy.Business, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Business), args.Error(1)
}

func (m *MockBusinessRepository) AddLinkedBusiness(ctx context.Context, businessID, linkedID string) error {
	args := m.Called(ctx, businessID, linkedID)
	return args.Error(0)
}

func (m *MockBusinessRepository) RemoveLinkedBusiness(ctx context.Context, businessID, linkedID string) error {
	args := m.Called(ctx, businessID, linkedID)
	return args.Error(0)
}

// MockUserProfileRepository is a mock implementation of tenancy.UserProfileRepository
type MockUserProfileRepository struct {
	mock.Mock
}

func (m *MockUserProfileRepository) FindByUID(ctx context.Context, uid string) (*tenancy.UserProfile, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.UserProfile), args.Error(1)
}

// MockStaffRepository is a mock implementation of tenancy.StaffRepository
type MockStaffRepository struct {
	mock.Mock
}

func (m *MockStaffRepository) FindMembership(ctx context.Context, businessID, uid string) (*tenancy.StaffMembership, error) {
	args := m.Called(ctx, businessID, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.StaffMembership), args.Error(1)
}

// MockLinkRequestRepository is a mock implementation of tenancy.LinkRequestRepository
type MockLinkRequestRepository struct {
	mock.Mock
}

func (m *MockLinkRequestRepository) Create(ctx context.Context, request *tenancy.LinkRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockLinkRequestRepository) FindByID(ctx context.Context, id string) (*tenancy.LinkRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.LinkRequest), args.Error(1)
}

func (m *MockLinkRequestRepository) UpdateStatus(ctx context.Context, request *tenancy.LinkRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockLinkRequestRepository) Approve(ctx context.Context, request *tenancy.LinkRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockLinkRequestRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLinkRequestRepository) FindPendingIncoming(ctx context.Context, businessID string) ([]tenancy.LinkRequest, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tenancy.LinkRequest), args.Error(1)
}

func (m *MockLinkRequestRepository) FindPendingOutgoing(ctx context.Context, businessID string) ([]tenancy.LinkRequest, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tenancy.LinkRequest), args.Error(1)
}

// memorySnapshots is a map-backed tenancy.SnapshotStore
type memorySnapshots struct {
	mu    sync.Mutex
	items map[string]tenancy.Snapshot
	saves int
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{items: make(map[string]tenancy.Snapshot)}
}

func (s *memorySnapshots) Load(_ context.Context, uid string) (*tenancy.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.items[uid]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *memorySnapshots) Save(_ context.Context, uid string, snapshot *tenancy.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[uid] = *snapshot
	s.saves++
	return nil
}

func (s *memorySnapshots) Clear(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, uid)
	return nil
}

func (s *memorySnapshots) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
