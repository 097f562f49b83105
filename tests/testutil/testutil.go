// Package testutil builds the business context stack on an in-memory SQLite
// database for HTTP and session tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	apptenancy "github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/application/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/auth"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/cache"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/config"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/persistence"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/persistence/models"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestJWTSecret signs every token issued by a Stack
const TestJWTSecret = "test-secret-key-with-at-least-32-chars"

// Stack wires repositories, resolver, link workflow and session manager the
// way the server does
type Stack struct {
	DB           *persistence.Database
	Businesses   *persistence.GormBusinessRepository
	Profiles     *persistence.GormUserProfileRepository
	Staff        *persistence.GormStaffRepository
	Requests     *persistence.GormLinkRequestRepository
	Resolver     *apptenancy.BusinessResolver
	LinkRequests *apptenancy.LinkRequestService
	Snapshots    *cache.InMemorySnapshotStore
	Sessions     *apptenancy.SessionManager
	JWT          *auth.JWTService
	Logger       *zap.Logger
}

// StackOption adjusts the session configuration of a Stack
type StackOption func(*apptenancy.SessionConfig)

// WithoutCacheFallback makes sessions fail closed
func WithoutCacheFallback() StackOption {
	return func(c *apptenancy.SessionConfig) { c.CacheFallback = false }
}

// NewStack opens a private in-memory database with the schema applied
func NewStack(t *testing.T, opts ...StackOption) *Stack {
	t.Helper()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())

	log := zap.NewNop()
	s := &Stack{
		DB:         db,
		Businesses: persistence.NewGormBusinessRepository(db.DB),
		Profiles:   persistence.NewGormUserProfileRepository(db.DB),
		Staff:      persistence.NewGormStaffRepository(db.DB),
		Requests:   persistence.NewGormLinkRequestRepository(db.DB),
		Snapshots:  cache.NewInMemorySnapshotStore(0),
		JWT: auth.NewJWTService(config.JWTConfig{
			Secret:          TestJWTSecret,
			Issuer:          "madas-test",
			TokenExpiration: time.Hour,
		}),
		Logger: log,
	}
	s.Resolver = apptenancy.NewBusinessResolver(s.Businesses, s.Profiles, s.Staff, log)
	s.LinkRequests = apptenancy.NewLinkRequestService(s.Businesses, s.Requests, telemetry.NoopContextMetrics(), log)

	cfg := apptenancy.SessionConfig{
		Retry:         apptenancy.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond},
		CacheFallback: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s.Sessions = apptenancy.NewSessionManager(apptenancy.SessionDeps{
		Resolver:   s.Resolver,
		Requests:   s.LinkRequests,
		Businesses: s.Businesses,
		Snapshots:  s.Snapshots,
		Metrics:    telemetry.NoopContextMetrics(),
		Logger:     log,
	}, cfg)

	t.Cleanup(func() {
		s.Sessions.Close()
		_ = db.Close()
	})
	return s
}

// SeedBusiness stores b, defaulting its timestamps
func (s *Stack) SeedBusiness(t *testing.T, b tenancy.Business) {
	t.Helper()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.UpdatedAt = b.CreatedAt
	require.NoError(t, s.Businesses.Create(context.Background(), &b))
}

// SeedOwner stores a business owned by uid
func (s *Stack) SeedOwner(t *testing.T, businessID, name, uid string) {
	t.Helper()
	s.SeedBusiness(t, tenancy.Business{
		ID:    businessID,
		Name:  name,
		Owner: tenancy.Owner{UserID: uid, Name: name + " Owner"},
		Plan:  tenancy.PlanInfo{Type: "pro", Status: "active", Currency: "EGP"},
	})
}

// SeedStaff stores a staff account of uid inside businessID. permissions is
// the raw JSON column, either a list or a section map.
func (s *Stack) SeedStaff(t *testing.T, businessID, uid, role, permissions string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.DB.DB.Create(&models.UserProfileModel{
		UID: uid, BusinessID: businessID, CreatedAt: now, UpdatedAt: now,
	}).Error)
	staff := &models.StaffModel{
		BusinessID: businessID,
		StaffUID:   uid,
		Role:       role,
		Name:       "Staff " + uid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if permissions != "" {
		staff.Permissions = datatypes.JSON(permissions)
	}
	require.NoError(t, s.DB.DB.Create(staff).Error)
}

// Token issues a bearer token for uid
func (s *Stack) Token(t *testing.T, uid, email string, supportAgent bool) string {
	t.Helper()
	token, _, err := s.JWT.GenerateToken(auth.GenerateTokenInput{
		UID:          uid,
		Email:        email,
		DisplayName:  "User " + uid,
		SupportAgent: supportAgent,
	})
	require.NoError(t, err)
	return token
}

// ContextWithTimeout creates a context with a timeout for tests
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually polls condition until it holds or timeout passes
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}
