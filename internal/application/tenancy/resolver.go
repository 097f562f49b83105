package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const fallbackDisplayName = "User"

// ResolveInput is what one resolution attempt works from
type ResolveInput struct {
	Identity tenancy.Identity
	Support  tenancy.SupportSession
}

// BusinessResolver performs a single resolution attempt against the tenant
// store. It does not retry and does not touch the snapshot cache.
//
// Outcomes:
//   - a settled context (Source store or support)
//   - tenancy.ErrNoBusiness when neither a staff pointer nor an owned business matched
//   - tenancy.ErrDashboardDisabled when the business switched the dashboard off
//   - tenancy.ErrSupportTargetMissing when the support target does not exist
//   - any other error is transient
type BusinessResolver struct {
	businesses tenancy.BusinessRepository
	profiles   tenancy.UserProfileRepository
	staff      tenancy.StaffRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewBusinessResolver creates a new resolver
func NewBusinessResolver(
	businesses tenancy.BusinessRepository,
	profiles tenancy.UserProfileRepository,
	staff tenancy.StaffRepository,
	logger *zap.Logger,
) *BusinessResolver {
	return &BusinessResolver{
		businesses: businesses,
		profiles:   profiles,
		staff:      staff,
		logger:     logger,
		now:        time.Now,
	}
}

// match is the outcome of the staff or owner lookup
type match struct {
	business    *tenancy.Business
	role        tenancy.Role
	permissions tenancy.Permissions
	staffName   string
}

// ResolveOnce runs one resolution attempt for in
func (r *BusinessResolver) ResolveOnce(ctx context.Context, in ResolveInput) (tenancy.ResolvedContext, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "business_resolver", "resolve_once",
		telemetry.SpanAttrUserID, in.Identity.UID,
		telemetry.SpanAttrSupportMode, in.Support.Active(),
	)
	defer span.End()

	var (
		resolved tenancy.ResolvedContext
		err      error
	)
	if in.Support.Active() {
		resolved, err = r.resolveSupport(ctx, in)
	} else {
		resolved, err = r.resolveMember(ctx, in.Identity)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return tenancy.ResolvedContext{}, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrBusinessID, resolved.BusinessID)
	telemetry.SetOK(span)
	return resolved, nil
}

// resolveSupport loads the support target directly and grants owner access.
// Staff records, the dashboard gate and linked businesses are not consulted.
func (r *BusinessResolver) resolveSupport(ctx context.Context, in ResolveInput) (tenancy.ResolvedContext, error) {
	business, err := r.businesses.FindByID(ctx, in.Support.BusinessID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return tenancy.ResolvedContext{}, tenancy.ErrSupportTargetMissing
		}
		return tenancy.ResolvedContext{}, fmt.Errorf("load support business %s: %w", in.Support.BusinessID, err)
	}

	name := business.Name
	if name == "" {
		name = in.Support.BusinessName
	}
	displayName := firstNonEmpty(in.Support.AdminName, in.Identity.DisplayName, in.Identity.EmailLocalPart(), fallbackDisplayName)
	email := firstNonEmpty(in.Support.AdminEmail, in.Identity.Email)

	r.logger.Info("Support session resolved",
		zap.String("user_id", in.Identity.UID),
		zap.String("business_id", business.ID))

	return tenancy.ResolvedContext{
		BusinessID:       business.ID,
		BusinessName:     name,
		Plan:             business.Plan,
		Currency:         business.EffectiveCurrency(),
		Role:             tenancy.RoleOwner,
		Permissions:      tenancy.DefaultOwnerPermissions(),
		UserDisplayName:  displayName,
		UserEmail:        email,
		LinkedBusinesses: []tenancy.LinkedBusiness{},
		Source:           tenancy.SourceSupport,
	}, nil
}

func (r *BusinessResolver) resolveMember(ctx context.Context, identity tenancy.Identity) (tenancy.ResolvedContext, error) {
	m, err := r.findStaffMatch(ctx, identity)
	if err != nil {
		return tenancy.ResolvedContext{}, err
	}
	if m == nil {
		m, err = r.findOwnerMatch(ctx, identity)
		if err != nil {
			return tenancy.ResolvedContext{}, err
		}
	}
	if m == nil {
		return tenancy.ResolvedContext{}, tenancy.ErrNoBusiness
	}

	if m.business.DashboardDisabled() {
		r.logger.Info("Dashboard access disabled for business",
			zap.String("user_id", identity.UID),
			zap.String("business_id", m.business.ID))
		return tenancy.ResolvedContext{}, tenancy.ErrDashboardDisabled
	}

	ownerName := ""
	if m.role.IsOwner() {
		ownerName = m.business.Owner.Name
	}

	return tenancy.ResolvedContext{
		BusinessID:       m.business.ID,
		BusinessName:     m.business.Name,
		Plan:             m.business.Plan,
		Currency:         m.business.EffectiveCurrency(),
		Role:             m.role,
		Permissions:      m.permissions,
		UserDisplayName:  firstNonEmpty(m.staffName, ownerName, identity.DisplayName, identity.EmailLocalPart(), fallbackDisplayName),
		UserEmail:        identity.Email,
		LinkedBusinesses: r.linkedBusinesses(ctx, m.business),
		Source:           tenancy.SourceStore,
	}, nil
}

// findStaffMatch follows the users/{uid} pointer. A missing profile or a
// pointer to a missing business is "no staff match"; a missing membership
// record falls back to default staff permissions.
func (r *BusinessResolver) findStaffMatch(ctx context.Context, identity tenancy.Identity) (*match, error) {
	profile, err := r.profiles.FindByUID(ctx, identity.UID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load user profile %s: %w", identity.UID, err)
	}
	if !profile.IsStaff() {
		return nil, nil
	}

	business, err := r.businesses.FindByID(ctx, profile.BusinessID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("Staff profile points at a missing business",
				zap.String("user_id", identity.UID),
				zap.String("business_id", profile.BusinessID))
			return nil, nil
		}
		return nil, fmt.Errorf("load business %s: %w", profile.BusinessID, err)
	}

	membership, err := r.staff.FindMembership(ctx, business.ID, identity.UID)
	if err != nil {
		r.logger.Warn("Staff membership unavailable, using default permissions",
			zap.String("user_id", identity.UID),
			zap.String("business_id", business.ID),
			zap.Error(err))
		membership = tenancy.DefaultStaffMembership(business.ID, identity.UID)
	}

	return &match{
		business:    business,
		role:        membership.EffectiveRole(),
		permissions: membership.Permissions,
		staffName:   membership.DisplayName(),
	}, nil
}

func (r *BusinessResolver) findOwnerMatch(ctx context.Context, identity tenancy.Identity) (*match, error) {
	business, err := r.businesses.FindFirstByOwner(ctx, identity.UID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find business owned by %s: %w", identity.UID, err)
	}
	return &match{
		business:    business,
		role:        tenancy.RoleOwner,
		permissions: tenancy.DefaultOwnerPermissions(),
	}, nil
}

// linkedBusinesses resolves every linked id, skipping the ones that fail
func (r *BusinessResolver) linkedBusinesses(ctx context.Context, business *tenancy.Business) []tenancy.LinkedBusiness {
	linked := make([]tenancy.LinkedBusiness, 0, len(business.LinkedBusinessIDs))
	for _, id := range business.LinkedBusinessIDs {
		other, err := r.businesses.FindByID(ctx, id)
		if err != nil {
			r.logger.Warn("Skipping unresolvable linked business",
				zap.String("business_id", business.ID),
				zap.String("linked_business_id", id),
				zap.Error(err))
			continue
		}
		linked = append(linked, tenancy.LinkedBusiness{
			ID:         other.ID,
			Name:       other.Name,
			AccessType: tenancy.AccessRead,
			LinkedAt:   r.now(),
		})
	}
	return linked
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
