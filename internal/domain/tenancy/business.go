package tenancy

import (
	"strings"
	"time"
)

// DefaultCurrency is used when neither the business nor its plan names one
const DefaultCurrency = "USD"

// Role is the caller's role within the active business
type Role string

const (
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
)

// IsOwner returns true for the owner role
func (r Role) IsOwner() bool {
	return r == RoleOwner
}

// Owner identifies the user who created a business
type Owner struct {
	UserID string
	Name   string
}

// PlanInfo is the subscription plan attached to a business
type PlanInfo struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	Currency string `json:"currency"`
}

// SystemAccess holds the per-business module switches. A nil pointer means
// the switch was never set, which is treated as enabled.
type SystemAccess struct {
	Dashboard *bool
	Finance   *bool
}

// Business is a tenant. It is owned by its creator and never deleted here.
type Business struct {
	ID                string
	Name              string
	Owner             Owner
	Plan              PlanInfo
	SystemAccess      SystemAccess
	LinkedBusinessIDs []string
	Currency          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DashboardDisabled is true only when dashboard access is explicitly false
func (b *Business) DashboardDisabled() bool {
	return b.SystemAccess.Dashboard != nil && !*b.SystemAccess.Dashboard
}

// EffectiveCurrency returns the business currency, else the plan currency,
// else DefaultCurrency
func (b *Business) EffectiveCurrency() string {
	if c := strings.TrimSpace(b.Currency); c != "" {
		return c
	}
	if c := strings.TrimSpace(b.Plan.Currency); c != "" {
		return c
	}
	return DefaultCurrency
}

// IsOwnedBy reports whether uid created this business
func (b *Business) IsOwnedBy(uid string) bool {
	return uid != "" && b.Owner.UserID == uid
}

// HasLinkedBusiness reports whether id is already in the linked set
func (b *Business) HasLinkedBusiness(id string) bool {
	for _, linked := range b.LinkedBusinessIDs {
		if linked == id {
			return true
		}
	}
	return false
}

// LinkBusiness adds id to the linked set with union semantics. It returns
// false when nothing changed.
func (b *Business) LinkBusiness(id string) bool {
	if id == "" || id == b.ID || b.HasLinkedBusiness(id) {
		return false
	}
	b.LinkedBusinessIDs = append(b.LinkedBusinessIDs, id)
	b.UpdatedAt = time.Now()
	return true
}

// UnlinkBusiness removes every occurrence of id. It returns false when id
// was not present.
func (b *Business) UnlinkBusiness(id string) bool {
	kept := b.LinkedBusinessIDs[:0]
	removed := false
	for _, linked := range b.LinkedBusinessIDs {
		if linked == id {
			removed = true
			continue
		}
		kept = append(kept, linked)
	}
	b.LinkedBusinessIDs = kept
	if removed {
		b.UpdatedAt = time.Now()
	}
	return removed
}

// StaffMembership grants a user a role inside one business
type StaffMembership struct {
	BusinessID  string
	StaffUID    string
	Role        Role
	Permissions Permissions
	Name        string
	FirstName   string
	LastName    string
}

// DefaultStaffMembership is used when a staff pointer exists but the
// membership record itself cannot be read
func DefaultStaffMembership(businessID, uid string) *StaffMembership {
	return &StaffMembership{
		BusinessID:  businessID,
		StaffUID:    uid,
		Role:        RoleStaff,
		Permissions: DefaultPermissions(),
	}
}

// EffectiveRole returns the stored role, defaulting to staff
func (m *StaffMembership) EffectiveRole() Role {
	if strings.TrimSpace(string(m.Role)) == "" {
		return RoleStaff
	}
	return m.Role
}

// DisplayName prefers the name field, then "first last"
func (m *StaffMembership) DisplayName() string {
	if name := strings.TrimSpace(m.Name); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(m.FirstName) + " " + strings.TrimSpace(m.LastName))
}

// UserProfile is the users/{uid} record. BusinessID is set for staff accounts.
type UserProfile struct {
	UID        string
	BusinessID string
}

// IsStaff reports whether the profile points at a business
func (p *UserProfile) IsStaff() bool {
	return p != nil && strings.TrimSpace(p.BusinessID) != ""
}
