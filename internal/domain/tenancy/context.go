package tenancy

import (
	"strings"
)

// Identity is the signed-in user as reported by the session source
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// EmailLocalPart returns the part of the email before '@'
func (i Identity) EmailLocalPart() string {
	email := strings.TrimSpace(i.Email)
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}

// SupportSession carries the support-mode side channel. It only takes
// effect when Enabled and BusinessID are both set.
type SupportSession struct {
	Enabled      bool
	BusinessID   string
	BusinessName string
	AdminName    string
	AdminEmail   string
}

// Active reports whether the support override applies
func (s SupportSession) Active() bool {
	return s.Enabled && strings.TrimSpace(s.BusinessID) != ""
}

// ResolutionSource records where the settled context came from
type ResolutionSource string

const (
	SourceNone    ResolutionSource = ""
	SourceStore   ResolutionSource = "store"
	SourceCache   ResolutionSource = "cache"
	SourceSupport ResolutionSource = "support"
)

// ResolvedContext is the caller's view of their tenant. Owners always have
// the full permission set regardless of Permissions.
type ResolvedContext struct {
	Loading                  bool
	NoAccess                 bool
	BusinessID               string
	BusinessName             string
	Plan                     PlanInfo
	Currency                 string
	Role                     Role
	Permissions              Permissions
	UserDisplayName          string
	UserEmail                string
	LinkedBusinesses         []LinkedBusiness
	CurrentViewingBusinessID string
	IncomingLinkRequests     []LinkRequest
	OutgoingLinkRequests     []LinkRequest
	Source                   ResolutionSource
}

// NoSessionContext is the state with no signed-in identity
func NoSessionContext() ResolvedContext {
	return ResolvedContext{Loading: false, NoAccess: false}
}

// NoAccessContext is the terminal state for an identity without a usable business
func NoAccessContext(identity Identity) ResolvedContext {
	return ResolvedContext{
		Loading:   false,
		NoAccess:  true,
		UserEmail: identity.Email,
	}
}

// HasBusiness reports whether a tenant is resolved
func (c ResolvedContext) HasBusiness() bool {
	return !c.NoAccess && c.BusinessID != ""
}

// PermissionSet returns the flattened permission view for this context
func (c ResolvedContext) PermissionSet() PermissionSet {
	return NewPermissionSet(c.Permissions, c.Role)
}

// EffectiveBusinessID is the tenant id data reads must be scoped to
func (c ResolvedContext) EffectiveBusinessID() string {
	if c.CurrentViewingBusinessID != "" {
		return c.CurrentViewingBusinessID
	}
	return c.BusinessID
}

// IsViewingOtherBusiness is true when a viewing override differs from the own business
func (c ResolvedContext) IsViewingOtherBusiness() bool {
	return c.CurrentViewingBusinessID != "" && c.CurrentViewingBusinessID != c.BusinessID
}

// FindLinkedBusiness returns the linked entry for id
func (c ResolvedContext) FindLinkedBusiness(id string) (LinkedBusiness, bool) {
	for _, lb := range c.LinkedBusinesses {
		if lb.ID == id {
			return lb, true
		}
	}
	return LinkedBusiness{}, false
}

// HasPendingOutgoingTo reports whether an outgoing pending request targets id
func (c ResolvedContext) HasPendingOutgoingTo(id string) bool {
	for _, r := range c.OutgoingLinkRequests {
		if r.ToBusinessID == id && r.IsPending() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out of the session
func (c ResolvedContext) Clone() ResolvedContext {
	out := c
	out.Permissions = c.Permissions.Clone()
	if c.LinkedBusinesses != nil {
		out.LinkedBusinesses = append([]LinkedBusiness(nil), c.LinkedBusinesses...)
	}
	if c.IncomingLinkRequests != nil {
		out.IncomingLinkRequests = append([]LinkRequest(nil), c.IncomingLinkRequests...)
	}
	if c.OutgoingLinkRequests != nil {
		out.OutgoingLinkRequests = append([]LinkRequest(nil), c.OutgoingLinkRequests...)
	}
	return out
}

// Snapshot is the cached subset of a resolved context used for fast first
// paint and as a fallback. It is never authoritative.
type Snapshot struct {
	Email            string           `json:"email"`
	BusinessID       string           `json:"businessId"`
	BusinessName     string           `json:"businessName"`
	Role             Role             `json:"role"`
	Permissions      Permissions      `json:"permissions"`
	DisplayName      string           `json:"displayName"`
	LinkedBusinesses []LinkedBusiness `json:"linkedBusinesses"`
}

// NewSnapshot captures the cacheable fields of c
func NewSnapshot(c ResolvedContext) *Snapshot {
	return &Snapshot{
		Email:            c.UserEmail,
		BusinessID:       c.BusinessID,
		BusinessName:     c.BusinessName,
		Role:             c.Role,
		Permissions:      c.Permissions.Clone(),
		DisplayName:      c.UserDisplayName,
		LinkedBusinesses: append([]LinkedBusiness(nil), c.LinkedBusinesses...),
	}
}

// Matches reports whether the snapshot belongs to identity and names a business
func (s *Snapshot) Matches(identity Identity) bool {
	return s != nil && s.BusinessID != "" && identity.Email != "" && s.Email == identity.Email
}

// ToContext renders the snapshot as a settled context
func (s *Snapshot) ToContext() ResolvedContext {
	return ResolvedContext{
		Loading:          false,
		NoAccess:         false,
		BusinessID:       s.BusinessID,
		BusinessName:     s.BusinessName,
		Currency:         DefaultCurrency,
		Role:             s.Role,
		Permissions:      s.Permissions.Clone(),
		UserDisplayName:  s.DisplayName,
		UserEmail:        s.Email,
		LinkedBusinesses: append([]LinkedBusiness(nil), s.LinkedBusinesses...),
		Source:           SourceCache,
	}
}
