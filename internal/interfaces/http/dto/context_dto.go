package dto

import (
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
)

// PlanResponse is the subscription plan of the active business
type PlanResponse struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	Currency string `json:"currency"`
}

// LinkedBusinessResponse is one entry of the linked-business registry
type LinkedBusinessResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	AccessType string    `json:"access_type"`
	LinkedAt   time.Time `json:"linked_at"`
}

// LinkRequestResponse is a link request as seen by either party
type LinkRequestResponse struct {
	ID               string     `json:"id"`
	FromBusinessID   string     `json:"from_business_id"`
	FromBusinessName string     `json:"from_business_name"`
	ToBusinessID     string     `json:"to_business_id"`
	ToBusinessName   string     `json:"to_business_name"`
	Status           string     `json:"status"`
	AccessType       string     `json:"access_type"`
	RequestedAt      time.Time  `json:"requested_at"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
}

// LinkRequestsResponse holds both directions of pending requests
type LinkRequestsResponse struct {
	Incoming []LinkRequestResponse `json:"incoming"`
	Outgoing []LinkRequestResponse `json:"outgoing"`
}

// ContextResponse is the caller's resolved business context
type ContextResponse struct {
	Loading                  bool                     `json:"loading"`
	NoAccess                 bool                     `json:"no_access"`
	Source                   string                   `json:"source,omitempty"`
	BusinessID               string                   `json:"business_id,omitempty"`
	BusinessName             string                   `json:"business_name,omitempty"`
	Plan                     PlanResponse             `json:"plan"`
	Currency                 string                   `json:"currency,omitempty"`
	Role                     string                   `json:"role,omitempty"`
	Permissions              tenancy.Permissions      `json:"permissions"`
	FlatPermissions          []string                 `json:"flat_permissions"`
	UserDisplayName          string                   `json:"user_display_name,omitempty"`
	UserEmail                string                   `json:"user_email,omitempty"`
	EffectiveBusinessID      string                   `json:"effective_business_id,omitempty"`
	CurrentViewingBusinessID string                   `json:"current_viewing_business_id,omitempty"`
	IsViewingOtherBusiness   bool                     `json:"is_viewing_other_business"`
	SupportMode              bool                     `json:"support_mode"`
	LinkedBusinesses         []LinkedBusinessResponse `json:"linked_businesses"`
	IncomingLinkRequests     []LinkRequestResponse    `json:"incoming_link_requests"`
	OutgoingLinkRequests     []LinkRequestResponse    `json:"outgoing_link_requests"`
}

// SetViewingRequest switches the viewing business. A null or empty id goes
// back to the own business.
type SetViewingRequest struct {
	BusinessID *string `json:"business_id"`
}

// AddLinkedBusinessRequest links a business directly
type AddLinkedBusinessRequest struct {
	BusinessID string `json:"business_id" binding:"required,max=64"`
	AccessType string `json:"access_type" binding:"omitempty,access_type"`
}

// SendLinkRequestRequest asks another business for access
type SendLinkRequestRequest struct {
	TargetBusinessID string `json:"target_business_id" binding:"required,max=64"`
	AccessType       string `json:"access_type" binding:"omitempty,access_type"`
}

// PermissionCheckQuery checks permission tokens against the caller
type PermissionCheckQuery struct {
	Permissions []string `form:"p" binding:"required,min=1,dive,required"`
	Mode        string   `form:"mode" binding:"omitempty,oneof=any all"`
}

// PermissionCheckResponse is the outcome of a permission check
type PermissionCheckResponse struct {
	Allowed     bool     `json:"allowed"`
	Mode        string   `json:"mode"`
	Permissions []string `json:"permissions"`
}

// NewContextResponse converts a resolved context to its response form
func NewContextResponse(ctx tenancy.ResolvedContext, supportMode bool) ContextResponse {
	perms := ctx.Permissions
	if perms == nil {
		perms = tenancy.Permissions{}
	}
	flat := []string{}
	if tokens := ctx.PermissionSet().Tokens(); ctx.HasBusiness() && len(tokens) > 0 {
		flat = tokens
	}
	return ContextResponse{
		Loading:                  ctx.Loading,
		NoAccess:                 ctx.NoAccess,
		Source:                   string(ctx.Source),
		BusinessID:               ctx.BusinessID,
		BusinessName:             ctx.BusinessName,
		Plan:                     PlanResponse(ctx.Plan),
		Currency:                 ctx.Currency,
		Role:                     string(ctx.Role),
		Permissions:              perms,
		FlatPermissions:          flat,
		UserDisplayName:          ctx.UserDisplayName,
		UserEmail:                ctx.UserEmail,
		EffectiveBusinessID:      ctx.EffectiveBusinessID(),
		CurrentViewingBusinessID: ctx.CurrentViewingBusinessID,
		IsViewingOtherBusiness:   ctx.IsViewingOtherBusiness(),
		SupportMode:              supportMode,
		LinkedBusinesses:         NewLinkedBusinessResponses(ctx.LinkedBusinesses),
		IncomingLinkRequests:     NewLinkRequestResponses(ctx.IncomingLinkRequests),
		OutgoingLinkRequests:     NewLinkRequestResponses(ctx.OutgoingLinkRequests),
	}
}

// NewLinkedBusinessResponse converts one registry entry
func NewLinkedBusinessResponse(lb tenancy.LinkedBusiness) LinkedBusinessResponse {
	return LinkedBusinessResponse{
		ID:         lb.ID,
		Name:       lb.Name,
		AccessType: string(lb.AccessType),
		LinkedAt:   lb.LinkedAt,
	}
}

// NewLinkedBusinessResponses converts the registry, never returning nil
func NewLinkedBusinessResponses(list []tenancy.LinkedBusiness) []LinkedBusinessResponse {
	out := make([]LinkedBusinessResponse, 0, len(list))
	for _, lb := range list {
		out = append(out, NewLinkedBusinessResponse(lb))
	}
	return out
}

// NewLinkRequestResponse converts one link request
func NewLinkRequestResponse(r tenancy.LinkRequest) LinkRequestResponse {
	return LinkRequestResponse{
		ID:               r.ID,
		FromBusinessID:   r.FromBusinessID,
		FromBusinessName: r.FromBusinessName,
		ToBusinessID:     r.ToBusinessID,
		ToBusinessName:   r.ToBusinessName,
		Status:           string(r.Status),
		AccessType:       string(r.AccessType),
		RequestedAt:      r.RequestedAt,
		RespondedAt:      r.RespondedAt,
	}
}

// NewLinkRequestResponses converts a request list, never returning nil
func NewLinkRequestResponses(list []tenancy.LinkRequest) []LinkRequestResponse {
	out := make([]LinkRequestResponse, 0, len(list))
	for _, r := range list {
		out = append(out, NewLinkRequestResponse(r))
	}
	return out
}
