package tenancy

import (
	"strings"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
	"github.com/google/uuid"
)

// AccessType is the level of access a link grants
type AccessType string

const (
	AccessRead      AccessType = "read"
	AccessReadWrite AccessType = "readwrite"
)

// IsValid checks the access type against the known values
func (a AccessType) IsValid() bool {
	return a == AccessRead || a == AccessReadWrite
}

// ParseAccessType defaults an empty value to read access
func ParseAccessType(s string) (AccessType, error) {
	if strings.TrimSpace(s) == "" {
		return AccessRead, nil
	}
	a := AccessType(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", shared.NewDomainError("INVALID_ACCESS_TYPE", "Access type must be 'read' or 'readwrite'")
	}
	return a, nil
}

// LinkedBusiness is a business the active tenant may read
type LinkedBusiness struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	AccessType AccessType `json:"accessType"`
	LinkedAt   time.Time  `json:"linkedAt"`
}

// LinkRequestStatus is the state of a link request
type LinkRequestStatus string

const (
	LinkRequestPending  LinkRequestStatus = "pending"
	LinkRequestApproved LinkRequestStatus = "approved"
	LinkRequestRejected LinkRequestStatus = "rejected"
)

// LinkRequest asks the addressee (To) to let the requester (From) read its data.
//
//	pending ── approve ──> approved  (requester gains a link to the addressee)
//	        ── reject  ──> rejected
//	        ── cancel  ──> deleted   (requester only)
type LinkRequest struct {
	ID               string
	FromBusinessID   string
	FromBusinessName string
	ToBusinessID     string
	ToBusinessName   string
	Status           LinkRequestStatus
	AccessType       AccessType
	RequestedAt      time.Time
	RespondedAt      *time.Time
}

// NewLinkRequest creates a pending request. RequestedAt is assigned by the
// store when the request is persisted.
func NewLinkRequest(from, to *Business, accessType AccessType) (*LinkRequest, error) {
	if from == nil || to == nil {
		return nil, shared.NewDomainError("INVALID_LINK_REQUEST", "Both businesses are required")
	}
	if from.ID == to.ID {
		return nil, ErrLinkSelf
	}
	if accessType == "" {
		accessType = AccessRead
	}
	if !accessType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACCESS_TYPE", "Access type must be 'read' or 'readwrite'")
	}
	return &LinkRequest{
		ID:               uuid.NewString(),
		FromBusinessID:   from.ID,
		FromBusinessName: from.Name,
		ToBusinessID:     to.ID,
		ToBusinessName:   to.Name,
		Status:           LinkRequestPending,
		AccessType:       accessType,
	}, nil
}

// IsPending returns true while the request awaits an answer
func (r *LinkRequest) IsPending() bool {
	return r.Status == LinkRequestPending
}

// IsAddressedTo reports whether businessID may approve or reject
func (r *LinkRequest) IsAddressedTo(businessID string) bool {
	return businessID != "" && r.ToBusinessID == businessID
}

// IsSentBy reports whether businessID may cancel
func (r *LinkRequest) IsSentBy(businessID string) bool {
	return businessID != "" && r.FromBusinessID == businessID
}

// Approve moves a pending request to approved
func (r *LinkRequest) Approve(now time.Time) error {
	if !r.IsPending() {
		return ErrRequestNotPending
	}
	r.Status = LinkRequestApproved
	r.RespondedAt = &now
	return nil
}

// Reject moves a pending request to rejected
func (r *LinkRequest) Reject(now time.Time) error {
	if !r.IsPending() {
		return ErrRequestNotPending
	}
	r.Status = LinkRequestRejected
	r.RespondedAt = &now
	return nil
}
