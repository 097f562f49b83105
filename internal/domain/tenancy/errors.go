package tenancy

import (
	"errors"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
)

// Resolution outcomes that are not transient failures
var (
	// ErrNoBusiness means neither a staff pointer nor an owned business matched
	ErrNoBusiness = errors.New("no business found for identity")
	// ErrDashboardDisabled means the business switched dashboard access off
	ErrDashboardDisabled = errors.New("dashboard access disabled for business")
	// ErrSupportTargetMissing means the support-mode target does not exist
	ErrSupportTargetMissing = errors.New("support target business not found")
)

// Registry and workflow failures. These are returned to callers as values
// so they can be shown inline.
var (
	ErrNoActiveBusiness  = shared.NewDomainError("NO_BUSINESS", "Business not loaded")
	ErrLinkSelf          = shared.NewDomainError("LINK_SELF", "Cannot link to your own business")
	ErrLinkExists        = shared.NewDomainError("LINK_EXISTS", "Business is already linked")
	ErrLinkPending       = shared.NewDomainError("LINK_PENDING", "A pending request to this business already exists")
	ErrBusinessNotFound  = shared.NewDomainError("BUSINESS_NOT_FOUND", "Business not found")
	ErrRequestNotFound   = shared.NewDomainError("REQUEST_NOT_FOUND", "Link request not found")
	ErrRequestForbidden  = shared.NewDomainError("REQUEST_FORBIDDEN", "This link request does not belong to your business")
	ErrRequestNotPending = shared.NewDomainError("REQUEST_NOT_PENDING", "Link request has already been answered")
)
