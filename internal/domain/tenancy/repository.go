package tenancy

import "context"

// BusinessRepository reads and links businesses/{id} documents.
// Finders return shared.ErrNotFound when nothing matches.
type BusinessRepository interface {
	// FindByID loads one business
	FindByID(ctx context.Context, id string) (*Business, error)

	// FindFirstByOwner returns the first business whose owner.userId is uid
	FindFirstByOwner(ctx context.Context, uid string) (*Business, error)

	// AddLinkedBusiness adds linkedID to businessID's linked ids (no duplicates)
	AddLinkedBusiness(ctx context.Context, businessID, linkedID string) error

	// RemoveLinkedBusiness removes linkedID from businessID's linked ids
	RemoveLinkedBusiness(ctx context.Context, businessID, linkedID string) error
}

// UserProfileRepository reads users/{uid}
type UserProfileRepository interface {
	FindByUID(ctx context.Context, uid string) (*UserProfile, error)
}

// StaffRepository reads businesses/{businessID}/staff/{uid}
type StaffRepository interface {
	FindMembership(ctx context.Context, businessID, uid string) (*StaffMembership, error)
}

// LinkRequestRepository persists linkRequests/{id}
type LinkRequestRepository interface {
	// Create stores a new request and assigns RequestedAt
	Create(ctx context.Context, request *LinkRequest) error

	// FindByID loads one request
	FindByID(ctx context.Context, id string) (*LinkRequest, error)

	// UpdateStatus persists Status and RespondedAt of a request that is still
	// pending in the store, otherwise ErrRequestNotPending
	UpdateStatus(ctx context.Context, request *LinkRequest) error

	// Approve persists the approval and links request.FromBusinessID to
	// request.ToBusinessID atomically, with the same pending guard
	Approve(ctx context.Context, request *LinkRequest) error

	// Delete removes a request entirely
	Delete(ctx context.Context, id string) error

	// FindPendingIncoming lists pending requests addressed to businessID
	FindPendingIncoming(ctx context.Context, businessID string) ([]LinkRequest, error)

	// FindPendingOutgoing lists pending requests sent by businessID
	FindPendingOutgoing(ctx context.Context, businessID string) ([]LinkRequest, error)
}

// SnapshotStore persists the per-user cached snapshot.
// Load returns (nil, nil) when no snapshot is stored.
type SnapshotStore interface {
	Load(ctx context.Context, uid string) (*Snapshot, error)
	Save(ctx context.Context, uid string, snapshot *Snapshot) error
	Clear(ctx context.Context, uid string) error
}
