package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormLinkRequestRepository implements tenancy.LinkRequestRepository
type GormLinkRequestRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormLinkRequestRepository creates a new GormLinkRequestRepository
func NewGormLinkRequestRepository(db *gorm.DB) *GormLinkRequestRepository {
	return &GormLinkRequestRepository{db: db, now: time.Now}
}

// Create stores request and stamps RequestedAt. A second pending request
// for the same pair violates the unique index and yields ErrLinkPending.
func (r *GormLinkRequestRepository) Create(ctx context.Context, request *tenancy.LinkRequest) error {
	request.RequestedAt = r.now().UTC()
	if err := r.db.WithContext(ctx).Create(models.LinkRequestModelFromDomain(request)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return tenancy.ErrLinkPending
		}
		return err
	}
	return nil
}

// FindByID finds a request by its ID
func (r *GormLinkRequestRepository) FindByID(ctx context.Context, id string) (*tenancy.LinkRequest, error) {
	var model models.LinkRequestModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// UpdateStatus persists Status and RespondedAt. Only a request that is still
// pending in the store is updated; an answered one yields ErrRequestNotPending.
func (r *GormLinkRequestRepository) UpdateStatus(ctx context.Context, request *tenancy.LinkRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return answerPending(tx, request)
	})
}

// Approve stores the approval and adds the approving business to the
// requester's linked ids in one transaction. Nothing is written when either
// step fails.
func (r *GormLinkRequestRepository) Approve(ctx context.Context, request *tenancy.LinkRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := answerPending(tx, request); err != nil {
			return err
		}
		return mutateLinkedIDs(tx, request.FromBusinessID, func(b *tenancy.Business) bool {
			return b.LinkBusiness(request.ToBusinessID)
		})
	})
}

// answerPending moves a pending row to request's status. The status filter
// makes the first answer win when two responses race.
func answerPending(tx *gorm.DB, request *tenancy.LinkRequest) error {
	result := tx.Model(&models.LinkRequestModel{}).
		Where("id = ?", request.ID).
		Where("status = ?", string(tenancy.LinkRequestPending)).
		Updates(map[string]any{
			"status":       string(request.Status),
			"responded_at": request.RespondedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&models.LinkRequestModel{}).Where("id = ?", request.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return tenancy.ErrRequestNotPending
}

// Delete removes a request entirely
func (r *GormLinkRequestRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.LinkRequestModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindPendingIncoming lists pending requests addressed to businessID,
// oldest first
func (r *GormLinkRequestRepository) FindPendingIncoming(ctx context.Context, businessID string) ([]tenancy.LinkRequest, error) {
	return r.findPending(ctx, "to_business_id = ?", businessID)
}

// FindPendingOutgoing lists pending requests sent by businessID, oldest first
func (r *GormLinkRequestRepository) FindPendingOutgoing(ctx context.Context, businessID string) ([]tenancy.LinkRequest, error) {
	return r.findPending(ctx, "from_business_id = ?", businessID)
}

func (r *GormLinkRequestRepository) findPending(ctx context.Context, where string, businessID string) ([]tenancy.LinkRequest, error) {
	var rows []models.LinkRequestModel
	if err := r.db.WithContext(ctx).
		Where(where, businessID).
		Where("status = ?", string(tenancy.LinkRequestPending)).
		Order("requested_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	requests := make([]tenancy.LinkRequest, len(rows))
	for i := range rows {
		requests[i] = *rows[i].ToDomain()
	}
	return requests, nil
}
