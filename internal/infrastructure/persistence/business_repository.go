package persistence

import (
	"context"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBusinessRepository implements tenancy.BusinessRepository using GORM
type GormBusinessRepository struct {
	db *gorm.DB
}

// NewGormBusinessRepository creates a new GormBusinessRepository
func NewGormBusinessRepository(db *gorm.DB) *GormBusinessRepository {
	return &GormBusinessRepository{db: db}
}

// Create stores a new business
func (r *GormBusinessRepository) Create(ctx context.Context, business *tenancy.Business) error {
	return r.db.WithContext(ctx).Create(models.BusinessModelFromDomain(business)).Error
}

// FindByID finds a business by its ID
func (r *GormBusinessRepository) FindByID(ctx context.Context, id string) (*tenancy.Business, error) {
	if id == "" {
		return nil, shared.ErrNotFound
	}
	var model models.BusinessModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindFirstByOwner returns the oldest business owned by uid
func (r *GormBusinessRepository) FindFirstByOwner(ctx context.Context, uid string) (*tenancy.Business, error) {
	if uid == "" {
		return nil, shared.ErrNotFound
	}
	var model models.BusinessModel
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", uid).
		Order("created_at ASC").Order("id ASC").
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// AddLinkedBusiness adds linkedID to businessID's linked ids. Adding an id
// that is already present is a no-op.
func (r *GormBusinessRepository) AddLinkedBusiness(ctx context.Context, businessID, linkedID string) error {
	return r.mutateLinks(ctx, businessID, func(b *tenancy.Business) bool {
		return b.LinkBusiness(linkedID)
	})
}

// RemoveLinkedBusiness removes linkedID from businessID's linked ids
func (r *GormBusinessRepository) RemoveLinkedBusiness(ctx context.Context, businessID, linkedID string) error {
	return r.mutateLinks(ctx, businessID, func(b *tenancy.Business) bool {
		return b.UnlinkBusiness(linkedID)
	})
}

// mutateLinks reads and rewrites the linked id column in one transaction
func (r *GormBusinessRepository) mutateLinks(ctx context.Context, businessID string, mutate func(*tenancy.Business) bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return mutateLinkedIDs(tx, businessID, mutate)
	})
}

// mutateLinkedIDs rewrites businessID's linked ids inside tx. The row is
// locked on PostgreSQL so concurrent grants cannot drop each other's ids.
func mutateLinkedIDs(tx *gorm.DB, businessID string, mutate func(*tenancy.Business) bool) error {
	query := tx
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model models.BusinessModel
	if err := query.First(&model, "id = ?", businessID).Error; err != nil {
		return notFound(err)
	}

	business := model.ToDomain()
	if !mutate(business) {
		return nil
	}

	return tx.Model(&models.BusinessModel{}).
		Where("id = ?", businessID).
		Updates(map[string]any{
			"linked_business_ids": models.EncodeIDs(business.LinkedBusinessIDs),
			"updated_at":          time.Now(),
		}).Error
}
