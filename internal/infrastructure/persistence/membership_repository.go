package persistence

import (
	"context"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUserProfileRepository implements tenancy.UserProfileRepository
type GormUserProfileRepository struct {
	db *gorm.DB
}

// NewGormUserProfileRepository creates a new GormUserProfileRepository
func NewGormUserProfileRepository(db *gorm.DB) *GormUserProfileRepository {
	return &GormUserProfileRepository{db: db}
}

// FindByUID finds the profile of uid
func (r *GormUserProfileRepository) FindByUID(ctx context.Context, uid string) (*tenancy.UserProfile, error) {
	if uid == "" {
		return nil, shared.ErrNotFound
	}
	var model models.UserProfileModel
	if err := r.db.WithContext(ctx).First(&model, "uid = ?", uid).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// GormStaffRepository implements tenancy.StaffRepository
type GormStaffRepository struct {
	db *gorm.DB
}

// NewGormStaffRepository creates a new GormStaffRepository
func NewGormStaffRepository(db *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: db}
}

// FindMembership finds the staff row of uid inside businessID
func (r *GormStaffRepository) FindMembership(ctx context.Context, businessID, uid string) (*tenancy.StaffMembership, error) {
	var model models.StaffModel
	if err := r.db.WithContext(ctx).
		Where("business_id = ? AND staff_uid = ?", businessID, uid).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}
