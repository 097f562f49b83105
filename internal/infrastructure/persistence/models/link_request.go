package models

import (
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
)

// LinkRequestModel is the persistence model for tenancy.LinkRequest. At most
// one pending request may exist per (from, to) pair.
type LinkRequestModel struct {
	ID               string     `gorm:"type:varchar(64);primaryKey"`
	FromBusinessID   string     `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_link_requests_pending_pair,where:status = 'pending'"`
	FromBusinessName string     `gorm:"type:varchar(200)"`
	ToBusinessID     string     `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_link_requests_pending_pair,where:status = 'pending'"`
	ToBusinessName   string     `gorm:"type:varchar(200)"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index"`
	AccessType       string     `gorm:"type:varchar(20);not null;default:'read'"`
	RequestedAt      time.Time  `gorm:"not null"`
	RespondedAt      *time.Time
}

// TableName returns the table name for GORM
func (LinkRequestModel) TableName() string {
	return "link_requests"
}

// ToDomain converts the persistence model to a domain LinkRequest
func (m *LinkRequestModel) ToDomain() *tenancy.LinkRequest {
	return &tenancy.LinkRequest{
		ID:               m.ID,
		FromBusinessID:   m.FromBusinessID,
		FromBusinessName: m.FromBusinessName,
		ToBusinessID:     m.ToBusinessID,
		ToBusinessName:   m.ToBusinessName,
		Status:           tenancy.LinkRequestStatus(m.Status),
		AccessType:       tenancy.AccessType(m.AccessType),
		RequestedAt:      m.RequestedAt,
		RespondedAt:      m.RespondedAt,
	}
}

// LinkRequestModelFromDomain converts a domain LinkRequest to its model
func LinkRequestModelFromDomain(r *tenancy.LinkRequest) *LinkRequestModel {
	return &LinkRequestModel{
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

// All lists every model, in creation order, for AutoMigrate
func All() []any {
	return []any{
		&BusinessModel{},
		&UserProfileModel{},
		&StaffModel{},
		&LinkRequestModel{},
	}
}
