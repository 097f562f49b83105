package models

import (
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"gorm.io/datatypes"
)

// StaffModel is one row of a business's staff collection. Permissions are
// kept as raw JSON because older rows store a flat token list.
type StaffModel struct {
	BusinessID  string `gorm:"type:varchar(64);primaryKey"`
	StaffUID    string `gorm:"column:staff_uid;type:varchar(128);primaryKey"`
	Role        string `gorm:"type:varchar(20)"`
	Permissions datatypes.JSON
	Name        string    `gorm:"type:varchar(200)"`
	FirstName   string    `gorm:"type:varchar(100)"`
	LastName    string    `gorm:"type:varchar(100)"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StaffModel) TableName() string {
	return "staff"
}

// ToDomain normalizes the stored permissions into a StaffMembership
func (m *StaffModel) ToDomain() *tenancy.StaffMembership {
	return &tenancy.StaffMembership{
		BusinessID:  m.BusinessID,
		StaffUID:    m.StaffUID,
		Role:        tenancy.Role(m.Role),
		Permissions: tenancy.NormalizePermissions(m.Permissions),
		Name:        m.Name,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
	}
}

// UserProfileModel is the users row. BusinessID is set for staff accounts.
type UserProfileModel struct {
	UID         string    `gorm:"column:uid;type:varchar(128);primaryKey"`
	BusinessID  string    `gorm:"type:varchar(64);index"`
	Email       string    `gorm:"type:varchar(200)"`
	DisplayName string    `gorm:"type:varchar(200)"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UserProfileModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain UserProfile
func (m *UserProfileModel) ToDomain() *tenancy.UserProfile {
	return &tenancy.UserProfile{
		UID:        m.UID,
		BusinessID: m.BusinessID,
	}
}
