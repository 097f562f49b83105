package models

import (
	"encoding/json"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"gorm.io/datatypes"
)

// BusinessModel is the persistence model for tenancy.Business
type BusinessModel struct {
	ID                string                               `gorm:"type:varchar(64);primaryKey"`
	Name              string                               `gorm:"type:varchar(200);not null;default:''"`
	OwnerUserID       string                               `gorm:"type:varchar(128);index"`
	OwnerName         string                               `gorm:"type:varchar(200)"`
	Plan              datatypes.JSONType[tenancy.PlanInfo] `gorm:"column:plan"`
	Currency          string                               `gorm:"type:varchar(8)"`
	DashboardAccess   *bool
	FinanceAccess     *bool
	LinkedBusinessIDs datatypes.JSON
	CreatedAt         time.Time `gorm:"not null;index"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BusinessModel) TableName() string {
	return "businesses"
}

// ToDomain converts the persistence model to a domain Business
func (m *BusinessModel) ToDomain() *tenancy.Business {
	return &tenancy.Business{
		ID:   m.ID,
		Name: m.Name,
		Owner: tenancy.Owner{
			UserID: m.OwnerUserID,
			Name:   m.OwnerName,
		},
		Plan: m.Plan.Data(),
		SystemAccess: tenancy.SystemAccess{
			Dashboard: m.DashboardAccess,
			Finance:   m.FinanceAccess,
		},
		LinkedBusinessIDs: DecodeIDs(m.LinkedBusinessIDs),
		Currency:          m.Currency,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// BusinessModelFromDomain converts a domain Business to its persistence model
func BusinessModelFromDomain(b *tenancy.Business) *BusinessModel {
	return &BusinessModel{
		ID:                b.ID,
		Name:              b.Name,
		OwnerUserID:       b.Owner.UserID,
		OwnerName:         b.Owner.Name,
		Plan:              datatypes.NewJSONType(b.Plan),
		Currency:          b.Currency,
		DashboardAccess:   b.SystemAccess.Dashboard,
		FinanceAccess:     b.SystemAccess.Finance,
		LinkedBusinessIDs: EncodeIDs(b.LinkedBusinessIDs),
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

// DecodeIDs reads a JSON string array column. Non-string entries and
// unreadable values are dropped.
func DecodeIDs(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id, ok := item.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// EncodeIDs writes ids as a JSON array; an empty set is stored as []
func EncodeIDs(ids []string) datatypes.JSON {
	if ids == nil {
		ids = []string{}
	}
	data, _ := json.Marshal(ids)
	return datatypes.JSON(data)
}
