package scopes

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForTenant constrains a query on a tenant-owned table to one tenant.
func ForTenant(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: "tenant_id"},
			Value:  tenantID,
		})
	}
}

func WithID(id uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: "id"},
			Value:  id,
		})
	}
}

func WithStatus(status string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == "" {
			return db
		}
		return db.Where("status = ?", status)
	}
}

func WithPendingStatus(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", "pending")
}

// Paginate applies limit/offset with a default page of 50 and a ceiling of 200.
func Paginate(limit, offset int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			limit = 50
		}
		if limit > 200 {
			limit = 200
		}
		if offset < 0 {
			offset = 0
		}
		return db.Limit(limit).Offset(offset)
	}
}
